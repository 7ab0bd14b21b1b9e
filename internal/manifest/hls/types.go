// Package hls parses HTTP Live Streaming playlists (master and media) into
// a typed model, including protection detection and byte-range/map
// segment addressing.
package hls

import "github.com/siliconyouth/aigrabber-core/internal/model"

// Key is the AES-128/SAMPLE-AES descriptor carried by #EXT-X-KEY. A
// segment inherits the most recently seen key until the next #EXT-X-KEY.
type Key struct {
	Method    string
	URI       string
	IV        string
	KeyFormat string
}

// ByteRange is the parsed form of #EXT-X-BYTERANGE:<n>[@<o>].
type ByteRange struct {
	Length int64
	Offset int64
}

// MapSegment is the playlist-level initialization segment from
// #EXT-X-MAP:URI="...",BYTERANGE="...".
type MapSegment struct {
	URI       string
	ByteRange *ByteRange
}

// AudioRendition is one #EXT-X-MEDIA:TYPE=AUDIO entry.
type AudioRendition struct {
	GroupID    string
	Name       string
	Language   string
	URI        string
	Default    bool
	Autoselect bool
}

// Variant is one #EXT-X-STREAM-INF entry plus its playlist URL.
type Variant struct {
	URL        string
	Bandwidth  int64
	Width      int
	Height     int
	Codecs     string
	FrameRate  float64
	AudioGroup string
}

// Segment is one media-playlist entry: a duration, a URI, and whatever
// byte-range/key context was active when it was parsed.
type Segment struct {
	URI       string
	Duration  float64
	ByteRange *ByteRange
	Key       *Key
}

// Kind discriminates Master from Media playlists.
type Kind int

const (
	KindMaster Kind = iota
	KindMedia
)

// Playlist is the tagged union described in the data model: a Master
// playlist lists variants, a Media playlist lists segments. Only the
// fields relevant to Kind are populated.
type Playlist struct {
	Kind  Kind
	URL   string
	IsDRM bool

	// Master
	Variants    []Variant
	AudioGroups map[string][]AudioRendition

	// Media
	TargetDuration float64
	Segments       []Segment
	TotalDuration  float64
	Map            *MapSegment
}

// VideoQualities projects the master playlist's variants into the shared
// VideoQuality model, sorted descending by bandwidth per the invariant in
// the data model.
func (p *Playlist) VideoQualities() []model.VideoQuality {
	out := make([]model.VideoQuality, 0, len(p.Variants))
	for _, v := range p.Variants {
		out = append(out, model.VideoQuality{
			Width:     v.Width,
			Height:    v.Height,
			Bitrate:   v.Bandwidth,
			Framerate: v.FrameRate,
			Label:     model.QualityLabel(v.Height, v.Bandwidth),
		})
	}
	return out
}
