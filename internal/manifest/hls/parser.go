package hls

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/siliconyouth/aigrabber-core/internal/manifest"
)

// Parse turns a raw m3u8 body into a Playlist. rawURL is the manifest's
// own absolute URL, used to resolve relative variant/segment/key URIs.
func Parse(body string, rawURL string) (*Playlist, error) {
	lines := splitLines(body)
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "#EXTM3U") {
		return nil, fmt.Errorf("%w: missing #EXTM3U header", manifest.ErrInvalidManifest)
	}

	isMaster := false
	for _, l := range lines {
		if strings.HasPrefix(l, "#EXT-X-STREAM-INF") {
			isMaster = true
			break
		}
	}

	if isMaster {
		return parseMaster(lines, rawURL)
	}
	return parseMedia(lines, rawURL)
}

func splitLines(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		out = append(out, strings.TrimRight(l, "\r"))
	}
	return out
}

func parseMaster(lines []string, rawURL string) (*Playlist, error) {
	pl := &Playlist{
		Kind:        KindMaster,
		URL:         rawURL,
		AudioGroups: make(map[string][]AudioRendition),
	}

	var pendingAttrs map[string]string
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if keyIsDRM(&Key{Method: attrs["METHOD"], KeyFormat: attrs["KEYFORMAT"]}) {
				pl.IsDRM = true
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			if strings.EqualFold(attrs["TYPE"], "AUDIO") {
				groupID := attrs["GROUP-ID"]
				if groupID == "" {
					groupID = "default"
				}
				pl.AudioGroups[groupID] = append(pl.AudioGroups[groupID], AudioRendition{
					GroupID:    groupID,
					Name:       attrs["NAME"],
					Language:   attrs["LANGUAGE"],
					URI:        manifest.Resolve(rawURL, attrs["URI"]),
					Default:    strings.EqualFold(attrs["DEFAULT"], "YES"),
					Autoselect: strings.EqualFold(attrs["AUTOSELECT"], "YES"),
				})
			}
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pendingAttrs = parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
		case line == "" || strings.HasPrefix(line, "#"):
			// comment or blank: not a variant URL
		default:
			if pendingAttrs != nil {
				pl.Variants = append(pl.Variants, variantFromAttrs(pendingAttrs, manifest.Resolve(rawURL, line)))
				pendingAttrs = nil
			}
		}
	}

	sort.SliceStable(pl.Variants, func(i, j int) bool {
		return pl.Variants[i].Bandwidth > pl.Variants[j].Bandwidth
	})

	body := strings.Join(lines, "\n")
	if masterIsDRM(body) {
		pl.IsDRM = true
	}

	return pl, nil
}

func variantFromAttrs(attrs map[string]string, url string) Variant {
	v := Variant{
		URL:        url,
		Bandwidth:  parseIntDefault(attrs["BANDWIDTH"], 0),
		Codecs:     attrs["CODECS"],
		AudioGroup: attrs["AUDIO"],
	}
	if res := attrs["RESOLUTION"]; res != "" {
		if w, h, ok := parseResolution(res); ok {
			v.Width, v.Height = w, h
		}
	}
	if fr := attrs["FRAME-RATE"]; fr != "" {
		if f, err := strconv.ParseFloat(fr, 64); err == nil {
			v.FrameRate = f
		}
	}
	return v
}

func parseResolution(s string) (w, h int, ok bool) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	wv, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hv, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return wv, hv, true
}

func parseIntDefault(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// masterIsDRM scans raw master-manifest text for the protection markers
// that aren't tied to a specific attribute key: literal scheme strings
// that can appear in KEYFORMAT or in vendor-specific extension tags.
func masterIsDRM(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "com.widevine") || strings.Contains(lower, "com.apple.fps")
}

func parseMedia(lines []string, rawURL string) (*Playlist, error) {
	pl := &Playlist{Kind: KindMedia, URL: rawURL}

	var currentKey *Key
	var currentRange *ByteRange
	var lastRange *ByteRange
	var pendingDuration float64
	var havePendingDuration bool

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if d, err := strconv.ParseFloat(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"), 64); err == nil {
				pl.TargetDuration = d
			}
		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			k := &Key{
				Method:    attrs["METHOD"],
				URI:       manifest.Resolve(rawURL, attrs["URI"]),
				IV:        attrs["IV"],
				KeyFormat: attrs["KEYFORMAT"],
			}
			currentKey = k
			if keyIsDRM(k) {
				pl.IsDRM = true
			}
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			m := &MapSegment{URI: manifest.Resolve(rawURL, attrs["URI"])}
			if br := attrs["BYTERANGE"]; br != "" {
				if rng, ok := parseByteRange(br, nil); ok {
					m.ByteRange = rng
				}
			}
			pl.Map = m
		case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
			if rng, ok := parseByteRange(strings.TrimPrefix(line, "#EXT-X-BYTERANGE:"), lastRange); ok {
				currentRange = rng
				lastRange = rng
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			rest := strings.TrimPrefix(line, "#EXTINF:")
			durStr := rest
			if idx := strings.Index(rest, ","); idx >= 0 {
				durStr = rest[:idx]
			}
			if d, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64); err == nil {
				pendingDuration = d
			} else {
				pendingDuration = 0
			}
			havePendingDuration = true
		case line == "" || strings.HasPrefix(line, "#"):
			// comment, blank, or an unhandled tag
		default:
			seg := Segment{
				URI:       manifest.Resolve(rawURL, line),
				Duration:  pendingDuration,
				ByteRange: currentRange,
				Key:       currentKey,
			}
			if !havePendingDuration {
				seg.Duration = 0
			}
			pl.Segments = append(pl.Segments, seg)
			pl.TotalDuration += seg.Duration
			currentRange = nil
			havePendingDuration = false
		}
	}

	return pl, nil
}

// keyIsDRM applies the protection rule: AES-128 (and NONE) are not DRM;
// anything else, or a widevine/fairplay KEYFORMAT, is.
func keyIsDRM(k *Key) bool {
	method := strings.ToUpper(k.Method)
	if method != "" && method != "NONE" && method != "AES-128" {
		return true
	}
	kf := strings.ToLower(k.KeyFormat)
	return strings.Contains(kf, "widevine") || strings.Contains(kf, "fairplay")
}

// parseByteRange parses "<n>[@<o>]"; when the offset is omitted it
// continues from the end of prev, matching the HLS spec's default.
func parseByteRange(s string, prev *ByteRange) (*ByteRange, bool) {
	parts := strings.SplitN(s, "@", 2)
	length, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return nil, false
	}
	var offset int64
	if len(parts) == 2 {
		offset, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, false
		}
	} else if prev != nil {
		offset = prev.Offset + prev.Length
	}
	return &ByteRange{Length: length, Offset: offset}, true
}

// parseAttributes tokenizes "KEY=VALUE,KEY2=\"V,2\"" respecting quoted
// values so commas inside quotes are preserved. Unknown attributes are
// returned verbatim and left for the caller to ignore.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var key strings.Builder
	var val strings.Builder
	inQuotes := false
	readingKey := true

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = val.String()
		}
		key.Reset()
		val.Reset()
		readingKey = true
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == '=' && readingKey && !inQuotes:
			readingKey = false
		case c == ',' && !inQuotes:
			flush()
		default:
			if readingKey {
				key.WriteByte(c)
			} else {
				val.WriteByte(c)
			}
		}
	}
	flush()

	return attrs
}
