package dash

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/siliconyouth/aigrabber-core/internal/manifest"
)

// Parse consumes a raw MPD document and its absolute URL and returns the
// resolved manifest model.
func Parse(body []byte, rawURL string) (*Manifest, error) {
	raw, err := parseMPDXML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrInvalidManifest, err)
	}

	m := &Manifest{
		Dynamic: strings.EqualFold(raw.Type, "dynamic"),
	}
	if d, ok := parseISO8601Duration(raw.MediaPresentationDuration); ok {
		m.DurationSeconds = d
	}

	baseURL := rawURL
	if raw.BaseURL != "" {
		baseURL = manifest.Resolve(rawURL, strings.TrimSpace(raw.BaseURL))
	}
	m.BaseURL = baseURL

	for _, period := range raw.Periods {
		periodDuration := m.DurationSeconds
		if d, ok := parseISO8601Duration(period.Duration); ok {
			periodDuration = d
		}
		for _, as := range period.AdaptationSets {
			set := resolveAdaptationSet(as, baseURL, periodDuration)
			if set.IsDRM {
				m.IsDRM = true
			}
			m.AdaptationSets = append(m.AdaptationSets, set)
		}
	}

	return m, nil
}

// parseMPDXML decodes the document in a single xml.Unmarshal pass and
// rejects it unless the root element is MPD. The struct tags carry no
// namespace, so an MPD in any (or no) xmlns decodes the same way.
func parseMPDXML(body []byte) (*mpdXML, error) {
	var out mpdXML
	if err := xml.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.XMLName.Local != "MPD" {
		return nil, fmt.Errorf("no root MPD element")
	}
	return &out, nil
}

var iso8601Duration = regexp.MustCompile(`^PT(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// parseISO8601Duration parses "PT#H#M#S" durations as used by
// mediaPresentationDuration and Period/@duration.
func parseISO8601Duration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	matches := iso8601Duration.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}
	var total float64
	for i, mult := range []float64{3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(matches[i+1], 64)
		if err != nil {
			continue
		}
		total += v * mult
	}
	return total, true
}

func contentTypeOf(as adaptationSetXML) ContentType {
	if as.ContentType != "" {
		switch strings.ToLower(as.ContentType) {
		case "audio":
			return ContentAudio
		case "text":
			return ContentText
		default:
			return ContentVideo
		}
	}
	switch {
	case strings.HasPrefix(as.MimeType, "audio/"):
		return ContentAudio
	case strings.HasPrefix(as.MimeType, "text/"):
		return ContentText
	default:
		return ContentVideo
	}
}

func resolveAdaptationSet(as adaptationSetXML, baseURL string, periodDuration float64) AdaptationSet {
	set := AdaptationSet{
		ContentType: contentTypeOf(as),
		Language:    as.Lang,
	}

	for _, cp := range as.ContentProtections {
		set.ContentProtections = append(set.ContentProtections, ContentProtection{
			SchemeIDURI: cp.SchemeIDURI,
			PSSH:        strings.TrimSpace(cp.Pssh),
		})
	}
	if len(set.ContentProtections) > 0 {
		set.IsDRM = true
	}
	for _, cp := range set.ContentProtections {
		switch cp.SchemeIDURI {
		case SchemeWidevine, SchemePlayReady, SchemeFairPlay:
			set.IsDRM = true
		}
	}

	inheritedTemplate := resolveTemplate(as.SegmentTemplate)

	for _, r := range as.Representations {
		rep := Representation{
			ID:        r.ID,
			Bandwidth: r.Bandwidth,
			Width:     r.Width,
			Height:    r.Height,
			Codecs:    r.Codecs,
			MimeType:  r.MimeType,
		}
		if r.FrameRate != "" {
			rep.FrameRate = parseFrameRate(r.FrameRate)
		}
		if r.BaseURL != "" {
			rep.BaseURL = manifest.Resolve(baseURL, r.BaseURL)
		} else {
			rep.BaseURL = baseURL
		}

		if r.SegmentTemplate != nil {
			rep.SegmentTemplate = resolveTemplate(r.SegmentTemplate)
		} else {
			rep.SegmentTemplate = inheritedTemplate
		}

		if r.SegmentList != nil {
			sl := &SegmentList{}
			if r.SegmentList.Initialization != nil {
				sl.InitializationURL = r.SegmentList.Initialization.SourceURL
			}
			for _, su := range r.SegmentList.SegmentURLs {
				sl.MediaURLs = append(sl.MediaURLs, su.Media)
			}
			rep.SegmentList = sl
			rep.SegmentTemplate = nil
		}

		set.Representations = append(set.Representations, rep)
	}

	// Invariant: video representations sort descending by bandwidth;
	// audio representations sort ascending.
	switch set.ContentType {
	case ContentAudio:
		sort.SliceStable(set.Representations, func(i, j int) bool {
			return set.Representations[i].Bandwidth < set.Representations[j].Bandwidth
		})
	default:
		sort.SliceStable(set.Representations, func(i, j int) bool {
			return set.Representations[i].Bandwidth > set.Representations[j].Bandwidth
		})
	}

	_ = periodDuration // not stored on the set: MaterializeSegments takes whatever duration its caller passes
	return set
}

func resolveTemplate(t *segmentTemplateXML) *SegmentTemplate {
	if t == nil {
		return nil
	}
	out := &SegmentTemplate{
		Media:          t.Media,
		Initialization: t.Initialization,
		StartNumber:    1,
	}
	if t.StartNumber != nil {
		out.StartNumber = *t.StartNumber
	}
	if t.Duration != nil {
		out.Duration = *t.Duration
	}
	if t.Timescale != nil {
		out.Timescale = *t.Timescale
	} else {
		out.Timescale = 1
	}
	if t.Timeline != nil {
		for _, s := range t.Timeline.S {
			e := TimelineEntry{Dur: s.D, Repeat: s.R}
			if s.T != nil {
				e.Time = *s.T
				e.HasTime = true
			}
			out.Timeline = append(out.Timeline, e)
		}
	}
	return out
}

func parseFrameRate(s string) float64 {
	if idx := strings.Index(s, "/"); idx >= 0 {
		num, err1 := strconv.ParseFloat(s[:idx], 64)
		den, err2 := strconv.ParseFloat(s[idx+1:], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
