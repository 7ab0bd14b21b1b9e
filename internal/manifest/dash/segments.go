package dash

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/siliconyouth/aigrabber-core/internal/manifest"
)

// SegmentPlan is the materialized, order-sensitive fetch list for one
// representation: an optional initialization URL followed by media
// segment URLs in the order the concat-mux step requires.
type SegmentPlan struct {
	InitializationURL string
	MediaURLs         []string
}

// MaterializeSegments expands a representation's SegmentTemplate or
// SegmentList into an absolute-URL fetch plan. periodDurationSeconds is
// the duration the caller supplies (the scheduler passes the manifest's
// mediaPresentationDuration; a Period's own duration is not consulted),
// used only for the duration+timescale-only derivation path.
func MaterializeSegments(rep Representation, periodDurationSeconds float64) (*SegmentPlan, error) {
	if rep.SegmentList != nil {
		return materializeFromList(rep)
	}
	if rep.SegmentTemplate != nil {
		return materializeFromTemplate(rep, periodDurationSeconds)
	}
	return nil, manifest.ErrUnresolvableSegments
}

func materializeFromList(rep Representation) (*SegmentPlan, error) {
	plan := &SegmentPlan{}
	if rep.SegmentList.InitializationURL != "" {
		plan.InitializationURL = manifest.Resolve(rep.BaseURL, rep.SegmentList.InitializationURL)
	}
	for _, m := range rep.SegmentList.MediaURLs {
		plan.MediaURLs = append(plan.MediaURLs, manifest.Resolve(rep.BaseURL, m))
	}
	if len(plan.MediaURLs) == 0 {
		return nil, manifest.ErrUnresolvableSegments
	}
	return plan, nil
}

func materializeFromTemplate(rep Representation, periodDurationSeconds float64) (*SegmentPlan, error) {
	t := rep.SegmentTemplate
	plan := &SegmentPlan{}
	if t.Initialization != "" {
		plan.InitializationURL = manifest.Resolve(rep.BaseURL, expandTemplate(t.Initialization, rep.ID, 0, 0, rep.Bandwidth))
	}

	switch {
	case len(t.Timeline) > 0:
		number := t.StartNumber
		var curTime int64
		for _, entry := range t.Timeline {
			if entry.HasTime {
				curTime = entry.Time
			}
			count := entry.Repeat + 1
			for i := int64(0); i < count; i++ {
				url := expandTemplate(t.Media, rep.ID, number, curTime, rep.Bandwidth)
				plan.MediaURLs = append(plan.MediaURLs, manifest.Resolve(rep.BaseURL, url))
				number++
				curTime += entry.Dur
			}
		}
	case t.Duration > 0 && t.Timescale > 0 && periodDurationSeconds > 0:
		// Duration-only derivation: segment count = ceil(duration * timescale / segmentDuration).
		count := int64(math.Ceil(periodDurationSeconds * float64(t.Timescale) / float64(t.Duration)))
		for i := int64(0); i < count; i++ {
			number := t.StartNumber + i
			segTime := i * t.Duration
			url := expandTemplate(t.Media, rep.ID, number, segTime, rep.Bandwidth)
			plan.MediaURLs = append(plan.MediaURLs, manifest.Resolve(rep.BaseURL, url))
		}
	default:
		return nil, manifest.ErrUnresolvableSegments
	}

	if len(plan.MediaURLs) == 0 {
		return nil, manifest.ErrUnresolvableSegments
	}
	return plan, nil
}

var paddedNumberPattern = regexp.MustCompile(`\$Number%0(\d+)d\$`)

// expandTemplate replaces $RepresentationID$, $Number$, $Time$,
// $Bandwidth$ and the zero-padded $Number%0Nd$ variant.
func expandTemplate(tmpl, repID string, number, t int64, bandwidth int64) string {
	out := paddedNumberPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := paddedNumberPattern.FindStringSubmatch(match)
		width, err := strconv.Atoi(sub[1])
		if err != nil {
			width = 0
		}
		return fmt.Sprintf("%0*d", width, number)
	})
	out = strings.ReplaceAll(out, "$RepresentationID$", repID)
	out = strings.ReplaceAll(out, "$Number$", strconv.FormatInt(number, 10))
	out = strings.ReplaceAll(out, "$Time$", strconv.FormatInt(t, 10))
	out = strings.ReplaceAll(out, "$Bandwidth$", strconv.FormatInt(bandwidth, 10))
	return out
}
