package manifest

import "errors"

// ErrInvalidManifest is returned when a manifest fails its header check
// (HLS missing #EXTM3U, DASH missing a root MPD element). It is a parser
// rejection: the job fails with no retry.
var ErrInvalidManifest = errors.New("invalid manifest")

// ErrUnresolvableSegments is returned when a DASH representation carries
// no SegmentTimeline, no SegmentList, and no usable duration+timescale to
// derive a segment count from. Fatal to the job.
var ErrUnresolvableSegments = errors.New("unresolvable segment plan")
