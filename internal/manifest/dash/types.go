// Package dash parses MPEG-DASH manifests (MPD, XML) into a typed model,
// including content-protection detection and segment URL materialization
// from SegmentTemplate/SegmentTimeline/SegmentList.
package dash

import "encoding/xml"

// mpdXML mirrors the subset of the MPD schema the engine consumes.
type mpdXML struct {
	XMLName                   xml.Name         `xml:"MPD"`
	Type                      string           `xml:"type,attr"`
	MediaPresentationDuration string           `xml:"mediaPresentationDuration,attr"`
	MinBufferTime             string           `xml:"minBufferTime,attr"`
	BaseURL                   string           `xml:"BaseURL"`
	Periods                   []periodXML      `xml:"Period"`
}

type periodXML struct {
	Duration       string            `xml:"duration,attr"`
	AdaptationSets []adaptationSetXML `xml:"AdaptationSet"`
}

type adaptationSetXML struct {
	ContentType        string               `xml:"contentType,attr"`
	MimeType            string               `xml:"mimeType,attr"`
	Lang                string               `xml:"lang,attr"`
	SegmentTemplate     *segmentTemplateXML  `xml:"SegmentTemplate"`
	ContentProtections  []contentProtectionXML `xml:"ContentProtection"`
	Representations     []representationXML  `xml:"Representation"`
}

type representationXML struct {
	ID              string              `xml:"id,attr"`
	Bandwidth       int64               `xml:"bandwidth,attr"`
	Width           int                 `xml:"width,attr"`
	Height          int                 `xml:"height,attr"`
	FrameRate       string              `xml:"frameRate,attr"`
	Codecs          string              `xml:"codecs,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	BaseURL         string              `xml:"BaseURL"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
	SegmentList     *segmentListXML     `xml:"SegmentList"`
}

type contentProtectionXML struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Pssh        string `xml:"pssh"`
}

type segmentTemplateXML struct {
	Media          string            `xml:"media,attr"`
	Initialization string            `xml:"initialization,attr"`
	StartNumber    *int64            `xml:"startNumber,attr"`
	Duration       *int64            `xml:"duration,attr"`
	Timescale      *int64            `xml:"timescale,attr"`
	Timeline       *segmentTimelineXML `xml:"SegmentTimeline"`
}

type segmentTimelineXML struct {
	S []segmentSXML `xml:"S"`
}

type segmentSXML struct {
	T *int64 `xml:"t,attr"`
	D int64  `xml:"d,attr"`
	R int64  `xml:"r,attr"`
}

type segmentListXML struct {
	Initialization *initializationXML `xml:"Initialization"`
	SegmentURLs    []segmentURLXML    `xml:"SegmentURL"`
}

type initializationXML struct {
	SourceURL string `xml:"sourceURL,attr"`
}

type segmentURLXML struct {
	Media string `xml:"media,attr"`
}

// Exported, resolved model.

// ContentType classifies an AdaptationSet.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
)

// ContentProtection is one DRM scheme declaration on an AdaptationSet.
type ContentProtection struct {
	SchemeIDURI string
	PSSH        string
}

// Well-known ContentProtection scheme URIs.
const (
	SchemeWidevine = "urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"
	SchemePlayReady = "urn:uuid:9a04f079-9840-4286-ab92-e65be0885f95"
	SchemeFairPlay  = "urn:uuid:94ce86fb-07ff-4f43-adb8-93d2fa968ca2"
)

// SegmentTemplate is the resolved (possibly inherited) addressing scheme
// for a Representation.
type SegmentTemplate struct {
	Media          string
	Initialization string
	StartNumber    int64
	Duration       int64
	Timescale      int64
	Timeline       []TimelineEntry
}

// TimelineEntry is one <S t= d= r=> run.
type TimelineEntry struct {
	Time   int64 // explicit t, or 0 if not set (see HasTime)
	HasTime bool
	Dur    int64
	Repeat int64
}

// SegmentList is an explicit segment URI list, overriding a template.
type SegmentList struct {
	InitializationURL string
	MediaURLs         []string
}

// Representation is one encoding within an AdaptationSet.
type Representation struct {
	ID              string
	Bandwidth       int64
	Width           int
	Height          int
	FrameRate       float64
	Codecs          string
	MimeType        string
	BaseURL         string // resolved absolute, or "" if none override
	SegmentTemplate *SegmentTemplate
	SegmentList     *SegmentList
}

// AdaptationSet groups representations of one content type.
type AdaptationSet struct {
	ContentType        ContentType
	Language           string
	Representations    []Representation
	ContentProtections []ContentProtection
	IsDRM              bool
}

// Manifest is the fully parsed, resolved MPD.
type Manifest struct {
	Dynamic         bool
	DurationSeconds float64
	BaseURL         string
	AdaptationSets  []AdaptationSet
	IsDRM           bool
}
