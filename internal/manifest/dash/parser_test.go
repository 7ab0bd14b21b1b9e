package dash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BasicVideoAndAudio(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<MPD type="static" mediaPresentationDuration="PT300S">
  <Period>
    <AdaptationSet contentType="video">
      <Representation id="v1" bandwidth="5000000" height="1080">
        <SegmentTemplate media="v_$RepresentationID$_$Number%05d$.m4s" startNumber="1">
          <SegmentTimeline><S d="100" r="2"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
      <Representation id="v2" bandwidth="1000000" height="360">
        <SegmentTemplate media="v_$RepresentationID$_$Number%05d$.m4s" startNumber="1">
          <SegmentTimeline><S d="100" r="2"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
    <AdaptationSet contentType="audio">
      <Representation id="a1" bandwidth="128000"/>
      <Representation id="a2" bandwidth="64000"/>
    </AdaptationSet>
  </Period>
</MPD>`)

	m, err := Parse(doc, "https://example.com/video.mpd")
	require.NoError(t, err)
	require.Len(t, m.AdaptationSets, 2)

	video := m.AdaptationSets[0]
	assert.Equal(t, ContentVideo, video.ContentType)
	require.Len(t, video.Representations, 2)
	assert.Equal(t, int64(5000000), video.Representations[0].Bandwidth)
	assert.Equal(t, int64(1000000), video.Representations[1].Bandwidth)

	audio := m.AdaptationSets[1]
	assert.Equal(t, ContentAudio, audio.ContentType)
	assert.Equal(t, int64(64000), audio.Representations[0].Bandwidth)
	assert.Equal(t, int64(128000), audio.Representations[1].Bandwidth)
}

func TestMaterializeSegments_NumberPadding(t *testing.T) {
	rep := Representation{
		ID:      "v1",
		BaseURL: "https://example.com/",
		SegmentTemplate: &SegmentTemplate{
			Media:       "v_$RepresentationID$_$Number%05d$.m4s",
			StartNumber: 1,
			Timescale:   1,
			Timeline: []TimelineEntry{
				{Dur: 100, Repeat: 2},
			},
		},
	}

	plan, err := MaterializeSegments(rep, 0)
	require.NoError(t, err)
	require.Len(t, plan.MediaURLs, 3)
	assert.Equal(t, "https://example.com/v_v1_00001.m4s", plan.MediaURLs[0])
	assert.Equal(t, "https://example.com/v_v1_00002.m4s", plan.MediaURLs[1])
	assert.Equal(t, "https://example.com/v_v1_00003.m4s", plan.MediaURLs[2])
}

func TestMaterializeSegments_DurationOnlyDerivation(t *testing.T) {
	rep := Representation{
		ID:      "v1",
		BaseURL: "https://example.com/",
		SegmentTemplate: &SegmentTemplate{
			Media:       "v_$Number$.m4s",
			StartNumber: 1,
			Duration:    100,
			Timescale:   1,
		},
	}

	plan, err := MaterializeSegments(rep, 300)
	require.NoError(t, err)
	assert.Len(t, plan.MediaURLs, 3)
}

func TestMaterializeSegments_Unresolvable(t *testing.T) {
	rep := Representation{ID: "v1", BaseURL: "https://example.com/"}
	_, err := MaterializeSegments(rep, 0)
	assert.Error(t, err)
}

func TestParse_WidevineContentProtection(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<MPD type="static">
  <Period>
    <AdaptationSet contentType="video">
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed"/>
      <Representation id="v1" bandwidth="1000000"/>
    </AdaptationSet>
  </Period>
</MPD>`)

	m, err := Parse(doc, "https://example.com/video.mpd")
	require.NoError(t, err)
	assert.True(t, m.IsDRM)
	assert.True(t, m.AdaptationSets[0].IsDRM)
}

func TestParse_NoRootIsInvalid(t *testing.T) {
	_, err := Parse([]byte(`<NotMPD/>`), "https://example.com/video.mpd")
	assert.Error(t, err)
}
