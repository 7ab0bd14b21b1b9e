package hls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Master(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n" +
		"hi.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=640x360\n" +
		"lo.m3u8\n"

	pl, err := Parse(body, "https://example.com/master.m3u8")
	require.NoError(t, err)
	assert.Equal(t, KindMaster, pl.Kind)
	require.Len(t, pl.Variants, 2)
	assert.Equal(t, int64(5000000), pl.Variants[0].Bandwidth)
	assert.Equal(t, int64(1000000), pl.Variants[1].Bandwidth)
	assert.Equal(t, "https://example.com/hi.m3u8", pl.Variants[0].URL)

	qualities := pl.VideoQualities()
	require.Len(t, qualities, 2)
	assert.Equal(t, "1080p", qualities[0].Label)
	assert.Equal(t, "360p", qualities[1].Label)
}

func TestParse_AES128IsNotDRM(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"k.bin\"\n" +
		"#EXTINF:10.0,\n" +
		"seg1.ts\n"

	pl, err := Parse(body, "https://example.com/media.m3u8")
	require.NoError(t, err)
	assert.Equal(t, KindMedia, pl.Kind)
	assert.False(t, pl.IsDRM)
	require.Len(t, pl.Segments, 1)
	assert.Equal(t, "AES-128", pl.Segments[0].Key.Method)
}

func TestParse_SampleAESIsDRM(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000000\n" +
		"v.m3u8\n" +
		"#EXT-X-KEY:METHOD=SAMPLE-AES,KEYFORMAT=\"com.apple.streamingkeydelivery\"\n"

	pl, err := Parse(body, "https://example.com/master.m3u8")
	require.NoError(t, err)
	assert.True(t, pl.IsDRM)
}

func TestParse_MissingHeaderIsInvalid(t *testing.T) {
	_, err := Parse("not a playlist", "https://example.com/x.m3u8")
	assert.Error(t, err)
}

func TestParse_ByteRangeSegment(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXTINF:5.0,\n" +
		"#EXT-X-BYTERANGE:1000@500\n" +
		"seg.ts\n"

	pl, err := Parse(body, "https://example.com/media.m3u8")
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	require.NotNil(t, pl.Segments[0].ByteRange)
	assert.EqualValues(t, 1000, pl.Segments[0].ByteRange.Length)
	assert.EqualValues(t, 500, pl.Segments[0].ByteRange.Offset)
}

func TestParse_MapSegment(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MAP:URI=\"init.mp4\"\n" +
		"#EXTINF:5.0,\n" +
		"seg.m4s\n"

	pl, err := Parse(body, "https://example.com/media.m3u8")
	require.NoError(t, err)
	require.NotNil(t, pl.Map)
	assert.Equal(t, "https://example.com/init.mp4", pl.Map.URI)
}

func TestParse_AudioGroups(t *testing.T) {
	body := "#EXTM3U\n" +
		"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"aud1\",NAME=\"English\",DEFAULT=YES,URI=\"aud.m3u8\"\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000000,AUDIO=\"aud1\"\n" +
		"v.m3u8\n"

	pl, err := Parse(body, "https://example.com/master.m3u8")
	require.NoError(t, err)
	require.Contains(t, pl.AudioGroups, "aud1")
	require.Len(t, pl.AudioGroups["aud1"], 1)
	assert.True(t, pl.AudioGroups["aud1"][0].Default)
	assert.Equal(t, "https://example.com/aud.m3u8", pl.AudioGroups["aud1"][0].URI)
	assert.Equal(t, "aud1", pl.Variants[0].AudioGroup)
}

func TestParseAttributes_QuotedCommas(t *testing.T) {
	attrs := parseAttributes(`BANDWIDTH=5000000,CODECS="avc1.64001f,mp4a.40.2",RESOLUTION=1920x1080`)
	assert.Equal(t, "5000000", attrs["BANDWIDTH"])
	assert.Equal(t, "avc1.64001f,mp4a.40.2", attrs["CODECS"])
	assert.Equal(t, "1920x1080", attrs["RESOLUTION"])
}
