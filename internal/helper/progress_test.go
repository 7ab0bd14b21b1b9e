package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	p, ok := ParseProgressLine("[download]  42.0% of ~10.00MiB at 512.00KiB/s ETA 00:05")
	require.True(t, ok)
	assert.InDelta(t, 42.0, p.Percentage, 0.01)
	assert.EqualValues(t, 10*1024*1024, p.TotalBytes)
	assert.InDelta(t, 512*1024, p.SpeedBps, 1)
	assert.InDelta(t, 5, p.ETASeconds, 0.01)
}

func TestParseProgressLine_DecimalBase(t *testing.T) {
	p, ok := ParseProgressLine("[download] 100.0% of 10.00MB at 1.00MB/s ETA 00:00:00")
	require.True(t, ok)
	assert.EqualValues(t, 10_000_000, p.TotalBytes)
	assert.InDelta(t, 1_000_000, p.SpeedBps, 1)
}

func TestParseProgressLine_NoMatch(t *testing.T) {
	_, ok := ParseProgressLine("some unrelated line")
	assert.False(t, ok)
}

func TestParseOutputPath_Priority(t *testing.T) {
	path, ok := ParseOutputPath(`[Merger] Merging formats into "/tmp/video.mp4"`)
	require.True(t, ok)
	assert.Equal(t, "/tmp/video.mp4", path)

	path, ok = ParseOutputPath("[download] Destination: /tmp/video.f137.mp4")
	require.True(t, ok)
	assert.Equal(t, "/tmp/video.f137.mp4", path)

	path, ok = ParseOutputPath("[download] /tmp/video.mp4 has already been downloaded")
	require.True(t, ok)
	assert.Equal(t, "/tmp/video.mp4", path)
}
