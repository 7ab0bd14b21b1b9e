package encoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")

	seg1 := filepath.Join(dir, "segment-00000.ts")
	seg2 := filepath.Join(dir, "segment-00001.ts")
	require.NoError(t, os.WriteFile(seg1, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(seg2, []byte("b"), 0o644))

	require.NoError(t, writeConcatList(listPath, []string{seg1, seg2}))

	content, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file '"+seg1+"'")
	assert.Contains(t, string(content), "file '"+seg2+"'")
}

func TestParseVersion(t *testing.T) {
	assert.Equal(t, "6.0", parseVersion("ffmpeg version 6.0 Copyright (c) 2000-2023"))
	assert.Equal(t, "N-112345-g1234567", parseVersion("ffmpeg version N-112345-g1234567"))
}
