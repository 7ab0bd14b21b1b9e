package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestCache_EvictsOverCapacity(t *testing.T) {
	c := NewManifestCache(2)
	c.Put("a", []byte("A"))
	c.Put("b", []byte("B"))
	c.Put("c", []byte("C")) // evicts "a" (least recently used)

	_, ok := c.Get("a")
	assert.False(t, ok)

	b, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, []byte("B"), b)
}

func TestManifestCache_GetMissing(t *testing.T) {
	c := NewManifestCache(10)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}
