package fetcher

import lru "github.com/hashicorp/golang-lru/v2"

// ManifestCache is the §5 manifest cache: an LRU bounded at a fixed
// capacity, keyed by absolute URL, replacing the FIFO-by-insertion map
// the distilled design started from.
type ManifestCache struct {
	inner *lru.Cache[string, []byte]
}

// NewManifestCache builds a cache with the given entry cap.
func NewManifestCache(capacity int) *ManifestCache {
	c, err := lru.New[string, []byte](capacity)
	if err != nil {
		// Only returns an error for a non-positive capacity, which is a
		// programmer error at a fixed call site, not a runtime condition.
		panic(err)
	}
	return &ManifestCache{inner: c}
}

// Get returns the cached body for url, if present.
func (c *ManifestCache) Get(url string) ([]byte, bool) {
	return c.inner.Get(url)
}

// Put stores body under url, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *ManifestCache) Put(url string, body []byte) {
	c.inner.Add(url, body)
}
