package github

import (
	"time"

	"github.com/eringen/gitpress/cache"
)

const (
	etagMaxEntries = 512
	etagTTL        = time.Hour
)

type etagEntry struct {
	etag string
	body []byte
}

// etagCache remembers the ETag and body of recent GET responses so repeat
// reads can be sent as conditional requests.
type etagCache struct {
	entries *cache.Cache[etagEntry]
}

func newETagCache() *etagCache {
	return &etagCache{entries: cache.New[etagEntry](etagMaxEntries, nil)}
}

func (c *etagCache) get(url string) string {
	entry, ok := c.entries.Get(url)
	if !ok {
		return ""
	}
	return entry.etag
}

func (c *etagCache) body(url string) []byte {
	entry, ok := c.entries.GetStale(url)
	if !ok {
		return nil
	}
	return entry.body
}

func (c *etagCache) put(url, etag string, body []byte) {
	if etag == "" {
		return
	}
	c.entries.Set(url, etagEntry{etag: etag, body: body}, etagTTL)
}
