package publish

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

// Reader serves feed entries through a short-lived in-process cache so
// the read API does not hit SQLite on every request. The cache is an
// explicitly owned key-value store with a TTL; entries carry their own
// generation timestamp, so staleness is always visible to consumers.
type Reader struct {
	store *store.Store
	cache *gocache.Cache
}

// NewReader creates a Reader with the given TTL.
func NewReader(s *store.Store, ttl time.Duration) *Reader {
	return &Reader{
		store: s,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Feed returns the materialized view for a scope key, or nil when the
// scope has never been published.
func (r *Reader) Feed(key string) (*model.FeedEntry, error) {
	if v, found := r.cache.Get(key); found {
		return v.(*model.FeedEntry), nil
	}

	entry, err := r.store.GetFeedEntry(key)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		r.cache.SetDefault(key, entry)
	}
	return entry, nil
}

// Invalidate drops every cached scope. Called after a publish cycle so
// fresh generations become visible immediately.
func (r *Reader) Invalidate() {
	r.cache.Flush()
}
