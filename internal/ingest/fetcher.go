// Package ingest retrieves reports from configured feed sources and
// persists them as RawItems. Adapters here are the only code that talks
// to the outside world; everything downstream reads the store.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/infblueocean/sitrep/internal/config"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/store"
)

// snippetLimit truncates oversized feed descriptions.
const snippetLimit = 500

// Fetcher retrieves items from feed sources with per-host rate limiting.
type Fetcher struct {
	client *http.Client
	cfg    config.IngestConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Result reports what an ingest run did.
type Result struct {
	Fetched int // items retrieved from upstream
	New     int // raw items actually inserted
	Errors  int // sources that failed after retries
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg config.IngestConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Run fetches every configured source with bounded concurrency and
// saves the results. A failing source is logged and skipped; it never
// aborts the others.
func (f *Fetcher) Run(ctx context.Context, st *store.Store, sources []config.SourceConfig) (Result, error) {
	var res Result
	if len(sources) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	var all []model.RawItem

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxConcurrent)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			items, err := f.Fetch(gctx, src)
			if err != nil {
				logging.Warn("ingest: source failed", "provider", src.Provider, "error", err)
				mu.Lock()
				res.Errors++
				mu.Unlock()
				return nil // isolate source failures
			}
			mu.Lock()
			all = append(all, items...)
			res.Fetched += len(items)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	newCount, err := st.SaveRawItems(all)
	if err != nil {
		return res, fmt.Errorf("save raw items: %w", err)
	}
	res.New = newCount
	return res, nil
}

// Fetch retrieves one source, retrying transient failures with bounded
// exponential backoff. Retry lives here at the boundary; the pipeline
// core never retries.
func (f *Fetcher) Fetch(ctx context.Context, src config.SourceConfig) ([]model.RawItem, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		items, err := f.fetchOnce(ctx, src)
		if err == nil {
			return items, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after %d attempts: %w", f.cfg.MaxRetries+1, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, src config.SourceConfig) ([]model.RawItem, error) {
	if err := f.limiterFor(src.URL).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "sitrep/1.0 (+https://github.com/infblueocean/sitrep)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now()
	items := make([]model.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, convertEntry(entry, src, now))
	}
	return items, nil
}

// limiterFor returns the shared per-host rate limiter.
func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.cfg.PerHostRPS), 1)
		f.limiters[host] = lim
	}
	return lim
}

// convertEntry maps one feed entry to a RawItem. The provider-local id
// prefers the feed GUID and falls back to a hash of the link so the
// (provider, provider_id) pair stays stable across fetches.
func convertEntry(entry *gofeed.Item, src config.SourceConfig, fetched time.Time) model.RawItem {
	providerID := entry.GUID
	if providerID == "" {
		sum := sha256.Sum256([]byte(entry.Link))
		providerID = hex.EncodeToString(sum[:])[:16]
	}

	published := fetched
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	snippet := strings.TrimSpace(entry.Description)
	if snippet == "" && entry.Content != "" {
		snippet = strings.TrimSpace(entry.Content)
	}
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}

	return model.RawItem{
		ID:          uuid.NewString(),
		Provider:    src.Provider,
		ProviderID:  providerID,
		Title:       strings.TrimSpace(entry.Title),
		Snippet:     snippet,
		URL:         entry.Link,
		Domain:      domainOf(entry.Link),
		Country:     src.Country,
		PublishedAt: published,
		FetchedAt:   fetched,
	}
}

func domainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
