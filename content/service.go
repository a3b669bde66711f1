// Package content keeps blog posts, thoughts, the about page and images in a
// user's content repository.
//
// Every mutation follows the same flow: the repository skeleton is ensured,
// current state is read authoritatively, the new state is written with a sha
// precondition through the retry engine, and the cache is updated. Reads go
// through a bounded per-process cache and fall back to stale entries when the
// remote is unavailable.
package content

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/eringen/gitpress/cache"
	"github.com/eringen/gitpress/clock"
	"github.com/eringen/gitpress/retry"
	"github.com/eringen/gitpress/store"
)

// Config configures a Service. Zero fields take defaults.
type Config struct {
	// CacheTTL is how long listings stay fresh. Defaults to 5 minutes.
	CacheTTL time.Duration
	// CacheMaxEntries bounds each cache. Defaults to 500.
	CacheMaxEntries int
	// BootstrapTTL is how long a verified skeleton is trusted. Defaults to
	// one hour.
	BootstrapTTL time.Duration
	// Description is set on repositories that have none.
	Description string
	// FetchConcurrency bounds parallel file reads in ListPosts. Defaults
	// to 8.
	FetchConcurrency int

	Retry  retry.Policy
	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultDescription is the canonical repository description.
const DefaultDescription = "Blog posts and thoughts published with gitpress"

func (c *Config) setDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 500
	}
	if c.BootstrapTTL <= 0 {
		c.BootstrapTTL = time.Hour
	}
	if c.Description == "" {
		c.Description = DefaultDescription
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 8
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Retry.Clock == nil {
		c.Retry.Clock = c.Clock
	}
	if c.Retry.Logger == nil {
		c.Retry.Logger = c.Logger
	}
}

// Service implements the content operations. It is safe for concurrent use
// and holds no state beyond its caches, so any number of requests may act
// on the same repository at once.
type Service struct {
	config Config
	logger *slog.Logger
	clock  clock.Clock
	ids    *idSource

	postLists    *cache.Cache[[]Post]
	posts        *cache.Cache[Post]
	thoughts     *cache.Cache[[]Thought]
	abouts       *cache.Cache[*About]
	bootstrapped *cache.Cache[struct{}]
}

// New creates a Service.
func New(config Config) *Service {
	config.setDefaults()
	n := config.CacheMaxEntries
	return &Service{
		config:       config,
		logger:       config.Logger,
		clock:        config.Clock,
		ids:          &idSource{clock: config.Clock},
		postLists:    cache.New[[]Post](n, config.Clock),
		posts:        cache.New[Post](n, config.Clock),
		thoughts:     cache.New[[]Thought](n, config.Clock),
		abouts:       cache.New[*About](n, config.Clock),
		bootstrapped: cache.New[struct{}](n, config.Clock),
	}
}

// isoMillis matches the ISO-8601 timestamps stored in existing content.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// read fetches path with transient failures retried.
func (s *Service) read(ctx context.Context, repo store.Repository, path string) (store.Result, error) {
	return retry.Do(ctx, s.config.Retry, "read "+path, func(ctx context.Context, attempt int) (store.Result, error) {
		return repo.Fetch(ctx, path)
	})
}

// write performs one conditioned write. Conflicts are surfaced: the caller
// holds no fresh state to retry with.
func (s *Service) write(ctx context.Context, repo store.Repository, path string, content []byte, message, sha string) (string, error) {
	return retry.Do(ctx, s.config.Retry.WithoutConflictRetry(), "write "+path, func(ctx context.Context, attempt int) (string, error) {
		return repo.WriteFile(ctx, path, content, message, sha)
	})
}

func (s *Service) remove(ctx context.Context, repo store.Repository, path, sha, message string) error {
	return retry.Run(ctx, s.config.Retry.WithoutConflictRetry(), "delete "+path, func(ctx context.Context, attempt int) error {
		return repo.DeleteFile(ctx, path, sha, message)
	})
}

// cached returns a fresh entry, or runs load and stores its result. When
// load fails, a stale entry is served instead if one exists.
func cached[V any](s *Service, c *cache.Cache[V], key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		// Absence is an answer from the remote, not a failure to reach it.
		if isAbsent(err) {
			c.Delete(key)
			return v, err
		}
		if stale, ok := c.GetStale(key); ok {
			s.logger.Warn("serving stale content", "key", key, "error", err)
			return stale, nil
		}
		return v, err
	}
	c.Set(key, v, s.config.CacheTTL)
	return v, nil
}

func isAbsent(err error) bool {
	return errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrThoughtNotFound) ||
		errors.Is(err, store.ErrNotFound)
}

func cloned[T any](v []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return slices.Clone(v), nil
}
