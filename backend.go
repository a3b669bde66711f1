package gitpress

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eringen/gitpress/cache"
	"github.com/eringen/gitpress/github"
	"github.com/eringen/gitpress/localstore"
	"github.com/eringen/gitpress/store"
)

// Backend resolves credentials and hands out content repositories.
type Backend interface {
	// Authenticate returns the login a token belongs to, or an error
	// matching store.ErrUnauthorized.
	Authenticate(ctx context.Context, token string) (string, error)

	// Repository returns owner's content repository accessed with token.
	// An empty token gives anonymous, read-only access.
	Repository(token, owner string) store.Repository
}

// GitHubBackend keeps content in a repository in each user's GitHub
// account.
type GitHubBackend struct {
	config   SiteConfig
	logger   *slog.Logger
	http     *http.Client
	anon     *github.Client
	clients  *cache.Cache[*github.Client]
	branches *cache.Cache[string]
}

// NewGitHubBackend creates a GitHubBackend from cfg. A nil httpClient uses
// the github package default.
func NewGitHubBackend(cfg SiteConfig, httpClient *http.Client, logger *slog.Logger) (*GitHubBackend, error) {
	anon, err := github.NewClient(github.Config{BaseURL: cfg.GitHubAPIURL, HTTPClient: httpClient, Logger: logger})
	if err != nil {
		return nil, err
	}
	return &GitHubBackend{
		config:   cfg,
		logger:   logger,
		http:     httpClient,
		anon:     anon,
		clients:  cache.New[*github.Client](cfg.CacheMaxEntries, nil),
		branches: cache.New[string](cfg.CacheMaxEntries, nil),
	}, nil
}

// tokenKey keeps raw tokens out of cache keys.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// client returns a client bound to token, reusing one per token so its
// ETag cache survives across requests.
func (b *GitHubBackend) client(token string) (*github.Client, error) {
	if token == "" {
		return b.anon, nil
	}
	key := tokenKey(token)
	if c, ok := b.clients.Get(key); ok {
		return c, nil
	}
	c, err := github.NewClient(github.Config{BaseURL: b.config.GitHubAPIURL, Token: token, HTTPClient: b.http, Logger: b.logger})
	if err != nil {
		return nil, err
	}
	b.clients.Set(key, c, time.Hour)
	return c, nil
}

func (b *GitHubBackend) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", &store.Error{Op: "authenticate", Kind: store.ErrUnauthorized}
	}
	c, err := b.client(token)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()
	user, err := c.AuthenticatedUser(ctx)
	if err != nil {
		return "", store.FromGitHub("authenticate", "", err)
	}
	if user.Login == "" {
		return "", &store.Error{Op: "authenticate", Kind: store.ErrUnauthorized}
	}
	return user.Login, nil
}

func (b *GitHubBackend) Repository(token, owner string) store.Repository {
	c, err := b.client(token)
	if err != nil {
		// The base URL was validated when the anonymous client was built.
		panic(fmt.Sprintf("gitpress: github client: %v", err))
	}
	return store.NewGitHub(store.GitHubConfig{
		Client:   c,
		Owner:    owner,
		Repo:     b.config.RepoName,
		Timeout:  b.config.RequestTimeout,
		Branches: b.branches,
		Private:  b.config.PrivateRepos,
		Logger:   b.logger,
	})
}

// LocalBackend keeps content in SQLite and accepts a single configured
// token.
type LocalBackend struct {
	db       *localstore.DB
	token    string
	user     string
	repoName string
}

// NewLocalBackend opens the SQLite store named by cfg.LocalStorePath. Raw
// files are served by the App under /raw.
func NewLocalBackend(cfg SiteConfig) (*LocalBackend, error) {
	db, err := localstore.Open(cfg.LocalStorePath, strings.TrimRight(cfg.URL, "/")+"/raw")
	if err != nil {
		return nil, fmt.Errorf("gitpress: opening local store: %w", err)
	}
	return &LocalBackend{db: db, token: cfg.LocalToken, user: cfg.LocalUser, repoName: cfg.RepoName}, nil
}

func (b *LocalBackend) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(b.token)) != 1 {
		return "", &store.Error{Op: "authenticate", Kind: store.ErrUnauthorized}
	}
	return b.user, nil
}

func (b *LocalBackend) Repository(token, owner string) store.Repository {
	return b.db.Repository(owner, b.repoName)
}

// Close closes the SQLite store.
func (b *LocalBackend) Close() error {
	return b.db.Close()
}
