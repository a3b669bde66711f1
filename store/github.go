package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/eringen/gitpress/cache"
	"github.com/eringen/gitpress/github"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultBranchTTL   = 10 * time.Minute
)

// GitHubConfig configures a GitHub-backed Repository.
type GitHubConfig struct {
	Client *github.Client
	Owner  string
	Repo   string

	// Timeout bounds every remote call. Defaults to 10s.
	Timeout time.Duration

	// Branches caches default branch lookups across requests. Optional.
	Branches *cache.Cache[string]

	// Private makes Create produce a private repository.
	Private bool

	Logger *slog.Logger
}

// GitHub is a Repository stored in a GitHub repository through the REST
// contents, trees and blobs APIs.
type GitHub struct {
	client   *github.Client
	owner    string
	repo     string
	timeout  time.Duration
	branches *cache.Cache[string]
	private  bool
	logger   *slog.Logger
}

// NewGitHub returns a Repository for owner/repo.
func NewGitHub(config GitHubConfig) *GitHub {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	branches := config.Branches
	if branches == nil {
		branches = cache.New[string](64, nil)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHub{
		client:   config.Client,
		owner:    config.Owner,
		repo:     config.Repo,
		timeout:  timeout,
		branches: branches,
		private:  config.Private,
		logger:   logger,
	}
}

func (g *GitHub) Owner() string { return g.owner }

func (g *GitHub) Name() string { return g.repo }

// call runs fn under the per-call timeout and maps the outcome onto the
// store error kinds.
func (g *GitHub) call(ctx context.Context, op, path string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !github.IsRateLimited(err) {
		return &Error{Op: op, Path: path, Kind: ErrTimeout, Err: err}
	}
	return FromGitHub(op, path, err)
}

// FromGitHub maps a GitHub client error onto the store error kinds.
func FromGitHub(op, path string, err error) error {
	var apiError *github.APIError
	switch {
	case errors.As(err, &apiError) && github.IsRateLimited(err):
		reset := apiError.RateLimitReset
		if apiError.RetryAfter > 0 {
			reset = time.Now().Add(apiError.RetryAfter)
		}
		return &RateLimitError{Reset: reset, Err: err}
	case github.IsNotFound(err):
		return &Error{Op: op, Path: path, Kind: ErrNotFound, Err: err}
	case github.IsConflict(err):
		return &Error{Op: op, Path: path, Kind: ErrConflict, Err: err}
	case github.IsMissingSHA(err) || github.IsAlreadyExists(err):
		return &Error{Op: op, Path: path, Kind: ErrExists, Err: err}
	case github.IsUnauthorized(err) || (apiError != nil && apiError.StatusCode == http.StatusForbidden):
		return &Error{Op: op, Path: path, Kind: ErrUnauthorized, Err: err}
	case github.IsServerError(err):
		return &Error{Op: op, Path: path, Kind: ErrTransient, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Op: op, Path: path, Kind: ErrTimeout, Err: err}
	}
	var netError net.Error
	if errors.As(err, &netError) {
		return &Error{Op: op, Path: path, Kind: ErrTransient, Err: err}
	}
	return &Error{Op: op, Path: path, Err: err}
}

func (g *GitHub) Fetch(ctx context.Context, path string) (Result, error) {
	var contents *github.Contents
	err := g.call(ctx, "fetch", path, func(ctx context.Context) error {
		var err error
		contents, err = g.client.GetContents(ctx, g.owner, g.repo, path, "")
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return NotFoundResult{Path: path}, nil
	}
	if err != nil {
		return nil, err
	}

	if contents.IsDir() {
		entries := make([]Entry, 0, len(contents.Entries))
		for _, e := range contents.Entries {
			entryType := TypeFile
			if e.Type == "dir" {
				entryType = TypeDir
			}
			entries = append(entries, Entry{Name: e.Name, Path: e.Path, Type: entryType, SHA: e.SHA})
		}
		return DirectoryResult{Path: path, Entries: entries}, nil
	}

	content, err := decodeBase64(contents.File.Content)
	if err != nil {
		return nil, &Error{Op: "fetch", Path: path, Err: err}
	}
	return FileResult{File: File{Path: path, Content: content, SHA: contents.File.SHA}}, nil
}

func (g *GitHub) WriteFile(ctx context.Context, path string, content []byte, message, expectedSHA string) (string, error) {
	var result *github.ContentsCommit
	err := g.call(ctx, "write", path, func(ctx context.Context) error {
		var err error
		result, err = g.client.PutContents(ctx, g.owner, g.repo, path, github.PutContentsRequest{
			Message: message,
			Content: base64.StdEncoding.EncodeToString(content),
			SHA:     expectedSHA,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if result.Content == nil {
		return "", nil
	}
	return result.Content.SHA, nil
}

func (g *GitHub) DeleteFile(ctx context.Context, path, expectedSHA, message string) error {
	return g.call(ctx, "delete", path, func(ctx context.Context) error {
		return g.client.DeleteContents(ctx, g.owner, g.repo, path, github.DeleteContentsRequest{
			Message: message,
			SHA:     expectedSHA,
		})
	})
}

func (g *GitHub) ListTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	var tree *github.Tree
	err := g.call(ctx, "tree", ref, func(ctx context.Context) error {
		var err error
		tree, err = g.client.GetTree(ctx, g.owner, g.repo, ref, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tree.Truncated {
		return nil, &Error{Op: "tree", Path: ref, Err: errors.New("tree listing truncated")}
	}
	entries := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		switch e.Type {
		case "blob":
			entries = append(entries, TreeEntry{Path: e.Path, Type: TypeFile, SHA: e.SHA})
		case "tree":
			entries = append(entries, TreeEntry{Path: e.Path, Type: TypeDir, SHA: e.SHA})
		}
	}
	return entries, nil
}

func (g *GitHub) ReadBlob(ctx context.Context, sha string) ([]byte, error) {
	var blob *github.Blob
	err := g.call(ctx, "blob", sha, func(ctx context.Context) error {
		var err error
		blob, err = g.client.GetBlob(ctx, g.owner, g.repo, sha)
		return err
	})
	if err != nil {
		return nil, err
	}
	if blob.Encoding != "" && blob.Encoding != "base64" {
		return []byte(blob.Content), nil
	}
	content, err := decodeBase64(blob.Content)
	if err != nil {
		return nil, &Error{Op: "blob", Path: sha, Err: err}
	}
	return content, nil
}

func (g *GitHub) DefaultBranch(ctx context.Context) (string, error) {
	key := "default-branch:" + Key(g)
	if branch, ok := g.branches.Get(key); ok {
		return branch, nil
	}
	info, err := g.Info(ctx)
	if err != nil {
		if branch, ok := g.branches.GetStale(key); ok {
			g.logger.Warn("serving stale default branch", "repo", Key(g), "error", err)
			return branch, nil
		}
		return "", err
	}
	return info.DefaultBranch, nil
}

func (g *GitHub) Info(ctx context.Context) (RepoInfo, error) {
	var repository *github.Repository
	err := g.call(ctx, "info", "", func(ctx context.Context) error {
		var err error
		repository, err = g.client.GetRepository(ctx, g.owner, g.repo)
		return err
	})
	if err != nil {
		return RepoInfo{}, err
	}
	branch := repository.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	g.branches.Set("default-branch:"+Key(g), branch, defaultBranchTTL)
	return RepoInfo{
		Owner:         g.owner,
		Name:          repository.Name,
		Description:   repository.Description,
		DefaultBranch: branch,
	}, nil
}

func (g *GitHub) Create(ctx context.Context, description string) error {
	return g.call(ctx, "create", "", func(ctx context.Context) error {
		_, err := g.client.CreateRepository(ctx, github.CreateRepositoryRequest{
			Name:        g.repo,
			Description: description,
			Private:     g.private,
			AutoInit:    true,
		})
		return err
	})
}

func (g *GitHub) SetDescription(ctx context.Context, description string) error {
	return g.call(ctx, "describe", "", func(ctx context.Context) error {
		_, err := g.client.UpdateRepository(ctx, g.owner, g.repo, github.UpdateRepositoryRequest{
			Description: &description,
		})
		return err
	})
}

func (g *GitHub) RawURL(branch, path string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", g.owner, g.repo, branch, strings.TrimPrefix(path, "/"))
}

// decodeBase64 decodes GitHub's line-wrapped base64.
func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(s))
}
