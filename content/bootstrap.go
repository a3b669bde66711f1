package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eringen/gitpress/retry"
	"github.com/eringen/gitpress/store"
)

// skeleton lists the files every content repository needs, with the
// content they are created with.
var skeleton = []struct {
	path    string
	content string
}{
	{"content/.gitkeep", ""},
	{"content/blog/.gitkeep", ""},
	{ledgerPath, "[]\n"},
}

func bootstrapKey(repo store.Repository) string {
	return "bootstrapped:" + store.Key(repo)
}

func readme(repo store.Repository) string {
	return fmt.Sprintf(`# %s

This repository holds content published with gitpress.

- content/blog/ holds blog posts, one markdown file each
- content/thoughts.json holds short thoughts, newest first
- content/about.md holds the about page
- assets/images/ holds uploaded images

Files may be edited directly. Keep the title: and date: lines at the top of
each post.
`, repo.Name())
}

// EnsureStructure creates the repository and its skeleton if they are
// missing. It is idempotent and safe to run concurrently: every write only
// happens after a read found nothing, and losing a creation race to another
// request counts as success. A successful run is remembered for
// BootstrapTTL.
func (s *Service) EnsureStructure(ctx context.Context, repo store.Repository) error {
	key := bootstrapKey(repo)
	if _, ok := s.bootstrapped.Get(key); ok {
		return nil
	}

	if err := s.ensureRepository(ctx, repo); err != nil {
		return fmt.Errorf("bootstrapping %s: %w", store.Key(repo), err)
	}
	if err := s.ensureReadme(ctx, repo); err != nil {
		return fmt.Errorf("bootstrapping %s: %w", store.Key(repo), err)
	}
	for _, f := range skeleton {
		if err := s.ensureFile(ctx, repo, f.path, f.content); err != nil {
			return fmt.Errorf("bootstrapping %s: %w", store.Key(repo), err)
		}
	}

	s.bootstrapped.Set(key, struct{}{}, s.config.BootstrapTTL)
	return nil
}

func lostRace(err error) bool {
	return errors.Is(err, store.ErrExists) || errors.Is(err, store.ErrConflict)
}

func (s *Service) ensureRepository(ctx context.Context, repo store.Repository) error {
	info, err := retry.Do(ctx, s.config.Retry, "repository info", func(ctx context.Context, attempt int) (store.RepoInfo, error) {
		return repo.Info(ctx)
	})
	if errors.Is(err, store.ErrNotFound) {
		err := retry.Run(ctx, s.config.Retry, "create repository", func(ctx context.Context, attempt int) error {
			return repo.Create(ctx, s.config.Description)
		})
		if err != nil && !lostRace(err) {
			return err
		}
		s.logger.Info("content repository created", "repo", store.Key(repo))
		return nil
	}
	if err != nil {
		return err
	}
	if info.Description == "" {
		return retry.Run(ctx, s.config.Retry, "set description", func(ctx context.Context, attempt int) error {
			return repo.SetDescription(ctx, s.config.Description)
		})
	}
	return nil
}

// isPlaceholderReadme reports whether content is empty or what repository
// creation generates on its own.
func isPlaceholderReadme(repo store.Repository, content, description string) bool {
	trimmed := strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	heading := "# " + repo.Name()
	switch trimmed {
	case "", heading, heading + "\n\n" + strings.TrimSpace(description):
		return true
	}
	return false
}

func (s *Service) ensureReadme(ctx context.Context, repo store.Repository) error {
	const path = "README.md"
	result, err := s.read(ctx, repo, path)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	sha := ""
	switch r := result.(type) {
	case store.FileResult:
		if !isPlaceholderReadme(repo, string(r.File.Content), s.config.Description) {
			return nil
		}
		sha = r.File.SHA
	case store.DirectoryResult:
		return nil
	}
	_, err = s.write(ctx, repo, path, []byte(readme(repo)), "Describe content repository", sha)
	if err != nil && !lostRace(err) {
		return err
	}
	return nil
}

func (s *Service) ensureFile(ctx context.Context, repo store.Repository, path, content string) error {
	result, err := s.read(ctx, repo, path)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, missing := result.(store.NotFoundResult); !missing && err == nil {
		return nil
	}
	_, err = s.write(ctx, repo, path, []byte(content), "Create "+path, "")
	if err != nil && !lostRace(err) {
		return err
	}
	return nil
}
