package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/eringen/gitpress/store"
)

const aboutPath = "content/about.md"

// About is the about page. A repository without one yields a nil *About.
type About struct {
	Content string `json:"content"`
}

func aboutKey(repo store.Repository) string {
	return "about:" + store.Key(repo)
}

func validateAbout(content string) error {
	if len(content) > maxPostSize {
		return invalid("content", "larger than %d bytes", maxPostSize)
	}
	return nil
}

func (s *Service) readAbout(ctx context.Context, repo store.Repository) (*store.File, error) {
	result, err := s.read(ctx, repo, aboutPath)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r, ok := result.(store.FileResult); ok {
		return &r.File, nil
	}
	return nil, nil
}

// GetAbout returns the about page, or nil when there is none.
func (s *Service) GetAbout(ctx context.Context, repo store.Repository) (*About, error) {
	return cached(s, s.abouts, aboutKey(repo), func() (*About, error) {
		file, err := s.readAbout(ctx, repo)
		if err != nil || file == nil {
			return nil, err
		}
		return &About{Content: string(file.Content)}, nil
	})
}

// CreateAbout writes the about page. It fails with store.ErrExists if the
// page already exists.
func (s *Service) CreateAbout(ctx context.Context, repo store.Repository, content string) (*About, error) {
	if err := validateAbout(content); err != nil {
		return nil, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return nil, err
	}
	if _, err := s.write(ctx, repo, aboutPath, []byte(content), "Create about page", ""); err != nil {
		s.abouts.Delete(aboutKey(repo))
		return nil, fmt.Errorf("creating about page: %w", err)
	}
	about := &About{Content: content}
	s.abouts.Set(aboutKey(repo), about, s.config.CacheTTL)
	return about, nil
}

// UpdateAbout replaces the about page, creating it when absent. The write
// is conditioned on the sha just read, and a conflict is returned to the
// caller rather than overwriting a concurrent edit.
func (s *Service) UpdateAbout(ctx context.Context, repo store.Repository, content string) (*About, error) {
	if err := validateAbout(content); err != nil {
		return nil, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return nil, err
	}

	current, err := s.readAbout(ctx, repo)
	if err != nil {
		return nil, err
	}
	sha, message := "", "Create about page"
	if current != nil {
		sha, message = current.SHA, "Update about page"
	}
	if _, err := s.write(ctx, repo, aboutPath, []byte(content), message, sha); err != nil {
		s.abouts.Delete(aboutKey(repo))
		return nil, fmt.Errorf("updating about page: %w", err)
	}
	about := &About{Content: content}
	s.abouts.Set(aboutKey(repo), about, s.config.CacheTTL)
	return about, nil
}
