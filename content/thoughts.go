package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/eringen/gitpress/retry"
	"github.com/eringen/gitpress/store"
)

const (
	ledgerPath = "content/thoughts.json"

	maxThoughtLen = 10000
)

// Thought is one entry of the thoughts ledger.
type Thought struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image,omitempty"`
}

func thoughtsKey(repo store.Repository) string {
	return "thoughts:" + store.Key(repo)
}

// ledger is the thoughts file as read: its entries and the sha to
// condition the next write on. An absent ledger has no sha.
type ledger struct {
	thoughts []Thought
	sha      string
}

func (s *Service) readLedger(ctx context.Context, repo store.Repository) (ledger, error) {
	result, err := repo.Fetch(ctx, ledgerPath)
	if errors.Is(err, store.ErrNotFound) {
		return ledger{}, nil
	}
	if err != nil {
		return ledger{}, err
	}
	switch r := result.(type) {
	case store.FileResult:
		thoughts, err := decodeLedger(r.File.Content)
		if err != nil {
			return ledger{}, err
		}
		return ledger{thoughts: thoughts, sha: r.File.SHA}, nil
	case store.NotFoundResult:
		return ledger{}, nil
	default:
		return ledger{}, fmt.Errorf("%w: %s is a directory", ErrCorruptLedger, ledgerPath)
	}
}

func decodeLedger(raw []byte) ([]Thought, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []Thought{}, nil
	}
	var thoughts []Thought
	if err := json.Unmarshal(raw, &thoughts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptLedger, err)
	}
	if thoughts == nil {
		thoughts = []Thought{}
	}
	return thoughts, nil
}

func encodeLedger(thoughts []Thought) ([]byte, error) {
	raw, err := json.MarshalIndent(thoughts, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// mutateLedger applies mutate to the current ledger and writes the result
// conditioned on the sha it was read at. On a conflict the whole cycle runs
// again against fresh state, so a concurrent writer's entries survive.
func (s *Service) mutateLedger(ctx context.Context, repo store.Repository, message string, mutate func([]Thought) ([]Thought, error)) ([]Thought, error) {
	thoughts, err := retry.Do(ctx, s.config.Retry, "ledger", func(ctx context.Context, attempt int) ([]Thought, error) {
		current, err := s.readLedger(ctx, repo)
		if err != nil {
			return nil, err
		}
		next, err := mutate(slices.Clone(current.thoughts))
		if err != nil {
			return nil, err
		}
		raw, err := encodeLedger(next)
		if err != nil {
			return nil, err
		}
		_, err = repo.WriteFile(ctx, ledgerPath, raw, message, current.sha)
		if current.sha == "" && errors.Is(err, store.ErrExists) {
			// Another writer created the ledger after we saw it absent.
			return nil, &store.Error{Op: "write", Path: ledgerPath, Kind: store.ErrConflict, Err: err}
		}
		if err != nil {
			return nil, err
		}
		if attempt > 1 {
			s.logger.Debug("ledger write succeeded after conflict", "repo", store.Key(repo), "attempt", attempt)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.thoughts.Set(thoughtsKey(repo), thoughts, s.config.CacheTTL)
	return thoughts, nil
}

// ListThoughts returns the ledger, newest first.
func (s *Service) ListThoughts(ctx context.Context, repo store.Repository) ([]Thought, error) {
	return cloned(cached(s, s.thoughts, thoughtsKey(repo), func() ([]Thought, error) {
		current, err := retry.Do(ctx, s.config.Retry, "read ledger", func(ctx context.Context, attempt int) (ledger, error) {
			return s.readLedger(ctx, repo)
		})
		if err != nil {
			return nil, err
		}
		if current.thoughts == nil {
			return []Thought{}, nil
		}
		return current.thoughts, nil
	}))
}

func validateThought(content string) error {
	switch {
	case strings.TrimSpace(content) == "":
		return invalid("content", "must not be empty")
	case len(content) > maxThoughtLen:
		return invalid("content", "longer than %d bytes", maxThoughtLen)
	}
	return nil
}

func validateImageURL(image string) error {
	if image == "" {
		return nil
	}
	u, err := url.Parse(image)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return invalid("image", "%q is not an http(s) URL", image)
	}
	return nil
}

// CreateThought prepends a thought to the ledger.
func (s *Service) CreateThought(ctx context.Context, repo store.Repository, content, image string) (Thought, error) {
	if err := validateThought(content); err != nil {
		return Thought{}, err
	}
	if err := validateImageURL(image); err != nil {
		return Thought{}, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return Thought{}, err
	}

	millis := s.ids.nextMillis()
	timestamp := s.now().Format(isoMillis)
	var thought Thought
	_, err := s.mutateLedger(ctx, repo, "Add thought", func(thoughts []Thought) ([]Thought, error) {
		// Ids grow with the ledger even when another process wrote an id
		// from a clock ahead of ours.
		id := millis
		for _, t := range thoughts {
			if n, err := strconv.ParseInt(t.ID, 10, 64); err == nil && n >= id {
				id = n + 1
			}
		}
		thought = Thought{
			ID:        strconv.FormatInt(id, 10),
			Content:   content,
			Timestamp: timestamp,
			Image:     image,
		}
		return append([]Thought{thought}, thoughts...), nil
	})
	if err != nil {
		return Thought{}, fmt.Errorf("creating thought: %w", err)
	}
	s.logger.Info("thought created", "repo", store.Key(repo), "id", thought.ID)
	return thought, nil
}

// UpdateThought replaces the content of thought id.
func (s *Service) UpdateThought(ctx context.Context, repo store.Repository, id, content string) (Thought, error) {
	if err := validateThought(content); err != nil {
		return Thought{}, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return Thought{}, err
	}

	var updated Thought
	_, err := s.mutateLedger(ctx, repo, "Update thought", func(thoughts []Thought) ([]Thought, error) {
		i := slices.IndexFunc(thoughts, func(t Thought) bool { return t.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrThoughtNotFound, id)
		}
		thoughts[i].Content = content
		updated = thoughts[i]
		return thoughts, nil
	})
	if err != nil {
		return Thought{}, fmt.Errorf("updating thought %s: %w", id, err)
	}
	return updated, nil
}

// DeleteThought removes thought id from the ledger.
func (s *Service) DeleteThought(ctx context.Context, repo store.Repository, id string) error {
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return err
	}
	_, err := s.mutateLedger(ctx, repo, "Delete thought", func(thoughts []Thought) ([]Thought, error) {
		kept := slices.DeleteFunc(thoughts, func(t Thought) bool { return t.ID == id })
		if len(kept) == len(thoughts) {
			return nil, fmt.Errorf("%w: %s", ErrThoughtNotFound, id)
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("deleting thought %s: %w", id, err)
	}
	s.logger.Info("thought deleted", "repo", store.Key(repo), "id", id)
	return nil
}
