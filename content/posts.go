package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/gitpress/retry"
	"github.com/eringen/gitpress/slug"
	"github.com/eringen/gitpress/store"
)

const (
	blogDir = "content/blog"

	maxTitleLen = 300
	maxPostSize = 1 << 20
)

// Post is a blog post. Content is the raw file including frontmatter.
type Post struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

// Body returns the post content without its frontmatter.
func (p Post) Body() string {
	return stripFrontmatter(p.Content)
}

func postPath(id string) string {
	return blogDir + "/" + id + ".md"
}

func parsePost(id string, raw []byte) Post {
	content := string(raw)
	title := parseTitle(content)
	if title == "" {
		title = id
	}
	return Post{ID: id, Title: title, Content: content, Date: parseDate(content)}
}

// postID returns the id of a file directly inside the blog directory, or
// false for anything else.
func postID(filePath string) (string, bool) {
	dir, name := path.Split(filePath)
	if dir != blogDir+"/" || !strings.HasSuffix(name, ".md") {
		return "", false
	}
	id := strings.TrimSuffix(name, ".md")
	if !safeID(id) {
		return "", false
	}
	return id, true
}

func sortPosts(posts []Post) {
	slices.SortFunc(posts, func(a, b Post) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func postListKeys(repo store.Repository) (fast, dir string) {
	key := store.Key(repo)
	return "blog-posts-fast:" + key, "blog-posts-dir:" + key
}

func postKey(repo store.Repository, id string) string {
	return "blog-post:" + store.Key(repo) + ":" + id
}

func (s *Service) invalidatePosts(repo store.Repository) {
	fast, dir := postListKeys(repo)
	s.postLists.Delete(fast)
	s.postLists.Delete(dir)
	s.posts.DeletePrefix("blog-post:" + store.Key(repo) + ":")
}

// ListPosts returns every post, newest first. A missing repository or blog
// directory is an empty list.
func (s *Service) ListPosts(ctx context.Context, repo store.Repository) ([]Post, error) {
	fastKey, dirKey := postListKeys(repo)
	if posts, ok := s.postLists.Get(fastKey); ok {
		return slices.Clone(posts), nil
	}
	if posts, ok := s.postLists.Get(dirKey); ok {
		return slices.Clone(posts), nil
	}

	posts, err := s.listPostsFast(ctx, repo)
	if err == nil {
		s.postLists.Set(fastKey, posts, s.config.CacheTTL)
		return slices.Clone(posts), nil
	}
	s.logger.Debug("tree listing failed, falling back to directory listing",
		"repo", store.Key(repo),
		"error", err,
	)

	posts, err = s.listPostsFallback(ctx, repo)
	if err == nil {
		s.postLists.Set(dirKey, posts, s.config.CacheTTL)
		return slices.Clone(posts), nil
	}

	for _, key := range []string{fastKey, dirKey} {
		if stale, ok := s.postLists.GetStale(key); ok {
			s.logger.Warn("serving stale post list", "repo", store.Key(repo), "error", err)
			return slices.Clone(stale), nil
		}
	}
	return nil, err
}

// listPostsFast reads the whole tree in one call and fetches post blobs in
// parallel.
func (s *Service) listPostsFast(ctx context.Context, repo store.Repository) ([]Post, error) {
	branch, err := retry.Do(ctx, s.config.Retry, "default branch", func(ctx context.Context, attempt int) (string, error) {
		return repo.DefaultBranch(ctx)
	})
	if err != nil {
		return nil, err
	}
	tree, err := retry.Do(ctx, s.config.Retry, "tree", func(ctx context.Context, attempt int) ([]store.TreeEntry, error) {
		return repo.ListTree(ctx, branch)
	})
	if err != nil {
		return nil, err
	}

	type blob struct{ id, sha string }
	var blobs []blob
	for _, entry := range tree {
		if entry.Type != store.TypeFile {
			continue
		}
		if id, ok := postID(entry.Path); ok {
			blobs = append(blobs, blob{id: id, sha: entry.SHA})
		}
	}

	posts := make([]Post, len(blobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, b := range blobs {
		g.Go(func() error {
			raw, err := retry.Do(gctx, s.config.Retry, "blob "+b.id, func(ctx context.Context, attempt int) ([]byte, error) {
				return repo.ReadBlob(ctx, b.sha)
			})
			if err != nil {
				return fmt.Errorf("reading post %s: %w", b.id, err)
			}
			posts[i] = parsePost(b.id, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortPosts(posts)
	return posts, nil
}

// listPostsFallback lists the blog directory and reads each file.
func (s *Service) listPostsFallback(ctx context.Context, repo store.Repository) ([]Post, error) {
	result, err := s.read(ctx, repo, blogDir)
	if errors.Is(err, store.ErrNotFound) {
		return []Post{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []store.Entry
	switch r := result.(type) {
	case store.DirectoryResult:
		entries = r.Entries
	case store.NotFoundResult:
		return []Post{}, nil
	case store.FileResult:
		return nil, &store.Error{Op: "list", Path: blogDir, Kind: store.ErrNotFound, Err: errors.New("path is a file")}
	}

	var ids []string
	for _, entry := range entries {
		if entry.Type != store.TypeFile {
			continue
		}
		if id, ok := postID(entry.Path); ok {
			ids = append(ids, id)
		}
	}

	posts := make([]Post, len(ids))
	found := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			result, err := s.read(gctx, repo, postPath(id))
			if err != nil {
				return fmt.Errorf("reading post %s: %w", id, err)
			}
			if file, ok := result.(store.FileResult); ok {
				posts[i] = parsePost(id, file.File.Content)
				found[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A file deleted between the listing and its read is skipped.
	kept := posts[:0]
	for i, post := range posts {
		if found[i] {
			kept = append(kept, post)
		}
	}
	sortPosts(kept)
	return kept, nil
}

// maxIDLen matches the file name limit of common filesystems.
const maxIDLen = 255

// safeID reports whether id names a single file inside the blog directory.
// Ids of files added outside gitpress need not be slugs.
func safeID(id string) bool {
	return id != "" && id != "." && id != ".." &&
		len(id)+len(".md") <= maxIDLen &&
		!strings.ContainsAny(id, "/\\\x00")
}

func validatePostID(id string) error {
	if !safeID(id) {
		return invalid("id", "%q is not a post id", id)
	}
	return nil
}

func validatePost(title, body string) error {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return invalid("title", "must not be empty")
	case len(title) > maxTitleLen:
		return invalid("title", "longer than %d bytes", maxTitleLen)
	case strings.ContainsAny(title, "\r\n"):
		return invalid("title", "must be a single line")
	case len(body) > maxPostSize:
		return invalid("content", "larger than %d bytes", maxPostSize)
	}
	return nil
}

// GetPost returns the post with the given id.
func (s *Service) GetPost(ctx context.Context, repo store.Repository, id string) (Post, error) {
	if err := validatePostID(id); err != nil {
		return Post{}, err
	}
	return cached(s, s.posts, postKey(repo, id), func() (Post, error) {
		file, err := s.readPost(ctx, repo, id)
		if err != nil {
			return Post{}, err
		}
		return parsePost(id, file.Content), nil
	})
}

// readPost reads post id authoritatively.
func (s *Service) readPost(ctx context.Context, repo store.Repository, id string) (store.File, error) {
	result, err := s.read(ctx, repo, postPath(id))
	if errors.Is(err, store.ErrNotFound) {
		return store.File{}, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	if err != nil {
		return store.File{}, err
	}
	file, ok := result.(store.FileResult)
	if !ok {
		return store.File{}, fmt.Errorf("%w: %s", ErrPostNotFound, id)
	}
	return file.File, nil
}

// CreatePost writes a new post and returns it. The id is the slug of the
// title; a post already at that id is an error matching store.ErrExists.
func (s *Service) CreatePost(ctx context.Context, repo store.Repository, title, body string) (Post, error) {
	if err := validatePost(title, body); err != nil {
		return Post{}, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return Post{}, err
	}

	title = strings.TrimSpace(title)
	now := s.now()
	id := slug.Make(title, now)
	raw := formatPost(title, now.Format(isoMillis), stripFrontmatter(body))

	_, err := s.write(ctx, repo, postPath(id), []byte(raw), "Create post: "+title, "")
	if err != nil {
		return Post{}, fmt.Errorf("creating post %s: %w", id, err)
	}
	s.invalidatePosts(repo)
	s.logger.Info("post created", "repo", store.Key(repo), "id", id)
	return parsePost(id, []byte(raw)), nil
}

// UpdatePost replaces the title and body of post id, keeping its date. When
// the new title slugs to a different id the post is renamed: the new file is
// created first and the old one deleted only after that succeeds. If the
// delete fails the returned post is the renamed one and the error matches
// ErrRenameIncomplete.
func (s *Service) UpdatePost(ctx context.Context, repo store.Repository, id, title, body string) (Post, error) {
	if err := validatePostID(id); err != nil {
		return Post{}, err
	}
	if err := validatePost(title, body); err != nil {
		return Post{}, err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return Post{}, err
	}

	file, err := s.readPost(ctx, repo, id)
	if err != nil {
		return Post{}, err
	}

	title = strings.TrimSpace(title)
	now := s.now()
	date := parseDate(string(file.Content))
	if date == "" {
		date = now.Format(isoMillis)
	}
	raw := []byte(formatPost(title, date, stripFrontmatter(body)))

	newID := id
	if slug.Clean(title) != "" {
		newID = slug.Make(title, now)
	}

	defer s.invalidatePosts(repo)

	if newID == id {
		if _, err := s.write(ctx, repo, postPath(id), raw, "Update post: "+title, file.SHA); err != nil {
			return Post{}, fmt.Errorf("updating post %s: %w", id, err)
		}
		return parsePost(id, raw), nil
	}

	if _, err := s.write(ctx, repo, postPath(newID), raw, "Rename post: "+id+" -> "+newID, ""); err != nil {
		return Post{}, fmt.Errorf("renaming post %s to %s: %w", id, newID, err)
	}
	post := parsePost(newID, raw)
	if err := s.remove(ctx, repo, postPath(id), file.SHA, "Remove renamed post: "+id); err != nil {
		s.logger.Warn("post renamed but old file not deleted; both files exist",
			"repo", store.Key(repo),
			"old_id", id,
			"new_id", newID,
			"error", err,
		)
		return post, fmt.Errorf("%w: %s kept after creating %s: %w", ErrRenameIncomplete, id, newID, err)
	}
	s.logger.Info("post renamed", "repo", store.Key(repo), "old_id", id, "new_id", newID)
	return post, nil
}

// DeletePost removes post id. If the post changed since it was read the
// delete fails with store.ErrConflict and is not retried.
func (s *Service) DeletePost(ctx context.Context, repo store.Repository, id string) error {
	if err := validatePostID(id); err != nil {
		return err
	}
	if err := s.EnsureStructure(ctx, repo); err != nil {
		return err
	}

	file, err := s.readPost(ctx, repo, id)
	if err != nil {
		return err
	}
	defer s.invalidatePosts(repo)
	if err := s.remove(ctx, repo, postPath(id), file.SHA, "Delete post: "+id); err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}
	s.logger.Info("post deleted", "repo", store.Key(repo), "id", id)
	return nil
}
