package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eringen/gitpress/store"
)

func TestCreatePost_FileFormat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	post, err := env.service.CreatePost(ctx, env.repo, "My First Post!", "Hello **world**.")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.ID != "my-first-post" {
		t.Errorf("ID = %q, want my-first-post", post.ID)
	}

	want := "---\ntitle: My First Post!\ndate: 2026-05-04T10:00:00.000Z\n---\n\nHello **world**."
	if got := env.readFile(t, "content/blog/my-first-post.md"); got != want {
		t.Errorf("file =\n%s\nwant\n%s", got, want)
	}

	got, err := env.service.GetPost(ctx, env.repo, "my-first-post")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Title != "My First Post!" || got.Date != "2026-05-04T10:00:00.000Z" {
		t.Errorf("post = %+v", got)
	}
	if got.Body() != "Hello **world**." {
		t.Errorf("Body = %q", got.Body())
	}

	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "my-first-post" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestCreatePost_DuplicateSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Same Title", "a"); err != nil {
		t.Fatal(err)
	}
	_, err := env.service.CreatePost(ctx, env.repo, "same   title", "b")
	if !errors.Is(err, store.ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
	if got := env.readFile(t, "content/blog/same-title.md"); !strings.HasSuffix(got, "\n\na") {
		t.Errorf("original post overwritten: %q", got)
	}
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name  string
		title string
		body  string
	}{
		{"empty title", "", "body"},
		{"blank title", "   ", "body"},
		{"multi-line title", "one\ntwo", "body"},
		{"long title", strings.Repeat("x", maxTitleLen+1), "body"},
		{"huge body", "ok", strings.Repeat("x", maxPostSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.CreatePost(context.Background(), env.repo, tt.title, tt.body)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
	if n := env.repo.totalWrites(); n != 0 {
		t.Errorf("%d writes reached the store, want 0", n)
	}
}

func TestGetPost_InvalidAndMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t)

	if _, err := env.service.GetPost(ctx, env.repo, "../../README"); !errors.Is(err, ErrInvalid) {
		t.Errorf("traversal id: err = %v, want ErrInvalid", err)
	}
	if _, err := env.service.GetPost(ctx, env.repo, "no-such-post"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("missing post: err = %v, want ErrPostNotFound", err)
	}
}

func TestUpdatePost_SameSlugKeepsDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Stable", "v1"); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(48 * time.Hour)

	post, err := env.service.UpdatePost(ctx, env.repo, "stable", "Stable", "v2")
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if post.ID != "stable" {
		t.Errorf("ID = %q, want stable", post.ID)
	}
	if post.Date != "2026-05-04T10:00:00.000Z" {
		t.Errorf("Date = %q, want the original date", post.Date)
	}
	if post.Body() != "v2" {
		t.Errorf("Body = %q, want v2", post.Body())
	}
}

func TestUpdatePost_AcceptsFullFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Stable", "v1"); err != nil {
		t.Fatal(err)
	}
	post, err := env.service.UpdatePost(ctx, env.repo, "stable", "Stable", "---\ntitle: Old\ndate: 1999-01-01\n---\n\nv2")
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if strings.Count(post.Content, "title:") != 1 || post.Date != "2026-05-04T10:00:00.000Z" {
		t.Errorf("content = %q", post.Content)
	}
}

func TestUpdatePost_Rename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Old Name", "body"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.ListPosts(ctx, env.repo); err != nil {
		t.Fatal(err)
	}

	post, err := env.service.UpdatePost(ctx, env.repo, "old-name", "New Name", "body")
	if err != nil {
		t.Fatalf("UpdatePost: %v", err)
	}
	if post.ID != "new-name" {
		t.Errorf("ID = %q, want new-name", post.ID)
	}
	if env.exists(t, "content/blog/old-name.md") {
		t.Error("old file still exists")
	}
	if !env.exists(t, "content/blog/new-name.md") {
		t.Error("new file missing")
	}

	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].ID != "new-name" {
		t.Errorf("posts after rename = %+v, want only new-name", posts)
	}
}

func TestUpdatePost_RenameDeleteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Old Name", "body"); err != nil {
		t.Fatal(err)
	}

	deleteErr := &store.Error{Op: "delete", Kind: store.ErrUnauthorized}
	env.repo.beforeDelete = func(string) error { return deleteErr }

	post, err := env.service.UpdatePost(ctx, env.repo, "old-name", "New Name", "body")
	if !errors.Is(err, ErrRenameIncomplete) {
		t.Fatalf("err = %v, want ErrRenameIncomplete", err)
	}
	if !errors.Is(err, store.ErrUnauthorized) {
		t.Errorf("err = %v, want it to wrap the delete failure", err)
	}
	if post.ID != "new-name" {
		t.Errorf("returned ID = %q, want new-name", post.ID)
	}

	got, err := env.service.GetPost(ctx, env.repo, "new-name")
	if err != nil {
		t.Fatalf("GetPost(new-name): %v", err)
	}
	if got.Title != "New Name" {
		t.Errorf("Title = %q", got.Title)
	}
	if !env.exists(t, "content/blog/old-name.md") {
		t.Error("old file should remain after a failed delete")
	}
}

func TestUpdatePost_RenameOntoExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, title := range []string{"First", "Second"} {
		if _, err := env.service.CreatePost(ctx, env.repo, title, title); err != nil {
			t.Fatal(err)
		}
	}
	_, err := env.service.UpdatePost(ctx, env.repo, "first", "Second", "x")
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}
	if !env.exists(t, "content/blog/first.md") {
		t.Error("source post deleted although the rename failed")
	}
}

func TestUpdatePost_Missing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.UpdatePost(context.Background(), env.repo, "ghost", "Ghost", "x")
	if !errors.Is(err, ErrPostNotFound) {
		t.Errorf("err = %v, want ErrPostNotFound", err)
	}
}

func TestDeletePost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Doomed", "x"); err != nil {
		t.Fatal(err)
	}
	if err := env.service.DeletePost(ctx, env.repo, "doomed"); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if _, err := env.service.GetPost(ctx, env.repo, "doomed"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetPost after delete: err = %v, want ErrPostNotFound", err)
	}
	if err := env.service.DeletePost(ctx, env.repo, "doomed"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("second delete: err = %v, want ErrPostNotFound", err)
	}
}

func TestDeletePost_ConcurrentEditSurfacesConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Contested", "v1"); err != nil {
		t.Fatal(err)
	}

	path := "content/blog/contested.md"
	env.repo.beforeDelete = func(string) error {
		file, err := store.ReadFile(ctx, env.local, path)
		if err != nil {
			return err
		}
		_, err = env.local.WriteFile(ctx, path, []byte("edited elsewhere"), "edit", file.SHA)
		return err
	}

	err := env.service.DeletePost(ctx, env.repo, "contested")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if n := env.repo.deletes[path]; n != 1 {
		t.Errorf("delete attempts = %d, want 1", n)
	}
	if got := env.readFile(t, path); got != "edited elsewhere" {
		t.Errorf("file = %q, want the concurrent edit kept", got)
	}
}

func TestListPosts_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		if _, err := env.service.CreatePost(ctx, env.repo, title, title); err != nil {
			t.Fatal(err)
		}
		env.clock.Advance(time.Hour)
	}
	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "gamma,beta,alpha" {
		t.Errorf("order = %v, want gamma,beta,alpha", ids)
	}
}

func TestListPosts_FallbackWhenTreeFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Only", "x"); err != nil {
		t.Fatal(err)
	}
	env.repo.treeErr = &store.Error{Op: "tree", Err: errors.New("truncated")}

	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "only" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestListPosts_StaleWhenBothPathsFail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Cached", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.ListPosts(ctx, env.repo); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(env.service.config.CacheTTL + 1)
	env.repo.setReadErr(&store.Error{Op: "fetch", Kind: store.ErrTransient})

	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "cached" {
		t.Errorf("posts = %+v, want the stale list", posts)
	}
}

func TestListPosts_RateLimitSurfacesWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t)
	env.repo.setReadErr(&store.RateLimitError{})

	_, err := env.service.ListPosts(context.Background(), env.repo)
	if !errors.Is(err, store.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestListPosts_MissingRepository(t *testing.T) {
	env := newTestEnv(t)
	posts, err := env.service.ListPosts(context.Background(), env.db.Repository("nobody", "gitpress-content"))
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("got %d posts, want 0", len(posts))
	}
}

func TestPostID(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"content/blog/hello.md", "hello", true},
		{"content/blog/.gitkeep", "", false},
		{"content/blog/drafts/x.md", "", false},
		{"content/blogroll.md", "", false},
		{"content/blog/.md", "", false},
		{"content/blog/My_Notes.md", "My_Notes", true},
		{"content/blog/...md", "", false},
	}
	for _, tt := range tests {
		got, ok := postID(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("postID(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGetPost_DeletedElsewhereNotServedStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Hello", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.GetPost(ctx, env.repo, "hello"); err != nil {
		t.Fatalf("GetPost: %v", err)
	}

	file, err := store.ReadFile(ctx, env.local, "content/blog/hello.md")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.local.DeleteFile(ctx, "content/blog/hello.md", file.SHA, "remove"); err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(time.Hour)

	for i := 0; i < 2; i++ {
		if _, err := env.service.GetPost(ctx, env.repo, "hello"); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("read %d: err = %v, want ErrPostNotFound", i, err)
		}
	}
}

func TestGetPost_TransientErrorServesStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.service.CreatePost(ctx, env.repo, "Hello", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.service.GetPost(ctx, env.repo, "hello"); err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	env.clock.Advance(time.Hour)
	env.repo.setReadErr(&store.Error{Op: "fetch", Kind: store.ErrTransient})

	post, err := env.service.GetPost(ctx, env.repo, "hello")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Body() != "hi" {
		t.Errorf("Body = %q, want hi", post.Body())
	}
}

func TestPostBody_PreservedByteForByte(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"crlf", "line one\r\nline two\r\n"},
		{"leading blank lines", "\n\n    code block"},
		{"fence in body", "intro\n---\nafter rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			created, err := env.service.CreatePost(ctx, env.repo, "Round Trip", tt.body)
			if err != nil {
				t.Fatalf("CreatePost: %v", err)
			}
			if got := created.Body(); got != tt.body {
				t.Errorf("created Body = %q, want %q", got, tt.body)
			}
			env.clock.Advance(time.Hour)
			got, err := env.service.GetPost(ctx, env.repo, created.ID)
			if err != nil {
				t.Fatalf("GetPost: %v", err)
			}
			if got.Body() != tt.body {
				t.Errorf("Body = %q, want %q", got.Body(), tt.body)
			}
		})
	}
}

func TestPosts_HandAddedFileName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t)

	const path = "content/blog/My_Notes.md"
	raw := "---\ntitle: Notes\ndate: 2026-05-01T00:00:00.000Z\n---\n\nwritten by hand"
	if _, err := env.local.WriteFile(ctx, path, []byte(raw), "add", ""); err != nil {
		t.Fatal(err)
	}

	posts, err := env.service.ListPosts(ctx, env.repo)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "My_Notes" {
		t.Fatalf("posts = %+v, want one post My_Notes", posts)
	}

	post, err := env.service.GetPost(ctx, env.repo, "My_Notes")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Title != "Notes" || post.Body() != "written by hand" {
		t.Errorf("post = %+v", post)
	}

	if err := env.service.DeletePost(ctx, env.repo, "My_Notes"); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if env.exists(t, path) {
		t.Error("file still present after DeletePost")
	}
}
