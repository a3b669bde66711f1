package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eringen/gitpress"
	"github.com/eringen/gitpress/content"
)

func render(t *testing.T, render func(*bytes.Buffer) error) string {
	t.Helper()
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestProfile(t *testing.T) {
	page := gitpress.ProfilePage{
		Meta:     gitpress.PageMeta{Title: "alice · gitpress", URL: "http://example.test/u/alice/"},
		User:     "alice",
		Posts:    []content.Post{{ID: "hello-world", Title: "Hello <World>", Date: "2026-05-04T10:00:00.000Z"}},
		Thoughts: []content.Thought{{ID: "1", Content: "<b>hm</b>", Timestamp: "2026-05-04T10:00:00.000Z"}},
		About:    &content.About{Content: "I *write*"},
		FeedURL:  "http://example.test/u/alice/feed.xml",
		JsonLD:   `{"@type":"ProfilePage"}`,
	}
	got := render(t, func(buf *bytes.Buffer) error {
		return Default().Profile(page).Render(context.Background(), buf)
	})

	for _, want := range []string{
		`<a href="posts/hello-world/">Hello &lt;World&gt;</a>`,
		`4 May 2026`,
		`&lt;b&gt;hm&lt;/b&gt;`,
		`<em>write</em>`,
		`{"@type":"ProfilePage"}`,
		`<link rel="canonical" href="http://example.test/u/alice/">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("profile missing %q\n%s", want, got)
		}
	}
}

func TestPostBody(t *testing.T) {
	post := content.Post{
		ID:      "hello",
		Title:   "Hello",
		Date:    "2026-05-04T10:00:00.000Z",
		Content: "---\ntitle: Hello\ndate: 2026-05-04T10:00:00.000Z\n---\n\n# Heading\n\n<script>alert(1)</script>",
	}
	got := render(t, func(buf *bytes.Buffer) error {
		return Default().Post(gitpress.PostPage{Post: post, User: "alice"}).Render(context.Background(), buf)
	})
	if strings.Contains(got, "title: Hello") {
		t.Errorf("frontmatter rendered:\n%s", got)
	}
	if !strings.Contains(got, "Heading</h1>") {
		t.Errorf("heading missing:\n%s", got)
	}
	if strings.Contains(got, "<script>alert") {
		t.Errorf("raw html passed through:\n%s", got)
	}
}

func TestLoginCarriesCSRF(t *testing.T) {
	got := render(t, func(buf *bytes.Buffer) error {
		return Default().Login(true, "tok123").Render(context.Background(), buf)
	})
	if !strings.Contains(got, `name="_csrf" value="tok123"`) || !strings.Contains(got, "not accepted") {
		t.Errorf("login page:\n%s", got)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"iso date", FormatDate("2026-05-04T10:00:00.000Z"), "4 May 2026"},
		{"plain date", FormatDate("2026-05-04"), "4 May 2026"},
		{"bad date", FormatDate("someday"), "someday"},
		{"thought time", ThoughtTime("2026-05-04T10:30:00.000Z"), "4 May 2026 10:30"},
		{"retry after", RetryAfter(1500 * time.Millisecond), "2"},
		{"retry after floor", RetryAfter(0), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
