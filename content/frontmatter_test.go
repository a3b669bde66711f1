package content

import "testing"

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantTitle string
		wantDate  string
	}{
		{"canonical", "---\ntitle: Hello\ndate: 2026-05-04T10:00:00.000Z\n---\n\nbody", "Hello", "2026-05-04T10:00:00.000Z"},
		{"crlf and padding", "---\r\ntitle:   Spaced out  \r\ndate: 2026-01-01\r\n---\r\n", "Spaced out", "2026-01-01"},
		{"not yaml", "---\ntitle: Colons: everywhere: [unbalanced\n---\n", "Colons: everywhere: [unbalanced", ""},
		{"first line wins", "title: one\ntitle: two\n", "one", ""},
		{"indented is ignored", "---\n  title: nested\n---\n", "", ""},
		{"no frontmatter", "just text", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTitle(tt.raw); got != tt.wantTitle {
				t.Errorf("title = %q, want %q", got, tt.wantTitle)
			}
			if got := parseDate(tt.raw); got != tt.wantDate {
				t.Errorf("date = %q, want %q", got, tt.wantDate)
			}
		})
	}
}

func TestStripFrontmatter(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"---\ntitle: A\ndate: B\n---\n\nbody\n", "body\n"},
		{"---\r\ntitle: A\r\n---\r\n\r\nbody", "body"},
		{"no frontmatter", "no frontmatter"},
		{"---\nunterminated", "---\nunterminated"},
		{"---\ntitle: A\n---", ""},
		{"---\ntitle: A\n---\n\nline one\r\nline two\r\n", "line one\r\nline two\r\n"},
		{"---\ntitle: A\n---\n\n\n\nindented start", "\n\nindented start"},
		{"---\ntitle: A\n---not a fence\n---\nbody", "body"},
	}
	for _, tt := range tests {
		if got := stripFrontmatter(tt.raw); got != tt.want {
			t.Errorf("stripFrontmatter(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPost_MissingTitleFallsBackToID(t *testing.T) {
	post := parsePost("untitled-thing", []byte("body only"))
	if post.Title != "untitled-thing" {
		t.Errorf("Title = %q, want the id", post.Title)
	}
}
