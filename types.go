package gitpress

import (
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/gitpress/content"
)

// ViewFuncs holds the templ components the App renders for browser
// requests. API routes never touch them.
type ViewFuncs struct {
	Profile     func(page ProfilePage) templ.Component
	Post        func(page PostPage) templ.Component
	Login       func(showError bool, csrfToken string) templ.Component
	NotFound    func() templ.Component
	RateLimited func(retryAfter time.Duration) templ.Component
	ServerError func() templ.Component
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// ProfilePage is everything a user's public front page shows.
type ProfilePage struct {
	Meta     PageMeta
	SiteName string
	User     string
	Posts    []content.Post
	Thoughts []content.Thought
	About    *content.About
	FeedURL  string
	JsonLD   string
}

// PostPage is a single published post.
type PostPage struct {
	Meta     PageMeta
	SiteName string
	User     string
	Post     content.Post
	UserURL  string
	JsonLD   string
}
