package gitpress

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/gitpress/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// UserURL is the public front page of user.
func UserURL(base, user string) string {
	return BuildURL(base, "u", user)
}

// PostURL is the public page of one of user's posts.
func PostURL(base, user, id string) string {
	return BuildURL(base, "u", user, "posts", id)
}

// Summary returns the first paragraph of a post body, cut to at most n
// runes.
func Summary(post content.Post, n int) string {
	body := strings.TrimSpace(post.Body())
	if i := strings.Index(body, "\n\n"); i >= 0 {
		body = body[:i]
	}
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// PersonJsonLD returns a JSON-LD string for a ProfilePage schema.
func PersonJsonLD(cfg SiteConfig, user string) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "ProfilePage",
		"url":      UserURL(cfg.URL, user),
		"mainEntity": map[string]string{
			"@type": "Person",
			"name":  user,
		},
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(cfg SiteConfig, user string, post content.Post) string {
	postURL := PostURL(cfg.URL, user, post.ID)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   Summary(post, 160),
		"datePublished": post.Date,
		"url":           postURL,
		"author": map[string]string{
			"@type": "Person",
			"name":  user,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
