package views

import (
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/eringen/gitpress/markdown"
)

// PathEscape wraps url.PathEscape for use in templates.
func PathEscape(s string) string {
	return url.PathEscape(s)
}

// FormatDate renders an ISO-8601 post date as "2 Jan 2006". Unparseable
// dates are shown as stored.
func FormatDate(date string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2 Jan 2006")
		}
	}
	return date
}

// ThoughtTime renders a thought timestamp with minutes.
func ThoughtTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("2 Jan 2006 15:04")
}

// RenderBody converts markdown to HTML for embedding. Raw HTML in the
// source is dropped by the renderer, so the result is trusted.
func RenderBody(md string) template.HTML {
	html, err := markdown.HTML(md)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(html)
}

// RetryAfter formats a wait as whole seconds.
func RetryAfter(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// JsonLD marks a JSON-LD document built with encoding/json as safe inside
// a script element. encoding/json already escapes <, > and &.
func JsonLD(s string) template.JS {
	return template.JS(s)
}
