// Package views holds the default pages gitpress renders for browsers.
// Sites that want their own look pass different components in
// gitpress.ViewFuncs.
package views

import (
	"context"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/gitpress"
)

var funcs = template.FuncMap{
	"pathEscape":  PathEscape,
	"formatDate":  FormatDate,
	"thoughtTime": ThoughtTime,
	"body":        RenderBody,
	"retryAfter":  RetryAfter,
	"jsonld":      JsonLD,
	"meta": func(title string) gitpress.PageMeta {
		return gitpress.PageMeta{Title: title}
	},
}

var pages = template.Must(template.New("pages").Funcs(funcs).Parse(layout))

// component adapts a named template to templ.Component.
func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Default returns the built-in pages.
func Default() gitpress.ViewFuncs {
	return gitpress.ViewFuncs{
		Profile: func(page gitpress.ProfilePage) templ.Component {
			return component("profile", page)
		},
		Post: func(page gitpress.PostPage) templ.Component {
			return component("post", page)
		},
		Login: func(showError bool, csrfToken string) templ.Component {
			return component("login", struct {
				ShowError bool
				CSRF      string
			}{showError, csrfToken})
		},
		NotFound: func() templ.Component {
			return component("notfound", nil)
		},
		RateLimited: func(retryAfter time.Duration) templ.Component {
			return component("ratelimited", retryAfter)
		},
		ServerError: func() templ.Component {
			return component("servererror", nil)
		},
	}
}

const layout = `
{{define "head"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{with .Description}}<meta name="description" content="{{.}}">{{end}}
{{with .URL}}<link rel="canonical" href="{{.}}"><meta property="og:url" content="{{.}}">{{end}}
<meta property="og:title" content="{{.Title}}">
{{with .OGType}}<meta property="og:type" content="{{.}}">{{end}}
</head>
<body>
{{end}}

{{define "foot"}}</body>
</html>
{{end}}

{{define "profile"}}{{template "head" .Meta}}
<header>
<h1>{{.User}}</h1>
<p><a href="{{.FeedURL}}">RSS</a></p>
</header>
<script type="application/ld+json">{{jsonld .JsonLD}}</script>
{{with .About}}<section class="about">{{body .Content}}</section>{{end}}
<section class="posts">
<h2>Posts</h2>
{{range .Posts}}<article>
<h3><a href="posts/{{pathEscape .ID}}/">{{.Title}}</a></h3>
<time datetime="{{.Date}}">{{formatDate .Date}}</time>
</article>
{{else}}<p>No posts yet.</p>
{{end}}</section>
<section class="thoughts">
<h2>Thoughts</h2>
{{range .Thoughts}}<article id="thought-{{.ID}}">
<p>{{.Content}}</p>
{{with .Image}}<img src="{{.}}" alt="" loading="lazy">{{end}}
<time datetime="{{.Timestamp}}">{{thoughtTime .Timestamp}}</time>
</article>
{{else}}<p>No thoughts yet.</p>
{{end}}</section>
{{template "foot"}}{{end}}

{{define "post"}}{{template "head" .Meta}}
<script type="application/ld+json">{{jsonld .JsonLD}}</script>
<article>
<h1>{{.Post.Title}}</h1>
<p><a href="{{.UserURL}}">{{.User}}</a> · <time datetime="{{.Post.Date}}">{{formatDate .Post.Date}}</time></p>
{{body .Post.Body}}
</article>
{{template "foot"}}{{end}}

{{define "login"}}{{template "head" (meta "Sign in")}}
<h1>Sign in</h1>
{{if .ShowError}}<p class="error">That token was not accepted.</p>{{end}}
<form method="post" action="/auth/login/">
<input type="hidden" name="_csrf" value="{{.CSRF}}">
<label>GitHub token <input type="password" name="token" autocomplete="off" required></label>
<button type="submit">Sign in</button>
</form>
{{template "foot"}}{{end}}

{{define "notfound"}}{{template "head" (meta "Not found")}}<h1>Not found</h1>{{template "foot"}}{{end}}

{{define "ratelimited"}}{{template "head" (meta "Slow down")}}<h1>Slow down</h1><p>GitHub is rate limiting requests. Try again in {{retryAfter .}} seconds.</p>{{template "foot"}}{{end}}

{{define "servererror"}}{{template "head" (meta "Server error")}}<h1>Something went wrong</h1>{{template "foot"}}{{end}}
`
