package gitpress

import (
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/eringen/gitpress/content"
	"github.com/eringen/gitpress/markdown"
	"github.com/eringen/gitpress/store"
)

// validLogin matches GitHub user names.
var validLogin = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// publicRepo returns the anonymous view of a user's content repository.
// Private repositories are never served anonymously.
func (a *App) publicRepo(c echo.Context) (string, store.Repository, error) {
	user := c.Param("user")
	if a.Config.PrivateRepos || !validLogin.MatchString(user) {
		return "", nil, echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return user, a.Backend.Repository("", user), nil
}

// PostResponse is the JSON form of a post. HTML is set when the caller asks
// for ?format=html.
type PostResponse struct {
	content.Post
	HTML    string `json:"html,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func postResponse(c echo.Context, post content.Post) (PostResponse, error) {
	resp := PostResponse{Post: post}
	if c.QueryParam("format") == "html" {
		html, err := markdown.HTML(post.Body())
		if err != nil {
			return resp, err
		}
		resp.HTML = html
	}
	return resp, nil
}

// list keeps empty collections encoding as [] rather than null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (a *App) handleHome(c echo.Context) error {
	if login, _, ok := sessionUser(c); ok {
		return c.Redirect(http.StatusSeeOther, UserURL("/", login))
	}
	return c.Redirect(http.StatusSeeOther, "/auth/login/")
}

func (a *App) handleProfile(c echo.Context) error {
	user, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	posts, err := a.Content.ListPosts(ctx, repo)
	if err != nil {
		return err
	}
	thoughts, err := a.Content.ListThoughts(ctx, repo)
	if err != nil {
		return err
	}
	about, err := a.Content.GetAbout(ctx, repo)
	if err != nil {
		return err
	}
	userURL := UserURL(a.Config.URL, user)
	return Render(c, a.Views.Profile(ProfilePage{
		Meta: PageMeta{
			Title:       user + " · " + a.Config.Name,
			Description: "Posts and thoughts by " + user,
			URL:         userURL,
			OGType:      "website",
		},
		SiteName: a.Config.Name,
		User:     user,
		Posts:    posts,
		Thoughts: thoughts,
		About:    about,
		FeedURL:  userURL + "feed.xml",
		JsonLD:   PersonJsonLD(a.Config, user),
	}))
}

func (a *App) handlePostPage(c echo.Context) error {
	user, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	post, err := a.Content.GetPost(c.Request().Context(), repo, c.Param("id"))
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(PostPage{
		Meta: PageMeta{
			Title:       post.Title,
			Description: Summary(post, 160),
			URL:         PostURL(a.Config.URL, user, post.ID),
			OGType:      "article",
		},
		SiteName: a.Config.Name,
		User:     user,
		Post:     post,
		UserURL:  UserURL(a.Config.URL, user),
		JsonLD:   BlogPostingJsonLD(a.Config, user, post),
	}))
}

func (a *App) handleFeed(c echo.Context) error {
	user, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	posts, err := a.Content.ListPosts(c.Request().Context(), repo)
	if err != nil {
		return err
	}
	return a.renderRSS(c, user, posts)
}

func (a *App) handleSitemap(c echo.Context) error {
	user, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	posts, err := a.Content.ListPosts(c.Request().Context(), repo)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, user, posts)
}

func (a *App) handlePublicPosts(c echo.Context) error {
	_, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	posts, err := a.Content.ListPosts(c.Request().Context(), repo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(posts))
}

func (a *App) handlePublicPost(c echo.Context) error {
	_, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	post, err := a.Content.GetPost(c.Request().Context(), repo, c.Param("id"))
	if err != nil {
		return err
	}
	resp, err := postResponse(c, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handlePublicThoughts(c echo.Context) error {
	_, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	thoughts, err := a.Content.ListThoughts(c.Request().Context(), repo)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(thoughts))
}

func (a *App) handlePublicAbout(c echo.Context) error {
	_, repo, err := a.publicRepo(c)
	if err != nil {
		return err
	}
	return a.writeAbout(c, repo)
}

func (a *App) writeAbout(c echo.Context, repo store.Repository) error {
	about, err := a.Content.GetAbout(c.Request().Context(), repo)
	if err != nil {
		return err
	}
	if about == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no about page")
	}
	return c.JSON(http.StatusOK, about)
}
