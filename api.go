package gitpress

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/gitpress/content"
	"github.com/eringen/gitpress/store"
)

type loginRequest struct {
	Token string `json:"token" form:"token"`
}

type postRequest struct {
	Title   string `json:"title" form:"title"`
	Content string `json:"content" form:"content"`
}

type thoughtRequest struct {
	Content string `json:"content" form:"content"`
	Image   string `json:"image" form:"image"`
}

type aboutRequest struct {
	Content string `json:"content" form:"content"`
}

// repo returns the authenticated caller's own content repository.
func (a *App) repo(c echo.Context) store.Repository {
	token, _ := c.Get(ctxToken).(string)
	return a.Backend.Repository(token, CurrentUser(c))
}

func (a *App) handleLoginPage(c echo.Context) error {
	if login, _, ok := sessionUser(c); ok {
		return c.Redirect(http.StatusSeeOther, UserURL("/", login))
	}
	return Render(c, a.Views.Login(false, CsrfToken(c)))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	login, err := a.Backend.Authenticate(c.Request().Context(), req.Token)
	if errors.Is(err, store.ErrUnauthorized) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("login failed", "ip", ip)
		if wantsJSON(c) {
			return err
		}
		return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(true, CsrfToken(c)))
	}
	if err != nil {
		return err
	}
	if err := setUserSession(c, login, req.Token); err != nil {
		return err
	}
	a.Logger.Info("login", "user", login, "ip", ip)
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"login": login})
	}
	return c.Redirect(http.StatusSeeOther, UserURL("/", login))
}

func handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, "/auth/login/")
}

func (a *App) handleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"login":     CurrentUser(c),
		"csrfToken": CsrfToken(c),
		"profile":   UserURL(a.Config.URL, CurrentUser(c)),
	})
}

func (a *App) handleBootstrap(c echo.Context) error {
	if err := a.Content.EnsureStructure(c.Request().Context(), a.repo(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleListPosts(c echo.Context) error {
	posts, err := a.Content.ListPosts(c.Request().Context(), a.repo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(posts))
}

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Content.GetPost(c.Request().Context(), a.repo(c), c.Param("id"))
	if err != nil {
		return err
	}
	resp, err := postResponse(c, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	post, err := a.Content.CreatePost(c.Request().Context(), a.repo(c), req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	post, err := a.Content.UpdatePost(c.Request().Context(), a.repo(c), c.Param("id"), req.Title, req.Content)
	if errors.Is(err, content.ErrRenameIncomplete) && post.ID != "" {
		// The renamed post is saved; only the old file survived.
		return c.JSON(http.StatusOK, PostResponse{Post: post, Warning: err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Content.DeletePost(c.Request().Context(), a.repo(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleListThoughts(c echo.Context) error {
	thoughts, err := a.Content.ListThoughts(c.Request().Context(), a.repo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list(thoughts))
}

func (a *App) handleCreateThought(c echo.Context) error {
	var req thoughtRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	thought, err := a.Content.CreateThought(c.Request().Context(), a.repo(c), req.Content, req.Image)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, thought)
}

func (a *App) handleUpdateThought(c echo.Context) error {
	var req thoughtRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	thought, err := a.Content.UpdateThought(c.Request().Context(), a.repo(c), c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, thought)
}

func (a *App) handleDeleteThought(c echo.Context) error {
	if err := a.Content.DeleteThought(c.Request().Context(), a.repo(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleGetAbout(c echo.Context) error {
	return a.writeAbout(c, a.repo(c))
}

func (a *App) handleCreateAbout(c echo.Context) error {
	var req aboutRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	about, err := a.Content.CreateAbout(c.Request().Context(), a.repo(c), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, about)
}

func (a *App) handleUpdateAbout(c echo.Context) error {
	var req aboutRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	about, err := a.Content.UpdateAbout(c.Request().Context(), a.repo(c), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, about)
}
