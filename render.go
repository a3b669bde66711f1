package gitpress

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/gitpress/content"
	"github.com/eringen/gitpress/store"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// wantsJSON reports whether an error should be answered with JSON rather
// than a page.
func wantsJSON(c echo.Context) bool {
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		return true
	}
	if _, ok := bearerToken(c); ok {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// retryAfter is how long a rate-limited caller should wait.
func (a *App) retryAfter(err error) time.Duration {
	var rl *store.RateLimitError
	if errors.As(err, &rl) && !rl.Reset.IsZero() {
		if wait := rl.Reset.Sub(a.clock.Now()); wait > 0 {
			return wait
		}
		return time.Second
	}
	return time.Minute
}

func errorMessage(err error, code int) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
		return http.StatusText(he.Code)
	}
	var invalid *content.ValidationError
	switch {
	case errors.As(err, &invalid):
		return invalid.Error()
	case errors.Is(err, content.ErrCorruptLedger):
		return "the thoughts file in the content repository is not valid JSON"
	}
	switch code {
	case http.StatusTooManyRequests:
		return "GitHub rate limit reached, try again later"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "the content changed since it was loaded, reload and try again"
	case http.StatusUnauthorized:
		return "invalid or expired token"
	case http.StatusServiceUnavailable:
		return "GitHub is unavailable, try again later"
	default:
		return "internal server error"
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := errorStatus(err)
	msg := errorMessage(err, code)

	var wait time.Duration
	if code == http.StatusTooManyRequests && c.Response().Header().Get("Retry-After") == "" {
		wait = a.retryAfter(err)
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}

	if code >= http.StatusInternalServerError {
		a.Logger.Error("request failed", "method", c.Request().Method, "uri", c.Request().RequestURI, "status", code, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if wantsJSON(c) {
		_ = c.JSON(code, map[string]string{"error": msg})
		return
	}

	var page templ.Component
	switch {
	case code == http.StatusNotFound && a.Views.NotFound != nil:
		page = a.Views.NotFound()
	case code == http.StatusTooManyRequests && a.Views.RateLimited != nil:
		page = a.Views.RateLimited(wait)
	case code >= http.StatusInternalServerError && a.Views.ServerError != nil:
		page = a.Views.ServerError()
	}
	if page != nil {
		_ = RenderStatus(c, code, page)
		return
	}
	_ = c.String(code, msg)
}
