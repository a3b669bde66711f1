// Package gitpress serves blog posts, thoughts, an about page and images
// kept in a GitHub repository owned by each author, built with Go, Echo,
// and templ.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// gitpress handles the routes, sessions, and the content service that
// reads and writes the repository.
package gitpress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/gitpress/cache"
	"github.com/eringen/gitpress/clock"
	"github.com/eringen/gitpress/content"
	"github.com/eringen/gitpress/retry"
)

// App is the central gitpress application. It wires together the backend,
// content service, handlers, middleware, and user-provided templates.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Backend Backend
	Content *content.Service
	Views   ViewFuncs
	Logger  *slog.Logger

	clock        clock.Clock
	logins       *cache.Cache[string]
	loginLimiter *Limiter
	writeLimiter *Limiter
	customRoutes []func(*App)
	ready        bool
}

// New creates a new gitpress App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	if a.clock == nil {
		a.clock = clock.Real()
	}
	return a
}

// Setup validates the configuration, creates the backend and content
// service, and registers middleware and routes. Start calls it; tests call
// it directly and drive a.Echo with httptest.
func (a *App) Setup() error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	if a.Backend == nil {
		backend, err := a.newBackend()
		if err != nil {
			return err
		}
		a.Backend = backend
	}

	a.Content = content.New(content.Config{
		CacheTTL:        a.Config.CacheTTL,
		CacheMaxEntries: a.Config.CacheMaxEntries,
		Description:     a.Config.RepoDescription,
		Retry: retry.Policy{
			MaxAttempts: a.Config.RetryMaxAttempts,
			BaseDelay:   a.Config.RetryBaseDelay,
			MaxDelay:    a.Config.RetryMaxDelay,
		},
		Clock:  a.clock,
		Logger: a.Logger,
	})

	a.logins = cache.New[string](a.Config.CacheMaxEntries, a.clock)
	a.loginLimiter = NewLimiter(a.Config.LoginAttempts, a.Config.LoginWindow, a.clock)
	a.writeLimiter = NewLimiter(a.Config.WriteLimit, a.Config.WriteWindow, a.clock)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

func (a *App) newBackend() (Backend, error) {
	if a.Config.Local() {
		a.Logger.Info("using local store", "path", a.Config.LocalStorePath, "user", a.Config.LocalUser)
		return NewLocalBackend(a.Config)
	}
	return NewGitHubBackend(a.Config, nil, a.Logger)
}

// Start sets the App up and serves until Shutdown is called.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Logger.Info("gitpress listening", "addr", a.Config.Addr, "url", a.Config.URL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/healthz", handleHealth)
	e.GET("/", a.handleHome)

	// Public routes
	e.GET("/u/:user/", a.handleProfile)
	e.GET("/u/:user/posts/:id/", a.handlePostPage)
	e.GET("/u/:user/feed.xml", a.handleFeed)
	e.GET("/u/:user/sitemap.xml", a.handleSitemap)

	public := e.Group("/api/public/:user")
	public.GET("/posts", a.handlePublicPosts)
	public.GET("/posts/:id", a.handlePublicPost)
	public.GET("/thoughts", a.handlePublicThoughts)
	public.GET("/about", a.handlePublicAbout)

	// Auth routes
	e.GET("/auth/login/", a.handleLoginPage)
	e.POST("/auth/login/", a.handleLogin)
	e.POST("/auth/logout/", handleLogout)

	// Author API
	api := e.Group("/api", a.requireAuth)
	api.GET("/me", a.handleMe)
	api.GET("/posts", a.handleListPosts)
	api.GET("/posts/:id", a.handleGetPost)
	api.POST("/posts", a.handleCreatePost, a.limitWrites)
	api.PUT("/posts/:id", a.handleUpdatePost, a.limitWrites)
	api.DELETE("/posts/:id", a.handleDeletePost, a.limitWrites)
	api.GET("/thoughts", a.handleListThoughts)
	api.POST("/thoughts", a.handleCreateThought, a.limitWrites)
	api.PUT("/thoughts/:id", a.handleUpdateThought, a.limitWrites)
	api.DELETE("/thoughts/:id", a.handleDeleteThought, a.limitWrites)
	api.GET("/about", a.handleGetAbout)
	api.POST("/about", a.handleCreateAbout, a.limitWrites)
	api.PUT("/about", a.handleUpdateAbout, a.limitWrites)
	api.POST("/images", a.handleImageUpload, a.limitWrites, imageBodyLimit())
	api.POST("/bootstrap", a.handleBootstrap, a.limitWrites)

	if local, ok := a.Backend.(*LocalBackend); ok {
		e.GET("/raw/:owner/:repo/:branch/*", a.handleRaw(local))
	}
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.writeLimiter != nil {
		a.writeLimiter.Close()
	}
	if closer, ok := a.Backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("gitpress: closing backend: %w", err)
		}
	}
	return nil
}

// ShutdownTimeout bounds graceful shutdown in the serve command.
const ShutdownTimeout = 10 * time.Second

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("gitpress: required environment variable %s is not set", key)
	}
	return v
}
