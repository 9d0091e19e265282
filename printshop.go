// Package printshop is the admin server for composing a print-shop
// homepage: ordered sections of ordered product cards, edited over a JSON
// API and stored in SQLite.
//
// Users may provide their own templ components for the admin pages via
// ViewFuncs; any left nil fall back to minimal built-in ones.
package printshop

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/eringen/printshop/activity"
	"github.com/eringen/printshop/homepage"
	"github.com/eringen/printshop/sectioncache"
)

// ViewFuncs holds templ components the server calls when rendering admin
// pages.
type ViewFuncs struct {
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(view sectioncache.View, products []homepage.ProductSummary, csrfToken string) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App wires together the store, homepage service, shared section cache,
// handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Service *homepage.Service
	Cache   *sectioncache.Cache
	Relay   *sectioncache.Relay
	Views   ViewFuncs

	loginLimiter  *LoginLimiter
	activityStore *activity.Store
	recorder      *activity.Recorder
	redis         *redis.Client
	ownsRedis     bool
	cancel        context.CancelFunc
	stops         []func()
	customRoutes  []func(*App)
	staticDir     string
}

// New creates an App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views.withDefaults(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true
	a.Echo.Logger.SetPrefix("printshop")
	a.Echo.Logger.SetLevel(cfg.logLevel())

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Init opens storage, builds the homepage service and cache, and registers
// middleware and routes. Start calls it; tests may call it directly and
// drive a.Echo with httptest.
func (a *App) Init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("printshop: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("printshop: SessionSecret is required")
	}
	logger := a.Echo.Logger

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("printshop: init store: %w", err)
	}
	a.Store = store

	svcOpts := []homepage.Option{homepage.WithLogger(logger)}
	if a.Config.ActivityEnabled {
		activityStore, err := activity.NewStore(a.Config.ActivityDatabasePath)
		if err != nil {
			return fmt.Errorf("printshop: init activity: %w", err)
		}
		a.activityStore = activityStore
		a.recorder = activity.NewRecorder(activityStore, logger, activity.DefaultQueueSize)
		a.stops = append(a.stops,
			activityStore.StartCleanupScheduler(a.Config.ActivityRetentionDays, 24*time.Hour, logger))
		svcOpts = append(svcOpts, homepage.WithActivitySink(a.recorder))
	}
	a.Service = homepage.NewService(a.Store, svcOpts...)
	a.Cache = sectioncache.New(a.Service.ListSections)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.redis == nil && a.Config.RedisURL != "" {
		opt, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("printshop: parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opt)
		a.ownsRedis = true
	}
	if a.redis != nil {
		a.Relay = sectioncache.NewRelay(a.redis, a.Config.RedisChannel, a.Cache, logger)
		go a.Relay.Run(ctx)
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	go a.Cache.Fetch(context.Background(), false)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Dashboard assets ship with the binary; everything else under /public
	// comes from staticDir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/admin.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/admin.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.staticDir)

	// Public, read-only
	e.GET("/api/homepage", a.handlePublicHomepage)

	// Admin pages
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	// Admin JSON API
	api := e.Group("/admin/api", requireAdmin)
	api.GET("/sections", a.handleListSections)
	api.GET("/sections/stream", a.handleSectionStream)
	api.POST("/sections", a.handleCreateSection)
	api.POST("/sections/reorder", a.handleReorderSections)
	api.GET("/sections/:id", a.handleGetSection)
	api.PUT("/sections/:id", a.handleUpdateSection)
	api.DELETE("/sections/:id", a.handleDeleteSection)
	api.POST("/sections/:id/move", a.handleMoveSection)
	api.POST("/sections/:id/items", a.handleAddItem)
	api.POST("/sections/:id/items/reorder", a.handleReorderItems)
	api.PUT("/sections/:id/items/:itemId", a.handleUpdateItem)
	api.POST("/sections/:id/items/:itemId/move", a.handleMoveItem)
	api.DELETE("/sections/:id/items/:itemId", a.handleRemoveItem)
	api.GET("/products", a.handleListProducts)
	api.DELETE("/cache/error", a.handleDismissError)

	if a.activityStore != nil {
		activity.NewHandler(a.activityStore).RegisterRoutes(api)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	for _, stop := range a.stops {
		stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.activityStore != nil {
		a.activityStore.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.redis != nil && a.ownsRedis {
		a.redis.Close()
	}
	return nil
}
