// Package console is the application root. It builds the token store,
// API client, session, router and feature containers once per process and
// hands them to the command and MCP surfaces.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/api"
	"github.com/wg-gen-plus/wgconsole/internal/config"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/router"
	"github.com/wg-gen-plus/wgconsole/internal/session"
	"github.com/wg-gen-plus/wgconsole/internal/state"
	"github.com/wg-gen-plus/wgconsole/internal/store"
)

// App holds the per-process object graph.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	State   *state.State
	API     *api.Client
	Session *session.Session
	Router  *router.Router

	Clients *store.Clients
	Server  *store.Server
	Status  *store.Status
	Users   *store.Users
}

// Open opens the token store at cfg.StatePath and builds the App.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	st, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	return New(cfg, st, logger), nil
}

// retryBackoff is the wait before the first retry of a transient failure.
const retryBackoff = 250 * time.Millisecond

// New builds the App around an already opened token store.
func New(cfg *config.Config, st *state.State, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := api.NewClient(cfg.APIURL, st, api.NewHTTPClient(cfg.RequestTimeout), logger)
	client.SetRetry(cfg.RequestRetries, retryBackoff)
	sess := session.New(client, st, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		State:   st,
		API:     client,
		Session: sess,
		Router:  router.New(sess),
		Clients: store.NewClients(client, cfg.BannerTimeout, logger),
		Server:  store.NewServer(client, st, cfg.BannerTimeout, logger),
		Status:  store.NewStatus(client, cfg.BannerTimeout, logger),
		Users:   store.NewUsers(client, cfg.BannerTimeout, logger),
	}
}

// Start rehydrates the session from the token store and asks the backend
// which login path it offers. Neither step fails.
func (a *App) Start(ctx context.Context) {
	a.Session.InitAuth(ctx)
	a.Session.CheckAuthType(ctx)
}

// Close releases the token store lock.
func (a *App) Close() error {
	return a.State.Close()
}

// Page is a resolved navigation together with the data its view shows.
type Page struct {
	Route router.Route
	// Redirected is true when the guard or the catch-all sent the user
	// somewhere other than the requested path.
	Redirected bool

	Clients []models.Client
	Server  *models.Server
	Status  models.Status
	Users   []models.User
}

// Navigate waits for any background profile fetch, resolves path through
// the route guard and loads the data the destination view needs. Load
// failures are returned alongside the page so the caller can still render
// the banner.
func (a *App) Navigate(ctx context.Context, path string) (Page, error) {
	if err := a.Session.WaitProfile(ctx); err != nil {
		return Page{}, err
	}

	route, redirected := a.Router.Resolve(path)
	page := Page{Route: route, Redirected: redirected}

	var err error

	switch route.Path {
	case router.Clients:
		page.Clients, err = a.Clients.Fetch(ctx)
	case router.Server:
		page.Server, err = a.Server.Read(ctx)
	case router.Status:
		page.Status, err = a.Status.Refresh(ctx)
	case router.Users:
		page.Users, err = a.Users.Fetch(ctx)
	}

	return page, err
}

// Banner returns the visible error banner of the container backing route,
// or "".
func (a *App) Banner(route router.Route) string {
	var b *store.Banner

	switch route.Path {
	case router.Clients:
		b = a.Clients.Banner
	case router.Server:
		b = a.Server.Banner
	case router.Status:
		b = a.Status.Banner
	case router.Users:
		b = a.Users.Banner
	default:
		return ""
	}

	if !b.Visible() {
		return ""
	}

	return b.Message()
}
