package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wg-gen-plus/wgconsole/internal/api"
	"github.com/wg-gen-plus/wgconsole/internal/config"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/router"
	"github.com/wg-gen-plus/wgconsole/internal/session"
)

type backend struct {
	clientFetches atomic.Int32
	failClients   bool
	busyClients   atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/type", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.AuthType{IsLocal: true, AuthType: "local"})
	})
	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(api.HeaderName) != "T1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		writeJSON(w, http.StatusOK, models.User{Sub: "u1", Name: "alice"})
	})
	mux.HandleFunc("GET /client", func(w http.ResponseWriter, r *http.Request) {
		b.clientFetches.Add(1)

		if b.busyClients.Add(-1) >= 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backend busy"})
			return
		}

		if b.failClients {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database locked"})
			return
		}

		writeJSON(w, http.StatusOK, []models.Client{{ID: "c1", Name: "laptop"}})
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.User{{Sub: "u1", Name: "alice"}})
	})

	return mux
}

func newTestApp(t *testing.T, b *backend, opts ...func(*config.Config)) *App {
	t.Helper()

	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIURL:         srv.URL,
		StatePath:      filepath.Join(t.TempDir(), "state.db"),
		RequestTimeout: 5 * time.Second,
		BannerTimeout:  time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	app, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	return app
}

func TestNavigate_AnonymousIsSentHome(t *testing.T) {
	b := &backend{}
	app := newTestApp(t, b)
	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/clients")
	require.NoError(t, err)
	assert.Equal(t, router.Home, page.Route.Path)
	assert.True(t, page.Redirected)
	assert.Zero(t, b.clientFetches.Load(), "guard runs before any fetch")
	assert.True(t, app.Session.IsLocalAuth())
}

func TestNavigate_RestoredSessionLandsOnClients(t *testing.T) {
	b := &backend{}
	app := newTestApp(t, b)
	require.NoError(t, app.State.SaveSession("T1", &models.User{Sub: "u1", Name: "alice"}))

	app.Start(context.Background())
	require.True(t, app.Session.IsAuthenticated())

	page, err := app.Navigate(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, router.Clients, page.Route.Path)
	assert.True(t, page.Redirected)
	require.Len(t, page.Clients, 1)
	assert.Equal(t, "laptop", page.Clients[0].Name)
}

func TestNavigate_UnknownPathIsGuardedAgain(t *testing.T) {
	app := newTestApp(t, &backend{})
	require.NoError(t, app.State.SaveSession("T1", &models.User{Sub: "u1"}))
	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/nope")
	require.NoError(t, err)
	assert.Equal(t, router.Clients, page.Route.Path)
}

func TestNavigate_WaitsForProfileFetch(t *testing.T) {
	app := newTestApp(t, &backend{})
	require.NoError(t, app.State.SaveToken("T1"))

	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/users")
	require.NoError(t, err)
	assert.Equal(t, router.Users, page.Route.Path)
	assert.False(t, page.Redirected)
	assert.Equal(t, "alice", app.Session.User().Name)
	assert.Len(t, page.Users, 1)
}

func TestNavigate_StaleTokenIsDropped(t *testing.T) {
	app := newTestApp(t, &backend{})
	require.NoError(t, app.State.SaveToken("stale"))

	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/users")
	require.NoError(t, err)
	assert.Equal(t, router.Home, page.Route.Path)
	assert.Empty(t, app.State.Token())
	assert.Equal(t, session.StateError, app.Session.State())
}

func TestNavigate_LoadFailureShowsBanner(t *testing.T) {
	app := newTestApp(t, &backend{failClients: true})
	require.NoError(t, app.State.SaveSession("T1", &models.User{Sub: "u1"}))
	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/clients")
	require.Error(t, err)
	assert.Equal(t, router.Clients, page.Route.Path)
	assert.Equal(t, "database locked", app.Banner(page.Route))
}

func TestBanner_HiddenAndHome(t *testing.T) {
	app := newTestApp(t, &backend{})

	home, _ := router.Match(router.Home)
	assert.Empty(t, app.Banner(home))

	clients, _ := router.Match(router.Clients)
	assert.Empty(t, app.Banner(clients))
}

func TestOpen_BadPath(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{APIURL: "http://localhost", StatePath: dir}
	_, err := Open(cfg, nil)
	assert.ErrorContains(t, err, "opening token store")
}

func TestNavigate_RetriesBusyBackend(t *testing.T) {
	b := &backend{}
	b.busyClients.Store(1)

	app := newTestApp(t, b, func(cfg *config.Config) { cfg.RequestRetries = 1 })
	require.NoError(t, app.State.SaveSession("T1", &models.User{Sub: "u1"}))
	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/clients")
	require.NoError(t, err)
	require.Len(t, page.Clients, 1)
	assert.Equal(t, int32(2), b.clientFetches.Load())
	assert.Empty(t, app.Banner(page.Route))
}

func TestNavigate_BusyBackendWithoutRetriesShowsBanner(t *testing.T) {
	b := &backend{}
	b.busyClients.Store(1)

	app := newTestApp(t, b)
	require.NoError(t, app.State.SaveSession("T1", &models.User{Sub: "u1"}))
	app.Start(context.Background())

	page, err := app.Navigate(context.Background(), "/clients")
	require.Error(t, err)
	assert.Equal(t, "backend busy", app.Banner(page.Route))
	assert.Equal(t, int32(1), b.clientFetches.Load())
}
