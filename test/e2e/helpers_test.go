package e2e_test

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"github.com/wg-gen-plus/wgconsole/internal/api"
	"github.com/wg-gen-plus/wgconsole/internal/config"
	"github.com/wg-gen-plus/wgconsole/internal/console"
	"github.com/wg-gen-plus/wgconsole/internal/mcpserver"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/server"
	"github.com/wg-gen-plus/wgconsole/internal/state"
)

const (
	testUsername = "admin"
	testPassword = "secret"
	testToken    = "T1"
	testClientID = "cid-1"
	testState    = "xyz"
	testCode     = "C1"
	testAPIKey   = "wgc_0123456789abcdef0123456789abcdef"
)

// backend is a fake Wg Gen Plus API with a fake OAuth2 provider mounted
// on the same server.
type backend struct {
	URL string

	// disabled makes /auth/oauth2_url answer with the no-redirect
	// sentinel.
	disabled     bool
	callbackAddr string

	mu        sync.Mutex
	exchanges []models.ExchangeRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(api.HeaderName) != testToken {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
				return
			}

			next(w, r)
		}
	}

	mux.HandleFunc("GET /auth/type", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.AuthType{IsLocal: !b.disabled && b.callbackAddr == ""})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Username != testUsername || req.Password != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad password"})
			return
		}

		writeJSON(w, http.StatusOK, models.LoginResponse{Token: testToken, User: &models.User{Sub: "u1", Name: testUsername, IsAdmin: true}})
	})
	mux.HandleFunc("GET /auth/oauth2_url", func(w http.ResponseWriter, r *http.Request) {
		codeURL := b.URL + "/provider/authorize?state=" + testState
		if b.disabled {
			codeURL = models.OAuth2DisabledSentinel
		}

		writeJSON(w, http.StatusOK, models.AuthURL{OAuth2: !b.disabled, ClientID: testClientID, State: testState, CodeURL: codeURL})
	})
	mux.HandleFunc("GET /provider/authorize", func(w http.ResponseWriter, r *http.Request) {
		target := "http://" + b.callbackAddr + "/callback?code=" + testCode + "&state=" + r.URL.Query().Get("state")
		http.Redirect(w, r, target, http.StatusFound)
	})
	mux.HandleFunc("POST /auth/oauth2_exchange", func(w http.ResponseWriter, r *http.Request) {
		var req models.ExchangeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		b.exchanges = append(b.exchanges, req)
		b.mu.Unlock()

		if req.ClientID != testClientID || req.State != testState {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid oauth2 state"})
			return
		}

		// The backend answers with the bare token string.
		writeJSON(w, http.StatusOK, testToken)
	})
	mux.HandleFunc("GET /auth/user", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.User{Sub: "u1", Name: "oauth-user", Email: "u1@example.com"})
	}))
	mux.HandleFunc("GET /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	mux.HandleFunc("GET /client", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Client{{ID: "c1", Name: "laptop", Enable: true}})
	}))

	return mux
}

func (b *backend) exchangeRequests() []models.ExchangeRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]models.ExchangeRequest(nil), b.exchanges...)
}

// harness holds the full e2e test stack: a fake backend, a console App
// bound to it and the MCP tools served over HTTP behind API keys.
type harness struct {
	URL     string
	Backend *backend
	App     *console.App
	Client  *http.Client
}

type harnessOption func(*backend)

func withOAuth2(b *backend) { b.callbackAddr = freeAddr() }

func withOAuth2Disabled(b *backend) { b.disabled = true }

// freeAddr returns a loopback address with a port that was free a moment
// ago.
func freeAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	b := &backend{}
	for _, opt := range opts {
		opt(b)
	}

	backendSrv := httptest.NewServer(b.handler())
	t.Cleanup(backendSrv.Close)
	b.URL = backendSrv.URL

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{
		APIURL:         backendSrv.URL,
		RequestTimeout: 5 * time.Second,
		BannerTimeout:  time.Minute,
		CallbackAddr:   b.callbackAddr,
		MCPAPIKeys:     "e2e:" + testAPIKey,
	}

	keys, err := cfg.ParseMCPAPIKeys()
	require.NoError(t, err)

	app := console.New(cfg, st, logger)
	app.Start(t.Context())

	mcpServer := mcp.NewServer(
		&mcp.Implementation{Name: "wgconsole-e2e", Version: "test"},
		nil,
	)
	mcpserver.RegisterTools(mcpServer, app)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Keys:       keys,
		MCPHandler: mcpHandler,
		Logger:     logger,
		Healthy:    app.Session.IsAuthenticated,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &harness{
		URL:     srv.URL,
		Backend: b,
		App:     app,
		Client:  srv.Client(),
	}
}

// mcpSession creates an MCP client session authenticated with the given
// API key. Uses the MCP SDK's StreamableClientTransport with a custom
// HTTP RoundTripper that injects the Authorization header.
func (h *harness) mcpSession(t *testing.T, key string) *mcp.ClientSession {
	t.Helper()

	transport := &mcp.StreamableClientTransport{
		Endpoint: h.URL + "/mcp",
		HTTPClient: &http.Client{
			Transport: &bearerTransport{
				token: key,
				base:  h.Client.Transport,
			},
		},
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: "e2e-test-client", Version: "test"},
		nil,
	)

	session, err := client.Connect(t.Context(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

// doGet performs a GET request with t.Context().
func (h *harness) doGet(t *testing.T, fullURL string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, fullURL, nil)
	require.NoError(t, err)

	resp, err := h.Client.Do(req)
	require.NoError(t, err)

	return resp
}

// bearerTransport is an http.RoundTripper that injects a Bearer token
// into every request's Authorization header.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (bt *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+bt.token)

	return bt.base.RoundTrip(req)
}
