package session

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
)

// CallbackTimeout bounds how long the CLI waits for the provider redirect.
const CallbackTimeout = 5 * time.Minute

const callbackPath = "/callback"

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>wgconsole</title></head>
<body>
{{if .Error}}<h1>Sign-in failed</h1><p>{{.Error}}{{if .Description}}: {{.Description}}{{end}}</p>
{{else}}<h1>Signed in</h1><p>You can close this tab and return to the terminal.</p>{{end}}
</body></html>
`))

// CallbackResult is what the provider sent to the redirect URL.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Err returns ErrOAuthCallback wrapped with the provider's reason, or nil.
func (r *CallbackResult) Err() error {
	if r.Error == "" {
		return nil
	}

	if r.ErrorDescription != "" {
		return fmt.Errorf("%w: %s: %s", errs.ErrOAuthCallback, r.Error, r.ErrorDescription)
	}

	return fmt.Errorf("%w: %s", errs.ErrOAuthCallback, r.Error)
}

// CallbackServer is a loopback listener that receives a single OAuth2
// redirect and then shuts down.
type CallbackServer struct {
	addr     string
	server   *http.Server
	listener net.Listener
	url      string
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
}

// NewCallbackServer creates a callback server for addr (host:port). The
// backend's OAuth2 redirect URL must point at it.
func NewCallbackServer(addr string) *CallbackServer {
	return &CallbackServer{
		addr:     addr,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start begins listening and returns the callback URL. The server stops
// when ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("starting callback listener on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.url = "http://" + listener.Addr().String() + callbackPath

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.url, nil
}

// URL returns the callback URL once Start has succeeded.
func (s *CallbackServer) URL() string {
	return s.url
}

// Wait blocks until the redirect arrives, the server fails or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false

	s.once.Do(func() {
		handled = true
		s.process(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) process(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	q := r.URL.Query()
	result := &CallbackResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if err := callbackPage.Execute(w, map[string]string{
		"Error":       result.Error,
		"Description": result.ErrorDescription,
	}); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- result:
	default:
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.server.Shutdown(ctx)
	})
}

// OpenBrowser opens url in the default browser without waiting for it.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}

	return nil
}

// CompleteOAuth2 runs the redirect flow end to end: it starts the
// callback listener, hands the provider URL to open, waits for the
// redirect and performs the exchange. When the backend has OAuth2
// disabled the session is already authenticated after StartOAuth2 and no
// listener is started.
func (s *Session) CompleteOAuth2(ctx context.Context, cb *CallbackServer, open func(url string) error) error {
	if err := s.StartOAuth2(ctx); err != nil {
		return err
	}

	if s.IsAuthenticated() {
		return nil
	}

	redirect := s.AuthRedirectURL()
	if redirect == "" {
		return errs.ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	if _, err := cb.Start(ctx); err != nil {
		return err
	}
	defer cb.Stop()

	if open != nil {
		if err := open(redirect); err != nil {
			s.logger.Warn("could not open browser, open the URL manually")
		}
	}

	result, err := cb.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for OAuth2 callback: %w", err)
	}

	if err := result.Err(); err != nil {
		s.setAuthStatus(AuthFailed)
		return s.recordError(err, msgAuthFailed)
	}

	return s.Exchange(ctx, result.Code, result.State)
}
