// Package session owns the console's authentication state. A Session is
// built once per process and drives both sign-in paths (local credentials
// and the OAuth2 redirect/exchange flow), keeping the durable token store,
// the API client's auth header and the in-memory state in step.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wg-gen-plus/wgconsole/internal/api"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/models"
)

// Backend paths used by the controller.
const (
	pathUser     = "/auth/user"
	pathOAuthURL = "/auth/oauth2_url"
	pathExchange = "/auth/oauth2_exchange"
	pathLogout   = "/auth/logout"
	pathAuthType = "/auth/type"
	pathLogin    = "/auth/login"
)

// Display messages used when the backend sends no structured error.
const (
	msgAuthFailed   = "Authentication failed"
	msgUnknownError = "Unknown error occurred"
)

// API is the subset of the API client the controller needs.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	SetHeader()
}

// TokenStore is the durable side of the session.
type TokenStore interface {
	Token() string
	User() *models.User
	ClientID() string
	SaveToken(token string) error
	SaveUser(u *models.User) error
	SaveClientID(id string) error
	DestroyToken() error
	DestroyUser() error
	SaveSession(token string, u *models.User) error
	ClearSession() error
}

// State is the coarse authentication state.
type State int

const (
	StateAnonymous State = iota
	StatePending
	StateAuthenticated
	StateError
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// AuthStatus tracks the OAuth2 flow only.
type AuthStatus int

const (
	AuthIdle AuthStatus = iota
	AuthRedirect
	AuthExchange
	AuthSuccess
	AuthFailed
	AuthDisabled
)

func (s AuthStatus) String() string {
	switch s {
	case AuthIdle:
		return "idle"
	case AuthRedirect:
		return "redirect"
	case AuthExchange:
		return "exchange"
	case AuthSuccess:
		return "success"
	case AuthFailed:
		return "error"
	case AuthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// LocalStatus tracks the local credential flow.
type LocalStatus int

const (
	LocalIdle LocalStatus = iota
	LocalLoading
	LocalSuccess
	LocalError
)

func (s LocalStatus) String() string {
	switch s {
	case LocalIdle:
		return "idle"
	case LocalLoading:
		return "loading"
	case LocalSuccess:
		return "success"
	case LocalError:
		return "error"
	default:
		return "unknown"
	}
}

// AuthError is the failure recorded by an auth operation. Message is
// what the user sees; Err is the underlying cause.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	State           State
	AuthStatus      AuthStatus
	Status          LocalStatus
	User            *models.User
	AuthRedirectURL string
	IsLocalAuth     bool
	Error           string
}

// Session is the authentication state machine.
type Session struct {
	api    API
	store  TokenStore
	logger *slog.Logger

	mu          sync.RWMutex
	token       string
	user        *models.User
	authStatus  AuthStatus
	status      LocalStatus
	redirectURL string
	isLocalAuth bool
	err         error
	inFlight    bool
	profileDone chan struct{}
}

// New creates a Session. Nothing is read from the store until InitAuth.
func New(client API, store TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Session{
		api:    client,
		store:  store,
		logger: logger,
	}
}

// InitAuth restores a stored session. It returns immediately; when a token
// is stored without a user the profile is fetched in the background and
// WaitProfile can be used to wait for it.
func (s *Session) InitAuth(ctx context.Context) {
	token := s.store.Token()
	if token == "" {
		s.logger.Debug("no stored token, sign-in required")
		return
	}

	s.logger.Debug("restoring stored session")
	s.api.SetHeader()

	user := s.store.User()

	s.mu.Lock()
	s.token = token
	if user != nil {
		s.user = user
	}

	if s.user != nil {
		s.mu.Unlock()
		return
	}

	done := make(chan struct{})
	s.profileDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)

		if err := s.fetchUser(ctx, token); err != nil {
			s.logger.Warn("restoring profile failed, session cleared",
				slog.String("error", err.Error()),
			)
		}
	}()
}

// WaitProfile blocks until the background profile fetch started by
// InitAuth finishes. Returns at once when none is running.
func (s *Session) WaitProfile(ctx context.Context) error {
	s.mu.RLock()
	done := s.profileDone
	s.mu.RUnlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchUser reads the current profile. Any failure clears the local
// session without calling the backend logout. A result that arrives after
// the stored token changed belongs to an older session and is dropped.
func (s *Session) FetchUser(ctx context.Context) error {
	return s.fetchUser(ctx, s.store.Token())
}

// fetchUser reads the profile on behalf of the session holding token.
func (s *Session) fetchUser(ctx context.Context, token string) error {
	var u models.User
	if err := s.api.Get(ctx, pathUser, &u); err != nil {
		if s.store.Token() != token {
			s.logger.Debug("ignoring profile failure for a replaced session")
			return nil
		}

		s.reset(true)
		return s.recordError(err, msgUnknownError)
	}

	if s.store.Token() != token {
		s.logger.Debug("ignoring profile for a replaced session")
		return nil
	}

	if err := s.store.SaveUser(&u); err != nil {
		s.logger.Warn("saving user", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	if token != "" {
		s.token = token
	}
	s.user = &u
	s.mu.Unlock()

	return nil
}

// StartOAuth2 begins the OAuth2 flow. With a stored token it refreshes the
// profile instead. When the backend reports OAuth2 as disabled the
// exchange runs at once with an empty code.
func (s *Session) StartOAuth2(ctx context.Context) error {
	if s.store.Token() != "" {
		s.api.SetHeader()
		return s.FetchUser(ctx)
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return errs.ErrAuthInProgress
	}
	s.err = nil
	s.redirectURL = ""
	s.mu.Unlock()

	var authURL models.AuthURL
	if err := s.api.Get(ctx, pathOAuthURL, &authURL); err != nil {
		s.setAuthStatus(AuthFailed)
		s.reset(true)

		return s.recordError(err, msgUnknownError)
	}

	if authURL.Disabled() {
		s.logger.Info("backend reports OAuth2 disabled, exchanging without a code")
		s.setAuthStatus(AuthDisabled)
		s.saveClientID(authURL.ClientID)

		return s.Exchange(ctx, "", authURL.State)
	}

	if authURL.CodeURL == "" {
		s.setAuthStatus(AuthFailed)

		return s.recordError(errs.ErrOAuthUnavailable, "OAuth2 is not available, use local login")
	}

	s.saveClientID(authURL.ClientID)

	s.mu.Lock()
	s.redirectURL = authURL.CodeURL
	s.authStatus = AuthRedirect
	s.mu.Unlock()

	return nil
}

// Exchange trades an authorization code for a session token. The stored
// client id is attached and kept on failure so the exchange can be
// retried.
func (s *Session) Exchange(ctx context.Context, code, state string) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return errs.ErrAuthInProgress
	}
	s.inFlight = true
	s.err = nil
	if s.authStatus != AuthDisabled {
		s.authStatus = AuthExchange
	}
	s.mu.Unlock()

	defer s.endAttempt()

	req := models.ExchangeRequest{
		Code:     code,
		State:    state,
		ClientID: s.store.ClientID(),
	}

	var raw json.RawMessage
	err := s.api.Post(ctx, pathExchange, req, &raw)
	if err == nil {
		err = s.complete(ctx, raw)
	}

	if err != nil {
		s.setAuthStatus(AuthFailed)
		s.reset(false)

		return s.recordError(err, msgAuthFailed)
	}

	s.mu.Lock()
	s.authStatus = AuthSuccess
	s.redirectURL = ""
	s.mu.Unlock()

	s.logger.Info("signed in with OAuth2")

	return nil
}

// LocalLogin signs in with a username and password. On failure the store
// holds no token or user afterwards, whatever was there before.
func (s *Session) LocalLogin(ctx context.Context, username, password string) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return errs.ErrAuthInProgress
	}
	s.inFlight = true
	s.status = LocalLoading
	s.err = nil
	s.mu.Unlock()

	defer s.endAttempt()

	req := models.LoginRequest{
		Username: username,
		Password: password,
	}

	var raw json.RawMessage
	err := s.api.Post(ctx, pathLogin, req, &raw)
	if err == nil {
		err = s.complete(ctx, raw)
	}

	if err != nil {
		s.reset(false)

		s.mu.Lock()
		s.status = LocalError
		s.mu.Unlock()

		return s.recordError(err, msgAuthFailed)
	}

	s.mu.Lock()
	s.status = LocalSuccess
	s.mu.Unlock()

	s.logger.Info("signed in with local credentials")

	return nil
}

// Logout ends the session. The backend call is best-effort; local state
// is always cleared.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Get(ctx, pathLogout, nil); err != nil {
		s.logger.Warn("backend logout failed", slog.String("error", err.Error()))
	}

	s.reset(true)

	s.mu.Lock()
	s.authStatus = AuthIdle
	s.redirectURL = ""
	s.err = nil
	s.mu.Unlock()

	return nil
}

// CheckAuthType asks the backend whether local login is in use. It never
// fails: on error it logs and reports false.
func (s *Session) CheckAuthType(ctx context.Context) bool {
	var t models.AuthType
	if err := s.api.Get(ctx, pathAuthType, &t); err != nil {
		s.logger.Warn("checking auth type", slog.String("error", err.Error()))
		return false
	}

	s.mu.Lock()
	s.isLocalAuth = t.IsLocal
	s.mu.Unlock()

	return t.IsLocal
}

// complete decodes a login or exchange response and publishes the
// session. The backend answers either {token, user} or the bare token as
// a JSON string; with no user in the answer the profile is fetched first.
func (s *Session) complete(ctx context.Context, raw json.RawMessage) error {
	token, user, err := decodeTokenResponse(raw)
	if err != nil {
		return err
	}

	if user == nil {
		if err := s.store.SaveToken(token); err != nil {
			s.logger.Warn("saving token", slog.String("error", err.Error()))
		}
		s.api.SetHeader()

		var u models.User
		if err := s.api.Get(ctx, pathUser, &u); err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}

		user = &u
	}

	if err := s.store.SaveSession(token, user); err != nil {
		s.logger.Warn("saving session", slog.String("error", err.Error()))
	}

	s.api.SetHeader()

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	return nil
}

func decodeTokenResponse(raw json.RawMessage) (string, *models.User, error) {
	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, `"`) {
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return "", nil, fmt.Errorf("%w: decoding token: %v", errs.ErrAPIResponse, err)
		}

		if token == "" {
			return "", nil, fmt.Errorf("%w: empty token", errs.ErrAPIResponse)
		}

		return token, nil, nil
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", nil, fmt.Errorf("%w: decoding login response: %v", errs.ErrAPIResponse, err)
	}

	if resp.Token == "" {
		return "", nil, fmt.Errorf("%w: response has no token", errs.ErrAPIResponse)
	}

	return resp.Token, resp.User, nil
}

// reset clears token and user from the store and from memory, then drops
// the API header. withClientID also removes the pending OAuth2 client id.
func (s *Session) reset(withClientID bool) {
	if withClientID {
		if err := s.store.ClearSession(); err != nil {
			s.logger.Warn("clearing session", slog.String("error", err.Error()))
		}
	} else {
		if err := s.store.DestroyToken(); err != nil {
			s.logger.Warn("removing token", slog.String("error", err.Error()))
		}

		if err := s.store.DestroyUser(); err != nil {
			s.logger.Warn("removing user", slog.String("error", err.Error()))
		}
	}

	s.api.SetHeader()

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.status = LocalIdle
	s.mu.Unlock()
}

// recordError stores err as the session error and returns it wrapped with
// its display message.
func (s *Session) recordError(err error, fallback string) error {
	authErr := &AuthError{Message: api.Message(err, fallback), Err: err}

	s.mu.Lock()
	s.err = authErr
	s.mu.Unlock()

	return authErr
}

func (s *Session) saveClientID(id string) {
	if err := s.store.SaveClientID(id); err != nil {
		s.logger.Warn("saving OAuth2 client id", slog.String("error", err.Error()))
	}
}

func (s *Session) setAuthStatus(st AuthStatus) {
	s.mu.Lock()
	s.authStatus = st
	s.mu.Unlock()
}

func (s *Session) endAttempt() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// IsAuthenticated reports whether both a token and a user are known.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token != "" && s.user != nil
}

// State returns the coarse authentication state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.token != "" && s.user != nil:
		return StateAuthenticated
	case s.inFlight || s.authStatus == AuthRedirect:
		return StatePending
	case s.err != nil:
		return StateError
	default:
		return StateAnonymous
	}
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}

	u := *s.user

	return &u
}

// AuthStatus returns the OAuth2 flow status.
func (s *Session) AuthStatus() AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.authStatus
}

// Status returns the local login status.
func (s *Session) Status() LocalStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

// AuthRedirectURL is the provider URL to open. Empty unless the OAuth2
// flow is waiting for a redirect.
func (s *Session) AuthRedirectURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.redirectURL
}

// IsLocalAuth returns the value cached by CheckAuthType.
func (s *Session) IsLocalAuth() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isLocalAuth
}

// Err returns the last recorded error, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.err
}

// Snapshot returns a consistent copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:           s.stateLocked(),
		AuthStatus:      s.authStatus,
		Status:          s.status,
		AuthRedirectURL: s.redirectURL,
		IsLocalAuth:     s.isLocalAuth,
	}

	if s.user != nil {
		u := *s.user
		snap.User = &u
	}

	if s.err != nil {
		snap.Error = s.err.Error()
	}

	return snap
}
