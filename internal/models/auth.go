// Package models defines the backend resource and payload types shared
// across internal packages.
package models

// OAuth2DisabledSentinel is returned in AuthURL.CodeURL when the backend
// has no external identity provider. The client then performs a
// zero-code exchange instead of redirecting.
const OAuth2DisabledSentinel = "_magic_string_fake_auth_no_redirect_"

// AuthURL is returned from GET /auth/oauth2_url.
type AuthURL struct {
	OAuth2   bool   `json:"oauth2"`
	ClientID string `json:"clientId"`
	State    string `json:"state"`
	CodeURL  string `json:"codeUrl"`
}

// Disabled reports whether the backend signalled that OAuth2 is off.
func (a AuthURL) Disabled() bool {
	return a.CodeURL == OAuth2DisabledSentinel
}

// ExchangeRequest is the payload for POST /auth/oauth2_exchange.
type ExchangeRequest struct {
	Code     string `json:"code"`
	State    string `json:"state"`
	ClientID string `json:"clientId"`
}

// LoginRequest is the payload for POST /auth/login. Always sent as JSON.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login and, on newer
// backends, from POST /auth/oauth2_exchange.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// AuthType is returned from GET /auth/type.
type AuthType struct {
	IsLocal  bool   `json:"isLocal"`
	AuthType string `json:"authType,omitempty"`
}
