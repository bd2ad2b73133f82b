package errors

import "errors"

// Session errors.
var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrAuthInProgress   = errors.New("another sign-in attempt is in progress")
	ErrOAuthCallback    = errors.New("OAuth2 callback returned an error")
	ErrNoClientID       = errors.New("no OAuth2 client id stored, start the sign-in again")
	ErrOAuthUnavailable = errors.New("backend offers no OAuth2 provider")
)

// Resource errors.
var (
	ErrInvalidResource = errors.New("invalid resource")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
