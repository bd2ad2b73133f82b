// Package router maps console paths to views and applies the sign-in
// guard before any view runs.
package router

import "strings"

// Route paths.
const (
	Home    = "/"
	Clients = "/clients"
	Server  = "/server"
	Status  = "/status"
	Users   = "/users"
)

// Route is one navigable view.
type Route struct {
	Path        string
	Name        string
	RequireAuth bool
}

// Routes is the route table in match order. Anything else falls through
// to the catch-all, which redirects home.
var Routes = []Route{
	{Path: Clients, Name: "clients", RequireAuth: true},
	{Path: Server, Name: "server", RequireAuth: true},
	{Path: Status, Name: "status", RequireAuth: true},
	{Path: Users, Name: "users", RequireAuth: true},
	{Path: Home, Name: "home"},
}

// Match returns the route for path. ok is false for unknown paths.
func Match(path string) (Route, bool) {
	path = Clean(path)
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}

	return Route{}, false
}

// Clean normalizes a user-typed path: a leading slash is added and a
// trailing one dropped.
func Clean(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = Home
		}
	}

	return path
}

// Guard decides whether navigation to route may proceed. It returns the
// path to redirect to, or "" to allow. It never blocks.
func Guard(route Route, authenticated bool) string {
	switch {
	case route.RequireAuth && !authenticated:
		return Home
	case route.RequireAuth:
		return ""
	case route.Path == Home && authenticated:
		return Clients
	default:
		return ""
	}
}

// Authenticator reports whether a session is signed in.
type Authenticator interface {
	IsAuthenticated() bool
}

// Router resolves navigation requests against the live session.
type Router struct {
	auth Authenticator
}

// New creates a Router bound to auth.
func New(auth Authenticator) *Router {
	return &Router{auth: auth}
}

// maxHops bounds redirect chains. The table needs at most two.
const maxHops = 4

// Resolve follows the catch-all and guard redirects from path and returns
// the route that finally renders. redirected is true when it differs from
// the requested path.
func (r *Router) Resolve(path string) (route Route, redirected bool) {
	authenticated := r.auth.IsAuthenticated()
	requested := Clean(path)
	current := requested

	for range maxHops {
		matched, ok := Match(current)
		if !ok {
			current = Home
			continue
		}

		next := Guard(matched, authenticated)
		if next == "" {
			return matched, matched.Path != requested
		}

		current = next
	}

	home, _ := Match(Home)

	return home, requested != Home
}
