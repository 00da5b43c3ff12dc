package coophub

import (
	"net/url"
	"sync"
)

// LoginPath is where an expired session is sent.
const LoginPath = "/login"

// Navigator is told to show the login screen when the backend answers 401.
type Navigator interface {
	// Location returns the current route, e.g. "/dashboard".
	Location() string
	// Navigate moves to path.
	Navigate(path string)
}

// onLoginRoute reports whether location's path is LoginPath, ignoring any
// query or fragment.
func onLoginRoute(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return location == LoginPath
	}
	return u.Path == LoginPath
}

// RouteRecorder is a Navigator that only remembers the current route.
// It suits programs without a UI router.
type RouteRecorder struct {
	mu       sync.Mutex
	location string
	history  []string
}

// NewRouteRecorder starts at location.
func NewRouteRecorder(location string) *RouteRecorder {
	return &RouteRecorder{location: location}
}

func (r *RouteRecorder) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

func (r *RouteRecorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = path
	r.history = append(r.history, path)
}

// History returns every path passed to Navigate, oldest first.
func (r *RouteRecorder) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}
