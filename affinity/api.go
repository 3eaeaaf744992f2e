// Package affinity remembers which application an operator is looking
// at between requests. The monitoring page is built for one application
// at a time without carrying its name in every request, so the chosen
// application rides in a client cookie.
package affinity

import (
	"net/http"
)

// CookieName is the cookie carrying the chosen application name.
const CookieName = "uhura.application"

// DataChecker reports whether an application currently has data
// available. An application bound to a stale cookie may have been
// removed or lost all its nodes since the cookie was set.
type DataChecker interface {
	IsApplicationDataAvailable(name string) bool
}

// Registry is the slice of the application registry the manager needs.
type Registry interface {
	// First returns the first registered application name in stable
	// order, or the empty string if none are registered.
	First() string
}

// Manager resolves the active application for each request and keeps
// the affinity cookie current.
type Manager struct {
	registry Registry
	checker  DataChecker
}

// New returns a new Manager.
func New(registry Registry, checker DataChecker) *Manager {
	return &Manager{registry: registry, checker: checker}
}

// ActiveApplication returns the application this request acts on.
//
// An explicit application parameter with available data binds the
// cookie and wins. Otherwise a valid cookie wins; a cookie naming an
// application without available data is expired immediately and
// ignored. With neither, the first registered application is returned,
// or the empty string when the registry is empty.
func (m *Manager) ActiveApplication(
	w http.ResponseWriter, r *http.Request) string {
	return m.activeApplication(w, r)
}
