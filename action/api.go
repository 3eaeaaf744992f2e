// Package action defines the closed enumeration of operator actions the
// gateway accepts and how each one is dispatched.
package action

import (
	"errors"
)

// ErrUnknownAction means the action parameter matches no known action.
// No node is ever contacted for an unknown action.
var ErrUnknownAction = errors.New("unknown action")

// Action identifies one operator action.
type Action int

const (
	// RemoveApplication deregisters an application from the live
	// registry. It is handled entirely by the gateway: no node is
	// contacted.
	RemoveApplication Action = iota

	// Local actions execute against the gateway's locally aggregated
	// state and are never forwarded to nodes.
	ClearCounter
	MailTest
	PurgeObsoleteFiles

	// Remote actions are forwarded to every node of the resolved
	// application(s).
	GC
	HeapDump
	InvalidateSession
	InvalidateSessions
	KillThread
	PauseJob
	ResumeJob
	ClearCache
	ClearCacheKey
	Logout
)

// Parse returns the Action for a wire token such as "heap_dump". The
// match is case insensitive. Parse returns an error wrapping
// ErrUnknownAction for anything else.
func Parse(token string) (Action, error) {
	return parse(token)
}

// String returns the wire token for this action.
func (a Action) String() string {
	return a.token()
}

// Local returns true for actions executed against locally aggregated
// state only, with no node contact.
func (a Action) Local() bool {
	return a == ClearCounter || a == MailTest || a == PurgeObsoleteFiles
}

// Remote returns true for actions forwarded to every node of the
// resolved application(s).
func (a Action) Remote() bool {
	return !a.Local() && a != RemoveApplication
}

// System returns true for actions gated behind the system actions
// enablement check.
func (a Action) System() bool {
	switch a {
	case HeapDump, InvalidateSession, InvalidateSessions, KillThread,
		Logout:
		return true
	}
	return false
}
