package guard

import "sync/atomic"

// Operation is the unit of work being guarded. The guard reads its route and
// may abort it; it never sets the proceed flag back to true.
type Operation interface {
	// Route identifies the operation, e.g. a request path or job name
	Route() string
	// Proceed reports whether the operation may still run
	Proceed() bool
	// Abort marks the operation as not to be run
	Abort()
}

// Action is a ready-to-use Operation
type Action struct {
	route   string
	aborted atomic.Bool
}

// NewAction returns an Action for route that is allowed to proceed
func NewAction(route string) *Action {
	return &Action{route: route}
}

// Route implements Operation
func (a *Action) Route() string {
	return a.route
}

// Proceed implements Operation
func (a *Action) Proceed() bool {
	return !a.aborted.Load()
}

// Abort implements Operation
func (a *Action) Abort() {
	a.aborted.Store(true)
}
