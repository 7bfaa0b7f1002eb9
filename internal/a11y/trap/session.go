// internal/a11y/trap/session.go
package trap

import (
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"golang.org/x/net/html"
)

// State is the lifecycle position of a trap session.
type State int

const (
	Idle State = iota
	Armed
	Released
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Released:
		return "released"
	default:
		return "idle"
	}
}

// Options configures a single Trap call.
type Options struct {
	// ReturnFocusOnRelease restores the focus captured at arm time when the
	// session is released.
	ReturnFocusOnRelease bool
	// InitialFocus, if inside the region, receives focus instead of the
	// first boundary member.
	InitialFocus *html.Node
}

// Session is the state of one armed region. Boundary members are a cache
// over the live tree and are recomputed by refresh, never trusted blindly.
type Session struct {
	id     string
	region *html.Node
	opts   Options
	state  State

	prior   *html.Node
	members []*html.Node

	removeListener func()
	pendingFocus   *eventloop.Task

	// Empty-region fallback bookkeeping.
	selfBoundary  bool
	emptyReported bool
	savedIndex    string
	hadIndex      bool

	handle *Handle
}

// Handle is returned by Trap. All methods are total: they never fail and
// are safe to call in any state.
type Handle struct {
	trapper *Trapper
	session *Session
}

// Release disarms the trap. Releasing twice is a no-op.
func (h *Handle) Release() {
	if h == nil || h.session == nil {
		return
	}
	h.trapper.release(h.session)
}

// RefreshBoundaries recomputes the boundary members from the live region.
func (h *Handle) RefreshBoundaries() {
	if h == nil || h.session == nil || h.session.state != Armed {
		return
	}
	h.trapper.refresh(h.session)
}

// Armed reports whether the session is still armed.
func (h *Handle) Armed() bool {
	return h != nil && h.session != nil && h.session.state == Armed
}

// State returns the session state.
func (h *Handle) State() State {
	if h == nil || h.session == nil {
		return Idle
	}
	return h.session.state
}

// Boundaries returns the first and last boundary members.
func (h *Handle) Boundaries() (first, last *html.Node) {
	if h == nil || h.session == nil || len(h.session.members) == 0 {
		return nil, nil
	}
	m := h.session.members
	return m[0], m[len(m)-1]
}

// Members returns a copy of the cached boundary list.
func (h *Handle) Members() []*html.Node {
	if h == nil || h.session == nil {
		return nil
	}
	return append([]*html.Node(nil), h.session.members...)
}

// Region returns the trapped region.
func (h *Handle) Region() *html.Node {
	if h == nil || h.session == nil {
		return nil
	}
	return h.session.region
}

// PriorFocus returns the element that had focus when the trap was armed.
func (h *Handle) PriorFocus() *html.Node {
	if h == nil || h.session == nil {
		return nil
	}
	return h.session.prior
}

// ID returns the session identifier used in logs.
func (h *Handle) ID() string {
	if h == nil || h.session == nil {
		return ""
	}
	return h.session.id
}
