// internal/a11y/trap/trap.go
package trap

import (
	"strings"

	"github.com/google/uuid"
	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/a11y/taborder"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/config"
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Config holds the data that decides Escape handling.
type Config struct {
	// EscapeRoles are the roles whose regions react to Escape.
	EscapeRoles []string
	// CloseSelectors locate a region's close control, tried in order.
	CloseSelectors []string
	// CloseLabels are button texts recognized as a close control when no
	// selector matches.
	CloseLabels []string
}

// DefaultConfig returns the built-in Escape handling data.
func DefaultConfig() Config {
	return Config{
		EscapeRoles:    []string{"dialog", "alertdialog", "alert"},
		CloseSelectors: append([]string(nil), config.DefaultCloseControlSelectors...),
		CloseLabels:    []string{"close", "×", "✕"},
	}
}

// Trapper owns every trap session in a document, keyed by region. It is the
// only place session state lives.
type Trapper struct {
	doc        *dom.Document
	classifier *classify.Classifier
	auditor    *taborder.Auditor
	reporter   *diag.Reporter
	logger     *zap.Logger

	escapeRoles map[string]struct{}
	closeSel    []string
	closeLabels []string

	sessions map[*html.Node]*Session
	// restore is the deferred focus restoration of the last release.
	restore *eventloop.Task
}

// New creates a trapper for doc.
func New(doc *dom.Document, c *classify.Classifier, a *taborder.Auditor, reporter *diag.Reporter, logger *zap.Logger, cfg Config) *Trapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if len(cfg.EscapeRoles) == 0 {
		cfg.EscapeRoles = def.EscapeRoles
	}
	if len(cfg.CloseSelectors) == 0 {
		cfg.CloseSelectors = def.CloseSelectors
	}
	if len(cfg.CloseLabels) == 0 {
		cfg.CloseLabels = def.CloseLabels
	}

	roles := make(map[string]struct{}, len(cfg.EscapeRoles))
	for _, r := range cfg.EscapeRoles {
		roles[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	labels := make([]string, 0, len(cfg.CloseLabels))
	for _, l := range cfg.CloseLabels {
		labels = append(labels, strings.ToLower(strings.TrimSpace(l)))
	}

	return &Trapper{
		doc:         doc,
		classifier:  c,
		auditor:     a,
		reporter:    reporter,
		logger:      logger.Named("trap"),
		escapeRoles: roles,
		closeSel:    cfg.CloseSelectors,
		closeLabels: labels,
		sessions:    make(map[*html.Node]*Session),
	}
}

// Trap arms a focus trap on region. Arming an already armed region only
// refreshes its boundaries and returns the existing handle. A nil or
// detached region yields an inert handle.
func (t *Trapper) Trap(region *html.Node, opts Options) *Handle {
	if !dom.IsElement(region) || !t.doc.IsAttached(region) {
		t.logger.Debug("Ignoring trap request for a missing or detached region.")
		return &Handle{trapper: t, session: &Session{state: Released}}
	}

	if s, ok := t.sessions[region]; ok && s.state == Armed {
		t.logger.Debug("Region already trapped; refreshing boundaries.", zap.String("session_id", s.id))
		t.refresh(s)
		return s.handle
	}

	// A new trap owns focus from here on.
	t.restore.Cancel()
	t.restore = nil

	s := &Session{
		id:     uuid.New().String(),
		region: region,
		opts:   opts,
		state:  Armed,
		prior:  t.doc.ActiveElement(),
	}
	s.handle = &Handle{trapper: t, session: s}
	t.sessions[region] = s

	s.pendingFocus = t.doc.Loop().PostNamed("trap-initial-focus", func() { t.focusInitial(s) })
	t.refresh(s)
	s.removeListener = t.doc.AddEventListener(region, dom.EventKeyDown, func(ev *dom.Event) { t.onKeyDown(s, ev) })

	t.logger.Debug("Trap armed.",
		zap.String("session_id", s.id),
		zap.String("region", dom.XPathOf(region)),
		zap.Int("members", len(s.members)),
	)
	return s.handle
}

// Lookup returns the handle of the armed session on region, if any.
func (t *Trapper) Lookup(region *html.Node) (*Handle, bool) {
	s, ok := t.sessions[region]
	if !ok || s.state != Armed {
		return nil, false
	}
	return s.handle, true
}

// Handles returns the armed sessions in no particular order.
func (t *Trapper) Handles() []*Handle {
	out := make([]*Handle, 0, len(t.sessions))
	for _, s := range t.sessions {
		if s.state == Armed {
			out = append(out, s.handle)
		}
	}
	return out
}

// IsProtected reports whether n is an armed region that relies on the
// empty-region fallback. Its tabindex must not be pruned.
func (t *Trapper) IsProtected(n *html.Node) bool {
	s, ok := t.sessions[n]
	return ok && s.state == Armed && s.selfBoundary
}

// Prune releases sessions whose region left the document. It returns how
// many were dropped.
func (t *Trapper) Prune() int {
	var detached []*Session
	for region, s := range t.sessions {
		if !t.doc.IsAttached(region) {
			detached = append(detached, s)
		}
	}
	for _, s := range detached {
		t.logger.Debug("Releasing trap on detached region.", zap.String("session_id", s.id))
		t.release(s)
	}
	return len(detached)
}

// refresh recomputes the boundary members. The region itself never counts
// as a member unless the fallback makes it the only one.
func (t *Trapper) refresh(s *Session) {
	var members []*html.Node
	for _, n := range t.auditor.ComputeOrder(s.region) {
		if n != s.region {
			members = append(members, n)
		}
	}

	if len(members) > 0 {
		if s.selfBoundary {
			t.restoreRegionIndex(s)
		}
		s.members = members
		return
	}

	if !s.selfBoundary {
		s.savedIndex, s.hadIndex = dom.Attr(s.region, "tabindex")
		s.selfBoundary = true
	}
	t.doc.SetAttr(s.region, "tabindex", "0")
	s.members = []*html.Node{s.region}

	// Until the initial focus tick the region may still be settling.
	if s.pendingFocus == nil && !s.emptyReported {
		s.emptyReported = true
		t.reporter.Report(diag.Diagnostic{
			Kind:    diag.KindEmptyTrapRegion,
			Message: "trap region has no tabbable content; the region itself takes focus",
			Node:    s.region,
		})
	}
}

func (t *Trapper) restoreRegionIndex(s *Session) {
	s.selfBoundary = false
	s.emptyReported = false
	if !t.doc.IsAttached(s.region) {
		return
	}
	if s.hadIndex {
		t.doc.SetAttr(s.region, "tabindex", s.savedIndex)
	} else {
		t.doc.RemoveAttr(s.region, "tabindex")
	}
}

func (t *Trapper) focusInitial(s *Session) {
	s.pendingFocus = nil
	if s.state != Armed || !t.doc.IsAttached(s.region) {
		return
	}
	// The region may have changed since Trap returned.
	t.refresh(s)
	if n := s.opts.InitialFocus; n != nil && n != s.region && dom.Contains(s.region, n) && t.doc.IsAttached(n) {
		if t.doc.Focus(n) {
			return
		}
	}
	if len(s.members) > 0 {
		t.doc.Focus(s.members[0])
	}
}

func (t *Trapper) release(s *Session) {
	if s.state != Armed {
		return
	}
	s.state = Released
	if s.removeListener != nil {
		s.removeListener()
	}
	s.pendingFocus.Cancel()
	s.pendingFocus = nil
	if s.selfBoundary {
		t.restoreRegionIndex(s)
	}
	if cur, ok := t.sessions[s.region]; ok && cur == s {
		delete(t.sessions, s.region)
	}

	t.logger.Debug("Trap released.", zap.String("session_id", s.id))

	if !s.opts.ReturnFocusOnRelease || !t.canRestore(s.prior) {
		return
	}
	prior := s.prior
	t.restore.Cancel()
	t.restore = t.doc.Loop().PostNamed("trap-restore-focus", func() {
		t.restore = nil
		if !t.canRestore(prior) {
			return
		}
		if h := t.confining(prior); h != nil {
			t.logger.Debug("Skipping focus restore outside an armed trap.", zap.String("session_id", h.ID()))
			return
		}
		t.doc.Focus(prior)
	})
}

func (t *Trapper) canRestore(n *html.Node) bool {
	return n != nil && t.doc.IsAttached(n) && t.classifier.IsFocusable(n)
}

// confining returns an armed session whose region does not contain n.
func (t *Trapper) confining(n *html.Node) *Handle {
	for region, s := range t.sessions {
		if s.state == Armed && !dom.Contains(region, n) {
			return s.handle
		}
	}
	return nil
}

func (t *Trapper) onKeyDown(s *Session, ev *dom.Event) {
	if s.state != Armed || ev.DefaultPrevented() {
		return
	}
	switch ev.Key {
	case dom.KeyTab:
		t.cycle(s, ev)
	case dom.KeyEscape:
		t.dismiss(s)
	}
}

// cycle keeps sequential navigation inside the member list, wrapping at
// both ends. Focus on anything that is not a member jumps to an end.
func (t *Trapper) cycle(s *Session, ev *dom.Event) {
	for _, m := range s.members {
		if !t.doc.IsAttached(m) {
			t.refresh(s)
			break
		}
	}
	n := len(s.members)
	if n == 0 {
		return
	}

	idx := -1
	active := t.doc.ActiveElement()
	for i, m := range s.members {
		if m == active {
			idx = i
			break
		}
	}

	var next int
	switch {
	case ev.Shift && idx <= 0:
		next = n - 1
	case ev.Shift:
		next = idx - 1
	case idx < 0 || idx == n-1:
		next = 0
	default:
		next = idx + 1
	}
	ev.PreventDefault()
	t.doc.Focus(s.members[next])
}

// dismiss activates the region's close control if the region is a dialog or
// alert. Closing the region stays with whoever handles that click.
func (t *Trapper) dismiss(s *Session) {
	if !t.isDismissable(s.region) {
		return
	}
	ctrl := t.findCloseControl(s.region)
	if ctrl == nil {
		t.logger.Debug("No close control found for Escape.", zap.String("session_id", s.id))
		return
	}
	t.doc.Click(ctrl)
}

func (t *Trapper) isDismissable(region *html.Node) bool {
	if dom.IsElement(region, "dialog") {
		return true
	}
	_, ok := t.escapeRoles[classify.Role(region)]
	return ok
}

func (t *Trapper) findCloseControl(region *html.Node) *html.Node {
	usable := func(n *html.Node) bool {
		return !t.classifier.ShouldExclude(n)
	}
	for _, sel := range t.closeSel {
		nodes, err := dom.QueryAll(region, sel)
		if err != nil {
			t.logger.Debug("Skipping unusable close selector.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		for _, n := range nodes {
			if usable(n) {
				return n
			}
		}
	}

	var found *html.Node
	dom.Walk(region, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n != region && t.isButtonLike(n) && usable(n) {
			label := strings.ToLower(strings.TrimSpace(dom.TextContent(n)))
			if aria, ok := dom.Attr(n, "aria-label"); ok && label == "" {
				label = strings.ToLower(strings.TrimSpace(aria))
			}
			for _, want := range t.closeLabels {
				if label == want {
					found = n
					return false
				}
			}
		}
		return true
	})
	return found
}

func (t *Trapper) isButtonLike(n *html.Node) bool {
	if dom.IsElement(n, "button") {
		return true
	}
	if dom.IsElement(n, "input") {
		typ, _ := dom.Attr(n, "type")
		switch strings.ToLower(typ) {
		case "button", "submit", "reset":
			return true
		}
	}
	return classify.Role(n) == "button"
}
