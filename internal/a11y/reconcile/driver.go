// internal/a11y/reconcile/driver.go
package reconcile

import (
	"strings"

	"github.com/google/uuid"
	"github.com/xkilldash9x/focuswarden/internal/a11y/announce"
	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/a11y/taborder"
	"github.com/xkilldash9x/focuswarden/internal/a11y/trap"
	"github.com/xkilldash9x/focuswarden/internal/a11y/visibility"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// relevantAttributes are the attribute writes that can change focus state.
var relevantAttributes = map[string]struct{}{
	"tabindex": {}, "disabled": {}, "aria-hidden": {}, "aria-disabled": {},
	"hidden": {}, "inert": {}, "style": {}, "class": {}, "open": {},
	"role": {}, "aria-modal": {}, "href": {}, "contenteditable": {},
}

// Options configures a Driver.
type Options struct {
	Normalize            taborder.Options
	AutoArmDialogs       bool
	ReturnFocusOnRelease bool
	AnnounceDialogs      bool
	// DialogRoles are the roles auto-armed when they become visible.
	DialogRoles []string
}

// Components are the collaborators a Driver dispatches to.
type Components struct {
	Document   *dom.Document
	Oracle     *visibility.Oracle
	Normalizer *taborder.Normalizer
	Trapper    *trap.Trapper
	Announcer  *announce.Announcer
}

type subscription struct {
	id     string
	root   *html.Node
	cancel func()
}

// seqWindow is an inclusive range of mutation sequence numbers written by
// the driver itself.
type seqWindow struct{ from, to uint64 }

// Driver re-runs normalization and trap discovery as the tree changes. At
// most one pass runs at a time; requests that arrive meanwhile are queued.
type Driver struct {
	doc        *dom.Document
	oracle     *visibility.Oracle
	normalizer *taborder.Normalizer
	trapper    *trap.Trapper
	announcer  *announce.Announcer
	logger     *zap.Logger
	opts       Options

	dialogRoles map[string]struct{}

	subs    []*subscription
	pending []*html.Node
	flush   *eventloop.Task
	running bool
	windows []seqWindow

	// shown holds the dialog regions that were visible when a pass last
	// covered them. Only regions missing from it are auto-armed.
	shown map[*html.Node]struct{}

	passes int
}

// New creates a driver.
func New(c Components, opts Options, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := opts.DialogRoles
	if len(roles) == 0 {
		roles = []string{"dialog", "alertdialog"}
	}
	d := &Driver{
		doc:         c.Document,
		oracle:      c.Oracle,
		normalizer:  c.Normalizer,
		trapper:     c.Trapper,
		announcer:   c.Announcer,
		logger:      logger.Named("reconcile"),
		opts:        opts,
		dialogRoles: make(map[string]struct{}, len(roles)),
		shown:       make(map[*html.Node]struct{}),
	}
	for _, r := range roles {
		d.dialogRoles[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return d
}

// Start observes root for changes. Starting on a root that is already
// covered by an observed root is a no-op; a root that covers observed roots
// replaces them.
func (d *Driver) Start(root *html.Node) {
	if root == nil {
		root = d.doc.Root()
	}
	for _, s := range d.subs {
		if dom.Contains(s.root, root) {
			d.logger.Debug("Root already observed.", zap.String("subscription_id", s.id))
			return
		}
	}

	kept := d.subs[:0]
	for _, s := range d.subs {
		if dom.Contains(root, s.root) {
			s.cancel()
			d.logger.Debug("Merged observed root into a wider one.", zap.String("subscription_id", s.id))
			continue
		}
		kept = append(kept, s)
	}
	d.subs = kept

	s := &subscription{id: uuid.New().String(), root: root}
	s.cancel = d.doc.Observe(root, d.onRecords)
	d.subs = append(d.subs, s)
	d.logger.Debug("Observing root.", zap.String("subscription_id", s.id), zap.String("root", dom.XPathOf(root)))
}

// Stop cancels every subscription and any queued pass.
func (d *Driver) Stop() {
	for _, s := range d.subs {
		s.cancel()
	}
	d.subs = nil
	d.flush.Cancel()
	d.flush = nil
	d.pending = nil
}

// Observing returns the observed roots.
func (d *Driver) Observing() []*html.Node {
	out := make([]*html.Node, len(d.subs))
	for i, s := range d.subs {
		out[i] = s.root
	}
	return out
}

// Passes returns how many reconciliation passes have run.
func (d *Driver) Passes() int { return d.passes }

// Pending reports whether a batched pass is waiting to run.
func (d *Driver) Pending() bool { return len(d.pending) > 0 }

// OnTreeChanged schedules a pass over root for the next tick. Notifications
// that arrive before it runs are coalesced to their outermost roots.
func (d *Driver) OnTreeChanged(root *html.Node) {
	if root == nil {
		root = d.doc.Root()
	}
	if !d.doc.IsAttached(root) {
		return
	}
	d.enqueue(root)
	if !d.running && d.flush == nil {
		d.flush = d.doc.Loop().PostNamed("reconcile-flush", d.runPending)
	}
}

// OnRequestFinished is OnTreeChanged for network completions.
func (d *Driver) OnRequestFinished(root *html.Node) {
	d.OnTreeChanged(root)
}

// RunPass runs one reconciliation pass over root immediately. If a pass is
// already in progress the request is queued behind it instead.
func (d *Driver) RunPass(root *html.Node) {
	if root == nil {
		root = d.doc.Root()
	}
	if d.running {
		d.enqueue(root)
		return
	}

	d.running = true
	start := d.doc.MutationSeq()
	defer func() {
		if end := d.doc.MutationSeq(); end > start {
			d.recordWindow(seqWindow{from: start + 1, to: end})
		}
		d.running = false
		if len(d.pending) > 0 && d.flush == nil {
			d.flush = d.doc.Loop().PostNamed("reconcile-flush", d.runPending)
		}
	}()

	d.pass(root)
}

func (d *Driver) runPending() {
	d.flush = nil
	roots := d.pending
	d.pending = nil
	for _, root := range roots {
		if d.doc.IsAttached(root) {
			d.RunPass(root)
		}
	}
}

func (d *Driver) enqueue(root *html.Node) {
	for _, p := range d.pending {
		if dom.Contains(p, root) {
			return
		}
	}
	kept := d.pending[:0]
	for _, p := range d.pending {
		if !dom.Contains(root, p) {
			kept = append(kept, p)
		}
	}
	d.pending = append(kept, root)
}

func (d *Driver) pass(root *html.Node) {
	d.passes++
	if pruned := d.trapper.Prune(); pruned > 0 {
		d.logger.Debug("Dropped traps on detached regions.", zap.Int("count", pruned))
	}

	res := d.normalizer.Run(root, d.opts.Normalize)

	armed, released := 0, 0
	for _, h := range d.trapper.Handles() {
		region := h.Region()
		switch {
		case d.oracle.IsHidden(region):
			h.Release()
			released++
		case dom.Contains(region, root) || dom.Contains(root, region):
			h.RefreshBoundaries()
		}
	}

	if d.opts.AutoArmDialogs {
		for _, region := range d.discoverRegions(root) {
			d.trapper.Trap(region, trap.Options{ReturnFocusOnRelease: d.opts.ReturnFocusOnRelease})
			armed++
			if d.opts.AnnounceDialogs && d.announcer != nil {
				d.announcer.Announce(AccessibleName(region))
			}
		}
	}

	d.logger.Debug("Reconciliation pass complete.",
		zap.Int("pass", d.passes),
		zap.String("root", dom.XPathOf(root)),
		zap.Int("changed", res.Changed()),
		zap.Int("armed", armed),
		zap.Int("released", released),
	)
}

// discoverRegions returns the dialog-like regions under root (root
// included) that became visible since the last pass over them and have no
// armed trap. A dialog released while it stays visible is left alone.
func (d *Driver) discoverRegions(root *html.Node) []*html.Node {
	visible := make(map[*html.Node]struct{})
	var out []*html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if d.oracle.IsHidden(n) {
			return false
		}
		if !d.isDialog(n) {
			return true
		}
		visible[n] = struct{}{}
		if _, seen := d.shown[n]; seen {
			return true
		}
		if _, armed := d.trapper.Lookup(n); !armed {
			out = append(out, n)
		}
		return true
	})

	for n := range d.shown {
		if dom.Contains(root, n) || !d.doc.IsAttached(n) {
			delete(d.shown, n)
		}
	}
	for n := range visible {
		d.shown[n] = struct{}{}
	}
	return out
}

func (d *Driver) isDialog(n *html.Node) bool {
	if dom.IsElement(n, "dialog") && dom.HasAttr(n, "open") {
		return true
	}
	if v, ok := dom.Attr(n, "aria-modal"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	_, ok := d.dialogRoles[classify.Role(n)]
	return ok
}

// onRecords filters a mutation batch down to changes that can affect focus
// state and were not written by the driver itself.
func (d *Driver) onRecords(recs []dom.MutationRecord) {
	relevant := 0
	for _, rec := range recs {
		if d.ownWrite(rec.Seq) || announce.IsLiveRegion(rec.Target) {
			continue
		}
		switch rec.Kind {
		case dom.MutationChildList:
			if len(rec.Added) == 0 && len(rec.Removed) == 0 {
				continue
			}
		case dom.MutationAttributes:
			if _, ok := relevantAttributes[rec.AttributeName]; !ok {
				continue
			}
		}
		relevant++
		d.OnTreeChanged(rec.Target)
	}
	if relevant > 0 {
		d.logger.Debug("Mutation batch queued a pass.", zap.Int("records", len(recs)), zap.Int("relevant", relevant))
	}
}

func (d *Driver) ownWrite(seq uint64) bool {
	for _, w := range d.windows {
		if seq >= w.from && seq <= w.to {
			return true
		}
	}
	return false
}

// recordWindow remembers w and forgets windows whose records have all been
// delivered. Back-to-back windows are merged.
func (d *Driver) recordWindow(w seqWindow) {
	oldest, pending := d.doc.OldestPending()
	kept := d.windows[:0]
	for _, old := range d.windows {
		if pending && old.to >= oldest {
			kept = append(kept, old)
		}
	}
	d.windows = kept

	if n := len(d.windows); n > 0 && d.windows[n-1].to+1 >= w.from {
		d.windows[n-1].to = w.to
		return
	}
	if pending && w.to >= oldest {
		d.windows = append(d.windows, w)
	}
}

// WriteWindows returns how many self-write windows are still remembered.
func (d *Driver) WriteWindows() int { return len(d.windows) }

// AccessibleName returns a short label for a region: aria-label, the text
// of aria-labelledby targets, or its first heading.
func AccessibleName(region *html.Node) string {
	if v, ok := dom.Attr(region, "aria-label"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if ids, ok := dom.Attr(region, "aria-labelledby"); ok {
		top := region
		for top.Parent != nil {
			top = top.Parent
		}
		var parts []string
		for _, id := range strings.Fields(ids) {
			dom.Walk(top, func(n *html.Node) bool {
				if v, ok := dom.Attr(n, "id"); ok && v == id {
					if text := strings.Join(strings.Fields(dom.TextContent(n)), " "); text != "" {
						parts = append(parts, text)
					}
					return false
				}
				return true
			})
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	var heading string
	dom.Walk(region, func(n *html.Node) bool {
		if heading != "" {
			return false
		}
		if dom.IsElement(n, "h1", "h2", "h3", "h4", "h5", "h6") {
			heading = strings.Join(strings.Fields(dom.TextContent(n)), " ")
			return false
		}
		return true
	})
	if heading != "" {
		return heading
	}
	return "Dialog"
}
