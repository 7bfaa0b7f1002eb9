// internal/a11y/announce/announce.go
package announce

import (
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// MarkerAttribute identifies the live region this package owns.
const MarkerAttribute = "data-focuswarden-live"

// visuallyHidden keeps the region out of sight without hiding it from
// assistive technology.
const visuallyHidden = "position:absolute;width:1px;height:1px;margin:-1px;overflow:hidden;clip:rect(0 0 0 0);white-space:nowrap;border:0"

// Announcer speaks messages through a single polite live region.
type Announcer struct {
	doc    *dom.Document
	logger *zap.Logger

	region  *html.Node
	pending *eventloop.Task
}

// New creates an announcer. The live region is created on first use.
func New(doc *dom.Document, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Announcer{doc: doc, logger: logger.Named("announce")}
}

// Announce clears the live region now and writes msg on the next tick, so
// that a repeated message is still a change.
func (a *Announcer) Announce(msg string) {
	region := a.ensureRegion()
	if region == nil {
		a.logger.Debug("No place to attach the live region; dropping announcement.")
		return
	}

	a.pending.Cancel()
	a.doc.SetTextContent(region, "")
	if msg == "" {
		a.pending = nil
		return
	}
	a.pending = a.doc.Loop().PostNamed("announce", func() {
		a.pending = nil
		if a.doc.IsAttached(region) {
			a.doc.SetTextContent(region, msg)
		}
	})
}

// Region returns the live region, or nil before the first announcement.
func (a *Announcer) Region() *html.Node {
	if a.region != nil && !a.doc.IsAttached(a.region) {
		a.region = nil
	}
	return a.region
}

// IsLiveRegion reports whether n is a region created by an Announcer.
func IsLiveRegion(n *html.Node) bool {
	return dom.HasAttr(n, MarkerAttribute)
}

func (a *Announcer) ensureRegion() *html.Node {
	if r := a.Region(); r != nil {
		return r
	}
	if existing, err := dom.Query(a.doc.Root(), "["+MarkerAttribute+"]"); err == nil {
		a.region = existing
		return existing
	}

	parent := a.doc.Body()
	if parent == nil {
		dom.Walk(a.doc.Root(), func(n *html.Node) bool {
			parent = n
			return false
		})
	}
	if parent == nil {
		return nil
	}

	region := a.doc.CreateElement("div",
		html.Attribute{Key: MarkerAttribute},
		html.Attribute{Key: "aria-live", Val: "polite"},
		html.Attribute{Key: "aria-atomic", Val: "true"},
		html.Attribute{Key: "role", Val: "status"},
		html.Attribute{Key: "style", Val: visuallyHidden},
	)
	a.doc.AppendChild(parent, region)
	a.region = region
	a.logger.Debug("Created live region.")
	return region
}
