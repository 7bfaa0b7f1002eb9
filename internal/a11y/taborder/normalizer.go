// internal/a11y/taborder/normalizer.go
package taborder

import (
	"strconv"

	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// AttributeWriter performs tree writes, e.g. *dom.Document.
type AttributeWriter interface {
	SetAttr(n *html.Node, key, val string)
	RemoveAttr(n *html.Node, key string)
}

// Options selects which passes Run applies.
type Options struct {
	CorrectNegativeOrder      bool
	CollapsePositiveOrder     bool
	EnsureInteractiveCoverage bool
	PruneStrayOrder           bool
}

// DefaultOptions enables the three repair passes and leaves pruning off.
func DefaultOptions() Options {
	return Options{
		CorrectNegativeOrder:      true,
		CollapsePositiveOrder:     true,
		EnsureInteractiveCoverage: true,
	}
}

// Result lists the nodes each pass changed.
type Result struct {
	Repaired  []*html.Node
	Collapsed []*html.Node
	Covered   []*html.Node
	Pruned    []*html.Node
	// Stray lists stray nodes left in place because pruning was disabled.
	Stray []*html.Node
}

// Changed reports whether any pass wrote to the tree.
func (r Result) Changed() int {
	return len(r.Repaired) + len(r.Collapsed) + len(r.Covered) + len(r.Pruned)
}

// Normalizer repairs tabindex attributes. Every pass is idempotent.
type Normalizer struct {
	classifier *classify.Classifier
	writer     AttributeWriter
	reporter   *diag.Reporter
	logger     *zap.Logger
	protected  func(*html.Node) bool
}

// NewNormalizer creates a normalizer writing through w.
func NewNormalizer(c *classify.Classifier, w AttributeWriter, reporter *diag.Reporter, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		classifier: c,
		writer:     w,
		reporter:   reporter,
		logger:     logger.Named("normalizer"),
		protected:  func(*html.Node) bool { return false },
	}
}

// SetProtected installs a predicate for nodes no pass may touch.
func (n *Normalizer) SetProtected(fn func(*html.Node) bool) {
	if fn == nil {
		fn = func(*html.Node) bool { return false }
	}
	n.protected = fn
}

// Run applies the enabled passes in order.
func (n *Normalizer) Run(root *html.Node, opts Options) Result {
	var res Result
	if opts.CorrectNegativeOrder {
		res.Repaired = n.RepairNegativeOrder(root)
	}
	if opts.CollapsePositiveOrder {
		res.Collapsed = n.CollapsePositiveOrder(root)
	}
	if opts.EnsureInteractiveCoverage {
		res.Covered = n.EnsureCoverage(root)
	}
	if opts.PruneStrayOrder {
		res.Pruned = n.PruneStrayOrder(root)
	} else {
		res.Stray = n.FindStray(root)
	}
	if res.Changed() > 0 {
		n.logger.Debug("Normalized tab order.",
			zap.String("root", dom.XPathOf(root)),
			zap.Int("repaired", len(res.Repaired)),
			zap.Int("collapsed", len(res.Collapsed)),
			zap.Int("covered", len(res.Covered)),
			zap.Int("pruned", len(res.Pruned)),
		)
	}
	return res
}

// RepairNegativeOrder rewrites tabindex="-1" to "0" on interactive nodes
// that are neither hidden nor deactivated.
func (n *Normalizer) RepairNegativeOrder(root *html.Node) []*html.Node {
	return n.rewrite(root, func(node *html.Node) bool {
		ti, ok := classify.TabIndex(node)
		return ok && ti == -1 &&
			n.classifier.Classify(node) == classify.NativelyInteractive &&
			!n.classifier.ShouldExclude(node)
	}, "0")
}

// CollapsePositiveOrder rewrites every tabindex greater than zero to "0".
func (n *Normalizer) CollapsePositiveOrder(root *html.Node) []*html.Node {
	return n.rewrite(root, func(node *html.Node) bool {
		ti, ok := classify.TabIndex(node)
		return ok && ti > 0
	}, "0")
}

// EnsureCoverage gives tabindex="0" to visible interactive nodes that carry
// no tabindex attribute at all.
func (n *Normalizer) EnsureCoverage(root *html.Node) []*html.Node {
	return n.rewrite(root, func(node *html.Node) bool {
		return !dom.HasAttr(node, "tabindex") &&
			n.classifier.IsInteractive(node) &&
			!n.classifier.Oracle().IsHidden(node)
	}, "0")
}

// FindStray lists the nodes PruneStrayOrder would touch, without writing.
func (n *Normalizer) FindStray(root *html.Node) []*html.Node {
	var targets []*html.Node
	dom.Walk(root, func(node *html.Node) bool {
		if !n.protected(node) && n.classifier.Classify(node) == classify.StrayTabIndex {
			targets = append(targets, node)
		}
		return true
	})
	return targets
}

// PruneStrayOrder removes tabindex from generic containers that have no
// role and no keyboard handler, reporting each one.
func (n *Normalizer) PruneStrayOrder(root *html.Node) []*html.Node {
	targets := n.FindStray(root)
	for _, node := range targets {
		old, _ := dom.Attr(node, "tabindex")
		n.writer.RemoveAttr(node, "tabindex")
		n.reporter.Report(diag.Diagnostic{
			Kind:    diag.KindStrayTabIndex,
			Message: "removed stray tabindex=" + strconv.Quote(old) + " from a generic container",
			Node:    node,
		})
	}
	return targets
}

// rewrite collects matching nodes first, then writes, so predicates always
// see the tree as it was when the pass began.
func (n *Normalizer) rewrite(root *html.Node, match func(*html.Node) bool, val string) []*html.Node {
	var targets []*html.Node
	dom.Walk(root, func(node *html.Node) bool {
		if !n.protected(node) && match(node) {
			targets = append(targets, node)
		}
		return true
	})
	for _, node := range targets {
		n.writer.SetAttr(node, "tabindex", val)
	}
	return targets
}
