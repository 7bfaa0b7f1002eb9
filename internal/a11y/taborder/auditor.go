// internal/a11y/taborder/auditor.go
package taborder

import (
	"sort"

	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"golang.org/x/net/html"
)

// Entry is one element of the effective focus order.
type Entry struct {
	Node *html.Node
	// Order is the explicit tabindex, or 0 for implicitly focusable nodes.
	Order int
}

// Auditor computes the sequential focus order of a subtree. It never writes.
type Auditor struct {
	classifier *classify.Classifier
}

// NewAuditor creates an auditor over c.
func NewAuditor(c *classify.Classifier) *Auditor {
	return &Auditor{classifier: c}
}

// ComputeOrder returns the nodes under root (root included) in the order
// sequential navigation would visit them.
func (a *Auditor) ComputeOrder(root *html.Node) []*html.Node {
	entries := a.Entries(root)
	out := make([]*html.Node, len(entries))
	for i, e := range entries {
		out[i] = e.Node
	}
	return out
}

// Entries is ComputeOrder with the order value kept. Explicit positive
// orders come first, ascending and stable by document position; then every
// order-0 or implicit entry in document order.
func (a *Auditor) Entries(root *html.Node) []Entry {
	var positive, natural []Entry
	oracle := a.classifier.Oracle()

	dom.Walk(root, func(n *html.Node) bool {
		if oracle.IsHidden(n) {
			return false
		}
		if classify.IsDeactivated(n) {
			return true
		}
		if ti, ok := classify.TabIndex(n); ok {
			switch {
			case ti > 0:
				positive = append(positive, Entry{Node: n, Order: ti})
			case ti == 0:
				natural = append(natural, Entry{Node: n})
			}
			return true
		}
		if a.classifier.Classify(n) == classify.NativelyInteractive {
			natural = append(natural, Entry{Node: n})
		}
		return true
	})

	sort.SliceStable(positive, func(i, j int) bool { return positive[i].Order < positive[j].Order })
	return append(positive, natural...)
}
