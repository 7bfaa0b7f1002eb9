// internal/a11y/visibility/visibility.go
package visibility

import (
	"strings"

	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/browser/parser"
	"github.com/xkilldash9x/focuswarden/internal/browser/style"
	"golang.org/x/net/html"
)

// Oracle answers whether a node is perceivable. Verdicts are computed from
// the current tree on every call.
type Oracle struct {
	resolver *style.Resolver

	// generation, when set, lets the oracle reuse the collected author
	// sheets until the tree is written to again.
	generation func() uint64
	cachedGen  uint64
	cachedRoot *html.Node
	cached     []parser.StyleSheet
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithGeneration ties the author stylesheet list to a mutation counter such
// as dom.Document.MutationSeq.
func WithGeneration(gen func() uint64) Option {
	return func(o *Oracle) { o.generation = gen }
}

// New creates an oracle. A nil resolver gets a default one.
func New(resolver *style.Resolver, opts ...Option) *Oracle {
	if resolver == nil {
		resolver = style.NewResolver()
	}
	o := &Oracle{resolver: resolver}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsHidden reports whether n, or any ancestor, is hidden from the user or
// from assistive technology. Nil and detached nodes are hidden.
func (o *Oracle) IsHidden(n *html.Node) bool {
	if n == nil {
		return true
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	if top.Type != html.DocumentNode {
		return true
	}

	sheets := o.authorSheets(top)
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if hiddenByMarkup(cur) {
			return true
		}
		if hiddenByStyle(o.resolver.Compute(cur, sheets)) {
			return true
		}
	}
	return false
}

// HiddenReason names the first rule that hides n, or "" when visible. It is
// meant for audit output.
func (o *Oracle) HiddenReason(n *html.Node) string {
	if n == nil {
		return "nil node"
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	if top.Type != html.DocumentNode {
		return "detached"
	}
	sheets := o.authorSheets(top)
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if reason := markupReason(cur); reason != "" {
			return reason + " on " + dom.XPathOf(cur)
		}
		if reason := styleReason(o.resolver.Compute(cur, sheets)); reason != "" {
			return reason + " on " + dom.XPathOf(cur)
		}
	}
	return ""
}

func (o *Oracle) authorSheets(top *html.Node) []parser.StyleSheet {
	if o.generation == nil {
		return o.resolver.AuthorSheets(top)
	}
	gen := o.generation()
	if o.cachedRoot == top && o.cachedGen == gen && o.cached != nil {
		return o.cached
	}
	o.cached = o.resolver.AuthorSheets(top)
	if o.cached == nil {
		o.cached = []parser.StyleSheet{}
	}
	o.cachedRoot, o.cachedGen = top, gen
	return o.cached
}

func hiddenByMarkup(n *html.Node) bool { return markupReason(n) != "" }

func markupReason(n *html.Node) string {
	if dom.HasAttr(n, "hidden") {
		return "hidden attribute"
	}
	if dom.HasAttr(n, "inert") {
		return "inert attribute"
	}
	if v, ok := dom.Attr(n, "aria-hidden"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return `aria-hidden="true"`
	}
	if dom.IsElement(n, "input") {
		if v, _ := dom.Attr(n, "type"); strings.EqualFold(strings.TrimSpace(v), "hidden") {
			return "hidden input"
		}
	}
	return ""
}

func hiddenByStyle(d style.Declared) bool { return styleReason(d) != "" }

func styleReason(d style.Declared) string {
	if strings.EqualFold(d.Lookup("display", ""), "none") {
		return "display:none"
	}
	switch strings.ToLower(d.Lookup("visibility", "")) {
	case "hidden", "collapse":
		return "visibility:" + strings.ToLower(d.Lookup("visibility", ""))
	}
	if op, ok := style.ParseOpacity(d.Lookup("opacity", "")); ok && op <= 0 {
		return "opacity:0"
	}
	if clipsOverflow(d) && (style.IsZeroLength(d.Lookup("width", "")) || style.IsZeroLength(d.Lookup("height", ""))) {
		return "zero size with clipped overflow"
	}
	return ""
}

func clipsOverflow(d style.Declared) bool {
	for _, prop := range []string{"overflow-x", "overflow-y", "overflow"} {
		switch strings.ToLower(d.Lookup(prop, "")) {
		case "hidden", "clip":
			return true
		}
	}
	return false
}
