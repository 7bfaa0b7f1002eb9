// internal/a11y/classify/classify.go
package classify

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/focuswarden/internal/a11y/visibility"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"golang.org/x/net/html"
)

// Category is the classification of a single node.
type Category int

const (
	Irrelevant Category = iota
	NativelyInteractive
	StrayTabIndex
)

func (c Category) String() string {
	switch c {
	case NativelyInteractive:
		return "natively_interactive"
	case StrayTabIndex:
		return "stray_tabindex"
	default:
		return "irrelevant"
	}
}

// ListenerSource reports registered event listeners, e.g. *dom.Document.
type ListenerSource interface {
	HasListener(node *html.Node, types ...string) bool
}

// Verdict bundles everything the classifier knows about a node.
type Verdict struct {
	Category    Category
	Hidden      bool
	Deactivated bool
	TabIndex    int
	HasTabIndex bool
}

// Excluded is true when the node must stay out of sequential focus.
func (v Verdict) Excluded() bool { return v.Hidden || v.Deactivated }

// Classifier applies a Policy to nodes. It holds no per-node state: every
// answer reflects the tree as it is at the moment of the call.
type Classifier struct {
	policy    *Policy
	oracle    *visibility.Oracle
	listeners ListenerSource
}

// New creates a classifier. nil policy and oracle get defaults; listeners may be nil.
func New(policy *Policy, oracle *visibility.Oracle, listeners ListenerSource) *Classifier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if oracle == nil {
		oracle = visibility.New(nil)
	}
	return &Classifier{policy: policy, oracle: oracle, listeners: listeners}
}

// Policy returns the active policy.
func (c *Classifier) Policy() *Policy { return c.policy }

// Oracle returns the visibility oracle the classifier consults.
func (c *Classifier) Oracle() *visibility.Oracle { return c.oracle }

// Classify places n in one of the three categories. Hidden nodes are still
// classified by what they are; pair with ShouldExclude.
func (c *Classifier) Classify(n *html.Node) Category {
	if !dom.IsElement(n) {
		return Irrelevant
	}
	if c.IsInteractive(n) {
		return NativelyInteractive
	}
	if c.isStray(n) {
		return StrayTabIndex
	}
	return Irrelevant
}

// ShouldExclude is true iff n is hidden or explicitly deactivated.
func (c *Classifier) ShouldExclude(n *html.Node) bool {
	return c.oracle.IsHidden(n) || IsDeactivated(n)
}

// Inspect returns the full verdict for n.
func (c *Classifier) Inspect(n *html.Node) Verdict {
	ti, ok := TabIndex(n)
	return Verdict{
		Category:    c.Classify(n),
		Hidden:      c.oracle.IsHidden(n),
		Deactivated: IsDeactivated(n),
		TabIndex:    ti,
		HasTabIndex: ok,
	}
}

// IsInteractive reports whether n matches the interactive set: a qualifying
// tag, an interactive role, an editable region or a composite trigger.
func (c *Classifier) IsInteractive(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	tag := strings.ToLower(n.Data)
	if _, ok := c.policy.InteractiveTags[tag]; ok && tagQualifies(n, tag) {
		return true
	}
	if _, ok := c.policy.InteractiveRoles[Role(n)]; ok {
		return true
	}
	if IsEditable(n) {
		return true
	}
	for _, attr := range c.policy.TriggerAttributes {
		if v, ok := dom.Attr(n, attr); ok && !strings.EqualFold(strings.TrimSpace(v), "false") {
			return true
		}
	}
	return false
}

// IsFocusable reports whether n can take focus right now, either because it
// is interactive or because it carries a valid tabindex.
func (c *Classifier) IsFocusable(n *html.Node) bool {
	if !dom.IsElement(n) || c.ShouldExclude(n) {
		return false
	}
	if _, ok := TabIndex(n); ok {
		return true
	}
	return c.IsInteractive(n)
}

// HasKeyboardHandler reports an inline key handler attribute or a key
// listener registered through the document.
func (c *Classifier) HasKeyboardHandler(n *html.Node) bool {
	for _, attr := range c.policy.KeyboardHandlerAttributes {
		if dom.HasAttr(n, attr) {
			return true
		}
	}
	return c.listeners != nil && c.listeners.HasListener(n, c.policy.KeyboardEvents...)
}

func (c *Classifier) isStray(n *html.Node) bool {
	if _, ok := dom.Attr(n, "tabindex"); !ok {
		return false
	}
	if _, ok := c.policy.GenericContainers[strings.ToLower(n.Data)]; !ok {
		return false
	}
	if dom.HasAttr(n, "role") {
		return false
	}
	return !c.HasKeyboardHandler(n)
}

func tagQualifies(n *html.Node, tag string) bool {
	switch tag {
	case "a", "area":
		return dom.HasAttr(n, "href")
	case "input":
		if t, _ := dom.Attr(n, "type"); strings.EqualFold(strings.TrimSpace(t), "hidden") {
			return false
		}
		return !IsDeactivated(n)
	case "button", "select", "textarea":
		return !IsDeactivated(n)
	case "audio", "video":
		return dom.HasAttr(n, "controls")
	case "summary":
		return n.Parent != nil && dom.IsElement(n.Parent, "details") && firstElementChild(n.Parent) == n
	default:
		return true
	}
}

// Role returns the first token of the role attribute, lowercased.
func Role(n *html.Node) string {
	v, ok := dom.Attr(n, "role")
	if !ok {
		return ""
	}
	fields := strings.Fields(strings.ToLower(v))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsEditable reports contenteditable regions.
func IsEditable(n *html.Node) bool {
	v, ok := dom.Attr(n, "contenteditable")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "true", "plaintext-only":
		return true
	}
	return false
}

var formControls = map[string]struct{}{
	"button": {}, "input": {}, "select": {}, "textarea": {},
	"optgroup": {}, "option": {}, "fieldset": {},
}

// IsDeactivated reports a disabled form control (directly or through a
// disabled fieldset) or aria-disabled="true".
func IsDeactivated(n *html.Node) bool {
	if !dom.IsElement(n) {
		return false
	}
	if v, ok := dom.Attr(n, "aria-disabled"); ok && strings.EqualFold(strings.TrimSpace(v), "true") {
		return true
	}
	if _, ok := formControls[strings.ToLower(n.Data)]; !ok {
		return false
	}
	if dom.HasAttr(n, "disabled") {
		return true
	}
	return inDisabledFieldset(n)
}

// inDisabledFieldset applies the HTML rule: descendants of a disabled
// fieldset are disabled, except those inside its first legend.
func inDisabledFieldset(n *html.Node) bool {
	child := n
	for p := n.Parent; p != nil; child, p = p, p.Parent {
		if !dom.IsElement(p, "fieldset") || !dom.HasAttr(p, "disabled") {
			continue
		}
		if dom.IsElement(child, "legend") && firstLegend(p) == child {
			continue
		}
		return true
	}
	return false
}

func firstLegend(fieldset *html.Node) *html.Node {
	for c := fieldset.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c, "legend") {
			return c
		}
	}
	return nil
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// TabIndex parses the tabindex attribute. Missing or unparseable values
// report false.
func TabIndex(n *html.Node) (int, bool) {
	v, ok := dom.Attr(n, "tabindex")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}
