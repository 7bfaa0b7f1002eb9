// internal/a11y/classify/policy.go
package classify

import (
	"sort"
	"strings"
)

// Policy is the data that drives classification. Every list is plain data
// so that callers can extend it without touching the classifier.
type Policy struct {
	// InteractiveTags are focusable by default, subject to the per-tag
	// conditions in the classifier (href on links, enabled controls).
	InteractiveTags map[string]struct{}
	// InteractiveRoles are ARIA widget roles that make any element interactive.
	InteractiveRoles map[string]struct{}
	// GenericContainers are tags that have no keyboard behavior of their own.
	GenericContainers map[string]struct{}
	// TriggerAttributes mark composite widget triggers (menus, popups).
	TriggerAttributes []string
	// KeyboardHandlerAttributes are inline handler attributes that show an
	// element reacts to keys.
	KeyboardHandlerAttributes []string
	// KeyboardEvents are listener types that count as keyboard handlers.
	KeyboardEvents []string
}

// DefaultPolicy returns a fresh copy of the built-in policy.
func DefaultPolicy() *Policy {
	return &Policy{
		InteractiveTags: set(
			"a", "area", "button", "input", "select", "textarea",
			"summary", "iframe", "audio", "video",
		),
		InteractiveRoles: set(
			"button", "checkbox", "combobox", "gridcell", "link", "listbox",
			"menuitem", "menuitemcheckbox", "menuitemradio", "option", "radio",
			"scrollbar", "searchbox", "slider", "spinbutton", "switch", "tab",
			"textbox", "treeitem",
		),
		GenericContainers: set(
			"div", "span", "p", "section", "article", "li", "ul", "ol",
			"td", "th", "tr", "table", "header", "footer", "main", "nav",
			"aside", "label", "img", "h1", "h2", "h3", "h4", "h5", "h6",
			"form", "fieldset",
		),
		TriggerAttributes:         []string{"aria-haspopup"},
		KeyboardHandlerAttributes: []string{"onkeydown", "onkeyup", "onkeypress"},
		KeyboardEvents:            []string{"keydown", "keyup", "keypress"},
	}
}

// Extend returns a copy of p with extra interactive roles and generic
// container tags added. p is not modified.
func (p *Policy) Extend(roles, containers []string) *Policy {
	out := p.clone()
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			out.InteractiveRoles[r] = struct{}{}
		}
	}
	for _, c := range containers {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out.GenericContainers[c] = struct{}{}
		}
	}
	return out
}

// Roles lists the interactive roles, sorted.
func (p *Policy) Roles() []string { return keys(p.InteractiveRoles) }

// Containers lists the generic container tags, sorted.
func (p *Policy) Containers() []string { return keys(p.GenericContainers) }

func (p *Policy) clone() *Policy {
	out := &Policy{
		InteractiveTags:           make(map[string]struct{}, len(p.InteractiveTags)),
		InteractiveRoles:          make(map[string]struct{}, len(p.InteractiveRoles)),
		GenericContainers:         make(map[string]struct{}, len(p.GenericContainers)),
		TriggerAttributes:         append([]string(nil), p.TriggerAttributes...),
		KeyboardHandlerAttributes: append([]string(nil), p.KeyboardHandlerAttributes...),
		KeyboardEvents:            append([]string(nil), p.KeyboardEvents...),
	}
	for k := range p.InteractiveTags {
		out.InteractiveTags[k] = struct{}{}
	}
	for k := range p.InteractiveRoles {
		out.InteractiveRoles[k] = struct{}{}
	}
	for k := range p.GenericContainers {
		out.GenericContainers[k] = struct{}{}
	}
	return out
}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
