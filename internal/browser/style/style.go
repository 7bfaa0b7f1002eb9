// internal/browser/style/style.go
package style

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xkilldash9x/focuswarden/internal/browser/parser"
	"golang.org/x/net/html"
)

// DefaultUserAgentCSS covers the UA rules that decide whether something renders at all.
const DefaultUserAgentCSS = `
head, script, style, template, title, meta, link, base, noscript { display: none; }
dialog:not([open]) { display: none; }
[hidden] { display: none; }
`

// Declared holds the cascaded (specified) values for one element. It is not
// inherited: each element carries only what applies to it directly.
type Declared map[parser.Property]parser.Value

// Lookup returns the value for property, or fallback if none was declared.
func (d Declared) Lookup(property, fallback string) string {
	if val, ok := d[parser.Property(property)]; ok {
		return strings.TrimSpace(string(val))
	}
	return fallback
}

// Resolver runs the cascade for individual elements. It memoizes parsed
// stylesheets by their source text; it never memoizes results per element.
type Resolver struct {
	userAgent []parser.StyleSheet

	mu    sync.Mutex
	cache map[string]parser.StyleSheet
}

// NewResolver creates a resolver with the default user agent stylesheet.
func NewResolver() *Resolver {
	return &Resolver{
		userAgent: []parser.StyleSheet{parser.ParseStyleSheet(DefaultUserAgentCSS)},
		cache:     make(map[string]parser.StyleSheet),
	}
}

// AuthorSheets collects and parses every <style> element in the tree containing node.
func (r *Resolver) AuthorSheets(node *html.Node) []parser.StyleSheet {
	if node == nil {
		return nil
	}
	root := node
	for root.Parent != nil {
		root = root.Parent
	}

	var sheets []parser.StyleSheet
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "style") {
			sheets = append(sheets, r.sheet(textOf(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sheets
}

func (r *Resolver) sheet(src string) parser.StyleSheet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sheet, ok := r.cache[src]; ok {
		return sheet
	}
	sheet := parser.ParseStyleSheet(src)
	r.cache[src] = sheet
	return sheet
}

type origin int

const (
	originUserAgent origin = iota
	originAuthor
	originInline
)

type cascaded struct {
	decl        parser.Declaration
	origin      origin
	specificity parser.Specificity
	order       int
}

// priority orders origins and importance per the cascade: normal UA < normal
// author < inline < important author/inline < important UA.
func (c cascaded) priority() int {
	switch c.origin {
	case originUserAgent:
		if c.decl.Important {
			return 5
		}
		return 1
	case originAuthor:
		if c.decl.Important {
			return 4
		}
		return 2
	default:
		if c.decl.Important {
			return 4
		}
		return 3
	}
}

// Compute returns the declared values that win the cascade for node.
func (r *Resolver) Compute(node *html.Node, author []parser.StyleSheet) Declared {
	out := make(Declared)
	if node == nil || node.Type != html.ElementNode {
		return out
	}

	var decls []cascaded
	order := 0
	collect := func(sheets []parser.StyleSheet, o origin) {
		for _, sheet := range sheets {
			for _, rule := range sheet.Rules {
				spec, ok := bestMatch(node, rule.Selectors)
				if !ok {
					continue
				}
				for _, d := range rule.Declarations {
					decls = append(decls, cascaded{decl: d, origin: o, specificity: spec, order: order})
					order++
				}
			}
		}
	}
	collect(r.userAgent, originUserAgent)
	collect(author, originAuthor)

	for _, attr := range node.Attr {
		if attr.Key != "style" {
			continue
		}
		for _, d := range parser.ParseDeclarations(attr.Val) {
			decls = append(decls, cascaded{decl: d, origin: originInline, specificity: parser.Specificity{1, 0, 0}, order: order})
			order++
		}
	}

	sort.SliceStable(decls, func(i, j int) bool {
		a, b := decls[i], decls[j]
		if pa, pb := a.priority(), b.priority(); pa != pb {
			return pa < pb
		}
		if a.specificity != b.specificity {
			return a.specificity.Less(b.specificity)
		}
		return a.order < b.order
	})
	for _, c := range decls {
		out[c.decl.Property] = c.decl.Value
	}
	expandOverflow(out)
	return out
}

func expandOverflow(d Declared) {
	v, ok := d["overflow"]
	if !ok {
		return
	}
	parts := strings.Fields(string(v))
	switch len(parts) {
	case 1:
		setIfAbsent(d, "overflow-x", parts[0])
		setIfAbsent(d, "overflow-y", parts[0])
	case 2:
		setIfAbsent(d, "overflow-x", parts[0])
		setIfAbsent(d, "overflow-y", parts[1])
	}
}

func setIfAbsent(d Declared, prop parser.Property, val string) {
	if _, ok := d[prop]; !ok {
		d[prop] = parser.Value(val)
	}
}

// Matches reports whether node matches any selector in list.
func Matches(node *html.Node, list parser.SelectorList) bool {
	_, ok := bestMatch(node, list)
	return ok
}

func bestMatch(node *html.Node, list parser.SelectorList) (parser.Specificity, bool) {
	var best parser.Specificity
	found := false
	for _, cs := range list {
		if len(cs.Parts) == 0 || !matchFrom(node, cs, len(cs.Parts)-1) {
			continue
		}
		if s := cs.Specificity(); !found || best.Less(s) {
			best = s
		}
		found = true
	}
	return best, found
}

// matchFrom matches cs.Parts[index] against node, then walks left through the
// combinators.
func matchFrom(node *html.Node, cs parser.ComplexSelector, index int) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	part := cs.Parts[index]
	if !matchCompound(node, part.Compound) {
		return false
	}
	if index == 0 {
		return true
	}

	switch part.Combinator {
	case parser.CombinatorDescendant:
		for p := node.Parent; p != nil; p = p.Parent {
			if matchFrom(p, cs, index-1) {
				return true
			}
		}
		return false
	case parser.CombinatorChild:
		return matchFrom(node.Parent, cs, index-1)
	case parser.CombinatorAdjacentSibling:
		return matchFrom(previousElement(node), cs, index-1)
	case parser.CombinatorGeneralSibling:
		for s := previousElement(node); s != nil; s = previousElement(s) {
			if matchFrom(s, cs, index-1) {
				return true
			}
		}
		return false
	}
	return false
}

func previousElement(node *html.Node) *html.Node {
	for s := node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func matchCompound(node *html.Node, c parser.Compound) bool {
	if c.Tag != "" && c.Tag != "*" && !strings.EqualFold(node.Data, c.Tag) {
		return false
	}
	if c.ID != "" {
		if id, ok := attr(node, "id"); !ok || id != c.ID {
			return false
		}
	}
	if len(c.Classes) > 0 {
		classAttr, _ := attr(node, "class")
		have := strings.Fields(classAttr)
		for _, want := range c.Classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, sel := range c.Attributes {
		if !matchesAttribute(node, sel) {
			return false
		}
	}
	for _, neg := range c.Not {
		if matchCompound(node, neg) {
			return false
		}
	}
	return true
}

func matchesAttribute(node *html.Node, sel parser.AttributeSelector) bool {
	actual, found := attr(node, sel.Name)
	if !found {
		return false
	}
	switch sel.Operator {
	case "":
		return true
	case "=":
		return actual == sel.Value
	case "~=":
		return containsString(strings.Fields(actual), sel.Value)
	case "|=":
		return actual == sel.Value || strings.HasPrefix(actual, sel.Value+"-")
	case "^=":
		return sel.Value != "" && strings.HasPrefix(actual, sel.Value)
	case "$=":
		return sel.Value != "" && strings.HasSuffix(actual, sel.Value)
	case "*=":
		return sel.Value != "" && strings.Contains(actual, sel.Value)
	default:
		return false
	}
}

func attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// IsZeroLength reports whether value is a length that resolves to zero
// ("0", "0px", "0.0em", "0%"). Keywords such as auto are not zero.
func IsZeroLength(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return false
	}
	end := 0
	for end < len(value) && (value[end] == '.' || value[end] == '-' || value[end] == '+' || (value[end] >= '0' && value[end] <= '9')) {
		end++
	}
	if end == 0 {
		return false
	}
	num, err := strconv.ParseFloat(value[:end], 64)
	if err != nil {
		return false
	}
	switch unit := value[end:]; unit {
	case "", "px", "em", "rem", "%", "vw", "vh", "vmin", "vmax", "pt", "cm", "mm", "in", "ch", "ex":
		return num == 0
	default:
		return false
	}
}

// ParseOpacity parses an opacity value, accepting numbers and percentages.
func ParseOpacity(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return 0, false
		}
		return f / 100, true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
