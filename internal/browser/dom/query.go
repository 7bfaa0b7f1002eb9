// internal/browser/dom/query.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/xkilldash9x/focuswarden/internal/browser/parser"
	"golang.org/x/net/html"
)

// IsXPath reports whether a selector should be taken as XPath as-is.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "(")
}

// QueryAll returns the descendants of root matching selector, in document
// order. The selector is CSS unless it looks like XPath; CSS is compiled to
// a relative XPath expression, so root itself is never part of the result.
func QueryAll(root *html.Node, selector string) ([]*html.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("query root is nil")
	}
	expr, err := ToXPath(selector)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, &InvalidSelectorError{Selector: selector, Err: err}
	}
	return nodes, nil
}

// Query returns the first match, or an *ElementNotFoundError.
func Query(root *html.Node, selector string) (*html.Node, error) {
	nodes, err := QueryAll(root, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &ElementNotFoundError{Selector: selector}
	}
	return nodes[0], nil
}

// ToXPath compiles a CSS selector list to an XPath union relative to the
// context node. XPath input is returned unchanged.
func ToXPath(selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if IsXPath(selector) {
		return selector, nil
	}
	list, err := parser.ParseSelector(selector)
	if err != nil {
		return "", &InvalidSelectorError{Selector: selector, Err: err}
	}

	branches := make([]string, 0, len(list))
	for _, cs := range list {
		var sb strings.Builder
		sb.WriteString(".")
		for i, part := range cs.Parts {
			name, preds := compoundXPath(part.Compound)
			switch {
			case i == 0 || part.Combinator == parser.CombinatorDescendant:
				sb.WriteString("//" + name)
			case part.Combinator == parser.CombinatorChild:
				sb.WriteString("/" + name)
			case part.Combinator == parser.CombinatorAdjacentSibling:
				sb.WriteString("/following-sibling::*[1]")
				if name != "*" {
					preds = append([]string{"self::" + name}, preds...)
				}
			case part.Combinator == parser.CombinatorGeneralSibling:
				sb.WriteString("/following-sibling::" + name)
			}
			for _, p := range preds {
				sb.WriteString("[" + p + "]")
			}
		}
		branches = append(branches, sb.String())
	}
	return strings.Join(branches, " | "), nil
}

// compoundXPath returns the node test and predicates for one compound selector.
func compoundXPath(c parser.Compound) (string, []string) {
	name := "*"
	if c.Tag != "" {
		name = strings.ToLower(c.Tag)
	}

	var preds []string
	if c.ID != "" {
		preds = append(preds, "@id="+xpathLiteral(c.ID))
	}
	for _, class := range c.Classes {
		preds = append(preds, tokenPredicate("class", class))
	}
	for _, a := range c.Attributes {
		preds = append(preds, attributePredicate(a))
	}
	for _, neg := range c.Not {
		negName, negPreds := compoundXPath(neg)
		if negName != "*" {
			negPreds = append([]string{"self::" + negName}, negPreds...)
		}
		if len(negPreds) == 0 {
			preds = append(preds, "false()")
			continue
		}
		preds = append(preds, "not("+strings.Join(negPreds, " and ")+")")
	}
	return name, preds
}

func tokenPredicate(attr, token string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@%s), ' '), %s)", attr, xpathLiteral(" "+token+" "))
}

func attributePredicate(a parser.AttributeSelector) string {
	at := "@" + a.Name
	lit := xpathLiteral(a.Value)
	switch a.Operator {
	case "=":
		return at + "=" + lit
	case "~=":
		return tokenPredicate(a.Name, a.Value)
	case "|=":
		return fmt.Sprintf("(%s=%s or starts-with(%s, %s))", at, lit, at, xpathLiteral(a.Value+"-"))
	case "^=":
		if a.Value == "" {
			return "false()"
		}
		return fmt.Sprintf("starts-with(%s, %s)", at, lit)
	case "$=":
		if a.Value == "" {
			return "false()"
		}
		return fmt.Sprintf("substring(%s, string-length(%s) - %d) = %s", at, at, len(a.Value)-1, lit)
	case "*=":
		if a.Value == "" {
			return "false()"
		}
		return fmt.Sprintf("contains(%s, %s)", at, lit)
	default:
		return at
	}
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}
