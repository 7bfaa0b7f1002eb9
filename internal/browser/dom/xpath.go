// internal/browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// XPathOf builds an XPath that selects n, anchored on the nearest ancestor
// with an id when there is one. It is used to name nodes in diagnostics.
func XPathOf(n *html.Node) string {
	if n == nil {
		return ""
	}

	var steps []string
	anchored := false
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode || cur.Data == "" {
			continue
		}
		if id, ok := Attr(cur, "id"); ok && id != "" {
			steps = append(steps, "//*[@id="+xpathLiteral(id)+"]")
			anchored = true
			break
		}

		tag := strings.ToLower(cur.Data)
		index := 1
		for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.EqualFold(prev.Data, tag) {
				index++
			}
		}
		steps = append(steps, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(steps) == 0 {
		return "/"
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	path := strings.Join(steps, "/")
	if !anchored {
		path = "/" + path
	}
	return path
}
