// internal/browser/dom/document.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sequencer returns the sequential focus order for the tree under root. The
// document uses it to carry out the default action of Tab and Shift+Tab.
type Sequencer func(root *html.Node) []*html.Node

// Document owns a live node tree and supplies what a browser page would: a
// focus model, event dispatch and mutation observation. It is bound to one
// event loop and, like a page, must only be used from that loop's goroutine.
type Document struct {
	root   *html.Node
	loop   *eventloop.Loop
	logger *zap.Logger

	active    *html.Node
	sequencer Sequencer

	listeners map[*html.Node]map[string][]*listenerEntry

	seq       uint64
	observers []*observer
}

// Parse reads an HTML document and wraps it.
func Parse(r io.Reader, loop *eventloop.Loop, logger *zap.Logger) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return NewDocument(root, loop, logger), nil
}

// ParseString is Parse over a string.
func ParseString(markup string, loop *eventloop.Loop, logger *zap.Logger) (*Document, error) {
	return Parse(strings.NewReader(markup), loop, logger)
}

// NewDocument wraps an already parsed tree. A nil loop gets a private one.
func NewDocument(root *html.Node, loop *eventloop.Loop, logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loop == nil {
		loop = eventloop.New(logger)
	}
	return &Document{
		root:      root,
		loop:      loop,
		logger:    logger.Named("dom"),
		listeners: make(map[*html.Node]map[string][]*listenerEntry),
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Loop returns the event loop the document schedules on.
func (d *Document) Loop() *eventloop.Loop { return d.loop }

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	var body *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	return body
}

// IsAttached reports whether n is currently part of this document's tree.
func (d *Document) IsAttached(n *html.Node) bool {
	return n != nil && Contains(d.root, n)
}

// SetSequencer installs the function used for Tab navigation.
func (d *Document) SetSequencer(s Sequencer) { d.sequencer = s }

// -- Focus --

// ActiveElement returns the focused element, or nil when focus is on nothing
// (or the focused element has since been detached).
func (d *Document) ActiveElement() *html.Node {
	if d.active != nil && !d.IsAttached(d.active) {
		d.active = nil
	}
	return d.active
}

// Focus moves focus to n. Only attached elements can take focus.
func (d *Document) Focus(n *html.Node) bool {
	if !IsElement(n) || !d.IsAttached(n) {
		return false
	}
	d.active = n
	return true
}

// Blur clears focus.
func (d *Document) Blur() { d.active = nil }

// -- Tree writes --
//
// Every write goes through the document so that observers see it.

// SetAttr sets an attribute, queuing a mutation record if the value changes.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	key = strings.ToLower(key)
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, key) {
			if n.Attr[i].Val == val {
				return
			}
			old := n.Attr[i].Val
			n.Attr[i].Val = val
			d.record(MutationRecord{Kind: MutationAttributes, Target: n, AttributeName: key, OldValue: old, HadValue: true})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.record(MutationRecord{Kind: MutationAttributes, Target: n, AttributeName: key})
}

// RemoveAttr removes an attribute if present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.record(MutationRecord{Kind: MutationAttributes, Target: n, AttributeName: strings.ToLower(key), OldValue: a.Val, HadValue: true})
			return
		}
	}
}

// AppendChild moves child (detaching it first if needed) to the end of parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil {
		return
	}
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.InsertBefore(child, ref)
	d.record(MutationRecord{Kind: MutationChildList, Target: parent, Added: []*html.Node{child}})
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	parent := n.Parent
	parent.RemoveChild(n)
	d.record(MutationRecord{Kind: MutationChildList, Target: parent, Removed: []*html.Node{n}})
}

// ReplaceChildren swaps the whole child list of parent for nodes.
func (d *Document) ReplaceChildren(parent *html.Node, nodes ...*html.Node) {
	if parent == nil {
		return
	}
	var removed []*html.Node
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.AppendChild(n)
	}
	if len(removed) == 0 && len(nodes) == 0 {
		return
	}
	d.record(MutationRecord{Kind: MutationChildList, Target: parent, Added: nodes, Removed: removed})
}

// SetInnerHTML parses markup in the context of n and replaces n's children.
func (d *Document) SetInnerHTML(n *html.Node, markup string) error {
	if n == nil {
		return fmt.Errorf("cannot set inner HTML of a nil node")
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	d.ReplaceChildren(n, nodes...)
	return nil
}

// SetTextContent replaces n's children with a single text node.
func (d *Document) SetTextContent(n *html.Node, text string) {
	if text == "" {
		d.ReplaceChildren(n)
		return
	}
	d.ReplaceChildren(n, &html.Node{Type: html.TextNode, Data: text})
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string, attrs ...html.Attribute) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: attrs}
}
