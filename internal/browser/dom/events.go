// internal/browser/dom/events.go
package dom

import (
	"golang.org/x/net/html"
)

// Key names understood by DispatchKey's default actions.
const (
	KeyTab    = "Tab"
	KeyEscape = "Escape"
	KeyEnter  = "Enter"
)

// Event types.
const (
	EventKeyDown  = "keydown"
	EventKeyUp    = "keyup"
	EventKeyPress = "keypress"
	EventClick    = "click"
)

// Event is a dispatched UI event.
type Event struct {
	Type  string
	Key   string
	Shift bool

	Target        *html.Node
	CurrentTarget *html.Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the browser default action (Tab navigation).
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener canceled the default action.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from bubbling past the current node.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles an event.
type Listener func(*Event)

type listenerEntry struct {
	fn      Listener
	removed bool
}

// AddEventListener registers fn for events of type typ reaching node and
// returns a func that removes it. Removing twice is harmless.
func (d *Document) AddEventListener(node *html.Node, typ string, fn Listener) (remove func()) {
	if node == nil || fn == nil {
		return func() {}
	}
	byType, ok := d.listeners[node]
	if !ok {
		byType = make(map[string][]*listenerEntry)
		d.listeners[node] = byType
	}
	entry := &listenerEntry{fn: fn}
	byType[typ] = append(byType[typ], entry)

	return func() {
		if entry.removed {
			return
		}
		entry.removed = true
		list := d.listeners[node][typ]
		for i, e := range list {
			if e == entry {
				d.listeners[node][typ] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(d.listeners[node][typ]) == 0 {
			delete(d.listeners[node], typ)
		}
		if len(d.listeners[node]) == 0 {
			delete(d.listeners, node)
		}
	}
}

// HasListener reports whether node itself has a listener for any of the types.
func (d *Document) HasListener(node *html.Node, types ...string) bool {
	byType := d.listeners[node]
	for _, typ := range types {
		if len(byType[typ]) > 0 {
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered on node for typ.
func (d *Document) ListenerCount(node *html.Node, typ string) int {
	return len(d.listeners[node][typ])
}

// DispatchKey fires a keydown at target (the focused element when target is
// nil) and then runs the default action unless a listener prevented it.
func (d *Document) DispatchKey(target *html.Node, key string, shift bool) *Event {
	if target == nil {
		target = d.ActiveElement()
	}
	if target == nil {
		target = d.Body()
	}
	ev := &Event{Type: EventKeyDown, Key: key, Shift: shift, Target: target}
	d.dispatch(ev)

	if !ev.defaultPrevented && key == KeyTab {
		d.sequentialNavigate(target, shift)
	}
	return ev
}

// Click fires a click at target. There is no default action.
func (d *Document) Click(target *html.Node) *Event {
	ev := &Event{Type: EventClick, Target: target}
	d.dispatch(ev)
	return ev
}

// dispatch bubbles ev from its target up to the document node. The path is
// fixed before the first listener runs.
func (d *Document) dispatch(ev *Event) {
	if ev.Target == nil {
		return
	}
	var path []*html.Node
	for n := ev.Target; n != nil; n = n.Parent {
		path = append(path, n)
	}
	for _, n := range path {
		entries := append([]*listenerEntry(nil), d.listeners[n][ev.Type]...)
		ev.CurrentTarget = n
		for _, e := range entries {
			if e.removed {
				continue
			}
			e.fn(ev)
		}
		if ev.stopped {
			break
		}
	}
	ev.CurrentTarget = nil
}

// sequentialNavigate moves focus to the next (or previous) entry in the
// document focus order. Leaving either end of the order blurs, the way focus
// leaves a page for the browser chrome.
func (d *Document) sequentialNavigate(from *html.Node, backward bool) {
	if d.sequencer == nil {
		return
	}
	order := d.sequencer(d.root)
	if len(order) == 0 {
		return
	}

	idx := -1
	for i, n := range order {
		if n == from {
			idx = i
			break
		}
	}

	if idx < 0 {
		// Focus is on something outside the order: continue from its
		// position in the document.
		positions := documentPositions(d.root)
		pos, ok := positions[from]
		if !ok {
			pos = -1
		}
		if backward {
			for i := len(order) - 1; i >= 0; i-- {
				if positions[order[i]] < pos {
					d.Focus(order[i])
					return
				}
			}
		} else {
			for _, n := range order {
				if positions[n] > pos {
					d.Focus(n)
					return
				}
			}
		}
		d.Blur()
		return
	}

	next := idx + 1
	if backward {
		next = idx - 1
	}
	if next < 0 || next >= len(order) {
		d.Blur()
		return
	}
	d.Focus(order[next])
}

func documentPositions(root *html.Node) map[*html.Node]int {
	positions := make(map[*html.Node]int)
	i := 0
	Walk(root, func(n *html.Node) bool {
		positions[n] = i
		i++
		return true
	})
	return positions
}
