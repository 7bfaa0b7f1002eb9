// internal/browser/dom/mutation.go
package dom

import (
	"golang.org/x/net/html"
)

// MutationKind distinguishes the two record types the engine cares about.
type MutationKind int

const (
	MutationAttributes MutationKind = iota
	MutationChildList
)

func (k MutationKind) String() string {
	if k == MutationChildList {
		return "childList"
	}
	return "attributes"
}

// MutationRecord describes one write to the tree.
type MutationRecord struct {
	Kind   MutationKind
	Target *html.Node

	// Attribute records.
	AttributeName string
	OldValue      string
	HadValue      bool

	// Child list records. Target is the parent.
	Added   []*html.Node
	Removed []*html.Node

	// Seq is the document's mutation counter value for this write.
	Seq uint64
}

// MutationCallback receives a batch of records in write order.
type MutationCallback func([]MutationRecord)

type observer struct {
	root      *html.Node
	fn        MutationCallback
	pending   []MutationRecord
	scheduled bool
	canceled  bool
}

// Observe subscribes fn to writes inside root (root included). Records are
// batched and delivered on a later loop tick, never synchronously from the
// write. The returned func cancels the subscription, dropping undelivered
// records.
func (d *Document) Observe(root *html.Node, fn MutationCallback) (cancel func()) {
	if root == nil || fn == nil {
		return func() {}
	}
	o := &observer{root: root, fn: fn}
	d.observers = append(d.observers, o)

	return func() {
		if o.canceled {
			return
		}
		o.canceled = true
		o.pending = nil
		for i, other := range d.observers {
			if other == o {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
	}
}

// MutationSeq returns the sequence number of the most recent write.
func (d *Document) MutationSeq() uint64 { return d.seq }

// OldestPending returns the lowest sequence number still waiting for
// delivery to any subscription. ok is false when nothing is pending.
func (d *Document) OldestPending() (seq uint64, ok bool) {
	for _, o := range d.observers {
		if len(o.pending) == 0 {
			continue
		}
		if first := o.pending[0].Seq; !ok || first < seq {
			seq, ok = first, true
		}
	}
	return seq, ok
}

// ObserverCount returns the number of live subscriptions.
func (d *Document) ObserverCount() int { return len(d.observers) }

func (d *Document) record(rec MutationRecord) {
	d.seq++
	rec.Seq = d.seq

	for _, o := range d.observers {
		if !Contains(o.root, rec.Target) {
			continue
		}
		o.pending = append(o.pending, rec)
		if o.scheduled {
			continue
		}
		o.scheduled = true
		obs := o
		d.loop.PostNamed("mutation-delivery", func() { d.deliver(obs) })
	}
}

func (d *Document) deliver(o *observer) {
	o.scheduled = false
	if o.canceled || len(o.pending) == 0 {
		return
	}
	batch := o.pending
	o.pending = nil
	o.fn(batch)
}
