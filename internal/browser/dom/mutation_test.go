// internal/browser/dom/mutation_test.go
package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"golang.org/x/net/html"
)

func TestObserve_BatchesOnNextTick(t *testing.T) {
	doc := newTestDocument(t, `<body><div id="root"><span id="in"></span></div><span id="out"></span></body>`)
	root, in, out := byID(t, doc, "root"), byID(t, doc, "in"), byID(t, doc, "out")

	var batches [][]dom.MutationRecord
	cancel := doc.Observe(root, func(recs []dom.MutationRecord) { batches = append(batches, recs) })
	defer cancel()

	doc.SetAttr(in, "tabindex", "0")
	doc.SetAttr(out, "tabindex", "0")
	doc.AppendChild(root, doc.CreateElement("p"))
	assert.Empty(t, batches, "delivery is asynchronous")

	doc.Loop().Drain()
	require.Len(t, batches, 1)
	recs := batches[0]
	require.Len(t, recs, 2)

	assert.Equal(t, dom.MutationAttributes, recs[0].Kind)
	assert.Equal(t, "tabindex", recs[0].AttributeName)
	assert.Equal(t, in, recs[0].Target)
	assert.Equal(t, dom.MutationChildList, recs[1].Kind)
	assert.Equal(t, root, recs[1].Target)
	assert.Len(t, recs[1].Added, 1)
	assert.Less(t, recs[0].Seq, recs[1].Seq)
	assert.Equal(t, doc.MutationSeq(), recs[1].Seq)
}

func TestObserve_Cancel(t *testing.T) {
	doc := newTestDocument(t, `<body><div id="root"></div></body>`)
	root := byID(t, doc, "root")

	calls := 0
	cancel := doc.Observe(root, func([]dom.MutationRecord) { calls++ })
	assert.Equal(t, 1, doc.ObserverCount())

	doc.SetAttr(root, "hidden", "")
	cancel()
	cancel()
	doc.Loop().Drain()

	assert.Zero(t, calls, "records pending at cancel are dropped")
	assert.Zero(t, doc.ObserverCount())
}

func TestObserve_RemovalIsReported(t *testing.T) {
	doc := newTestDocument(t, `<body><div id="root"><p id="p"></p></div></body>`)
	root, p := byID(t, doc, "root"), byID(t, doc, "p")

	var got []dom.MutationRecord
	doc.Observe(root, func(recs []dom.MutationRecord) { got = append(got, recs...) })
	doc.Remove(p)
	doc.Loop().Drain()

	require.Len(t, got, 1)
	assert.Equal(t, []*html.Node{p}, got[0].Removed)
	assert.Equal(t, "childList", got[0].Kind.String())
}

func TestOldestPending(t *testing.T) {
	doc := newTestDocument(t, `<body><div id="a"></div><div id="b"></div></body>`)
	a, b := byID(t, doc, "a"), byID(t, doc, "b")

	_, ok := doc.OldestPending()
	assert.False(t, ok)

	doc.SetAttr(a, "title", "unobserved")
	_, ok = doc.OldestPending()
	assert.False(t, ok, "writes nobody observes are never pending")

	doc.Observe(a, func([]dom.MutationRecord) {})
	doc.Observe(b, func([]dom.MutationRecord) {})
	doc.SetAttr(b, "title", "1")
	first := doc.MutationSeq()
	doc.SetAttr(a, "title", "2")

	seq, ok := doc.OldestPending()
	require.True(t, ok)
	assert.Equal(t, first, seq, "the oldest record across subscriptions")

	doc.Loop().Drain()
	_, ok = doc.OldestPending()
	assert.False(t, ok)
}
