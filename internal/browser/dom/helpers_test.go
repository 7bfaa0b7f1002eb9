// internal/browser/dom/helpers_test.go
package dom_test

import (
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"
)

func newTestDocument(t *testing.T, markup string) *dom.Document {
	t.Helper()
	logger := zaptest.NewLogger(t)
	doc, err := dom.ParseString(markup, eventloop.New(logger), logger)
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *dom.Document, id string) *html.Node {
	t.Helper()
	n := htmlquery.FindOne(doc.Root(), "//*[@id='"+id+"']")
	require.NotNil(t, n, "element #%s not found", id)
	return n
}
