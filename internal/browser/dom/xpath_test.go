// internal/browser/dom/xpath_test.go
package dom_test

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
)

const xpathHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content">
			<p>P1</p><p>P2</p>
			<ul>
				<li>Item 1</li>
				<li>Item 2</li>
				<li id="special">Item 3</li>
			</ul>
		</div>
		<div class="content"><p>P3</p></div>
	</body>
	</html>
	`

func TestXPathOf(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(xpathHTML))
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		expected string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Anchored on id", "//div[@id='header']", `//*[@id='header']`},
		{"Below an id", "//h1", `//*[@id='header']/h1[1]`},
		{"Sibling index", "(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"Second container", "(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"List item", "//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.target)
			require.NotNil(t, target)

			got := dom.XPathOf(target)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, target, htmlquery.FindOne(doc, got), "the path must select the original node")
		})
	}

	assert.Empty(t, dom.XPathOf(nil))
	assert.Equal(t, "/", dom.XPathOf(doc))
}
