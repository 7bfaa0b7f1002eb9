// internal/a11y/classify/classify_test.go
package classify

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const classifyHTML = `<html><body>
	<a id="link" href="/x">link</a>
	<a id="anchor" name="top">anchor</a>
	<area id="area" href="#">
	<button id="btn">b</button>
	<button id="btn-disabled" disabled>b</button>
	<input id="text">
	<input id="hidden-input" type="hidden">
	<select id="select"></select>
	<textarea id="ta"></textarea>
	<video id="video" controls></video>
	<video id="video-bare"></video>
	<details><summary id="summary">more</summary><p>x</p></details>
	<div id="role-button" role="button">x</div>
	<div id="role-list" role="list">x</div>
	<div id="editable" contenteditable>x</div>
	<div id="not-editable" contenteditable="false">x</div>
	<span id="trigger" aria-haspopup="menu">x</span>
	<span id="trigger-false" aria-haspopup="false">x</span>
	<div id="stray" tabindex="5">x</div>
	<div id="stray-role" tabindex="0" role="region">x</div>
	<div id="stray-handler" tabindex="0" onkeydown="go()">x</div>
	<div id="stray-listener" tabindex="0">x</div>
	<custom-el id="custom" tabindex="0">x</custom-el>
	<p id="plain">x</p>
	<fieldset disabled>
		<legend><input id="in-legend"></legend>
		<input id="in-fieldset">
	</fieldset>
	<button id="aria-disabled" aria-disabled="true">x</button>
	<div id="hidden-wrap" style="display:none"><a id="hidden-link" href="#">x</a></div>
	<span id="bad-tabindex" tabindex="abc">x</span>
</body></html>`

type listenerStub map[*html.Node]bool

func (l listenerStub) HasListener(n *html.Node, types ...string) bool { return l[n] }

func parseDoc(t *testing.T) *html.Node {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(classifyHTML))
	require.NoError(t, err)
	return doc
}

func find(t *testing.T, doc *html.Node, id string) *html.Node {
	t.Helper()
	n := htmlquery.FindOne(doc, "//*[@id='"+id+"']")
	require.NotNil(t, n, "element #%s not found", id)
	return n
}

func TestClassify(t *testing.T) {
	doc := parseDoc(t)
	listeners := listenerStub{find(t, doc, "stray-listener"): true}
	c := New(nil, nil, listeners)

	tests := []struct {
		id   string
		want Category
	}{
		{"link", NativelyInteractive},
		{"anchor", Irrelevant},
		{"area", NativelyInteractive},
		{"btn", NativelyInteractive},
		{"btn-disabled", Irrelevant},
		{"text", NativelyInteractive},
		{"hidden-input", Irrelevant},
		{"select", NativelyInteractive},
		{"ta", NativelyInteractive},
		{"video", NativelyInteractive},
		{"video-bare", Irrelevant},
		{"summary", NativelyInteractive},
		{"role-button", NativelyInteractive},
		{"role-list", Irrelevant},
		{"editable", NativelyInteractive},
		{"not-editable", Irrelevant},
		{"trigger", NativelyInteractive},
		{"trigger-false", Irrelevant},
		{"stray", StrayTabIndex},
		{"stray-role", Irrelevant},
		{"stray-handler", Irrelevant},
		{"stray-listener", Irrelevant},
		{"custom", Irrelevant},
		{"plain", Irrelevant},
		{"in-fieldset", Irrelevant},
		{"in-legend", NativelyInteractive},
		{"hidden-link", NativelyInteractive},
		{"bad-tabindex", StrayTabIndex},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(find(t, doc, tt.id)))
		})
	}

	assert.Equal(t, Irrelevant, c.Classify(nil))
	assert.Equal(t, Irrelevant, c.Classify(doc))
}

func TestShouldExclude(t *testing.T) {
	doc := parseDoc(t)
	c := New(nil, nil, nil)

	for _, id := range []string{"btn-disabled", "in-fieldset", "aria-disabled", "hidden-link", "hidden-input"} {
		assert.True(t, c.ShouldExclude(find(t, doc, id)), id)
	}
	for _, id := range []string{"link", "btn", "in-legend", "stray"} {
		assert.False(t, c.ShouldExclude(find(t, doc, id)), id)
	}
	assert.True(t, c.ShouldExclude(nil))
}

func TestInspect(t *testing.T) {
	doc := parseDoc(t)
	c := New(nil, nil, nil)

	v := c.Inspect(find(t, doc, "hidden-link"))
	assert.Equal(t, NativelyInteractive, v.Category)
	assert.True(t, v.Hidden)
	assert.True(t, v.Excluded())

	v = c.Inspect(find(t, doc, "stray"))
	assert.Equal(t, StrayTabIndex, v.Category)
	assert.True(t, v.HasTabIndex)
	assert.Equal(t, 5, v.TabIndex)
	assert.False(t, v.Excluded())

	v = c.Inspect(find(t, doc, "bad-tabindex"))
	assert.False(t, v.HasTabIndex)
}

func TestIsFocusable(t *testing.T) {
	doc := parseDoc(t)
	c := New(nil, nil, nil)

	assert.True(t, c.IsFocusable(find(t, doc, "btn")))
	assert.True(t, c.IsFocusable(find(t, doc, "stray")))
	assert.False(t, c.IsFocusable(find(t, doc, "plain")))
	assert.False(t, c.IsFocusable(find(t, doc, "btn-disabled")))
	assert.False(t, c.IsFocusable(find(t, doc, "hidden-link")))
}

func TestPolicyExtend(t *testing.T) {
	doc := parseDoc(t)
	base := DefaultPolicy()
	extended := base.Extend([]string{" List "}, []string{"CUSTOM-EL", ""})

	assert.NotContains(t, base.Roles(), "list", "Extend must not modify the receiver")
	assert.Contains(t, extended.Roles(), "list")
	assert.Contains(t, extended.Containers(), "custom-el")

	c := New(extended, nil, nil)
	assert.Equal(t, NativelyInteractive, c.Classify(find(t, doc, "role-list")))
	assert.Equal(t, StrayTabIndex, c.Classify(find(t, doc, "custom")))
}

func TestTabIndex(t *testing.T) {
	tests := []struct {
		val    string
		want   int
		wantOK bool
	}{
		{"0", 0, true},
		{" -1 ", -1, true},
		{"+3", 3, true},
		{"12", 12, true},
		{"", 0, false},
		{"1.5", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		n := &html.Node{Type: html.ElementNode, Data: "div", Attr: []html.Attribute{{Key: "tabindex", Val: tt.val}}}
		got, ok := TabIndex(n)
		assert.Equal(t, tt.wantOK, ok, tt.val)
		assert.Equal(t, tt.want, got, tt.val)
	}
	_, ok := TabIndex(&html.Node{Type: html.ElementNode, Data: "div"})
	assert.False(t, ok)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "stray_tabindex", StrayTabIndex.String())
	assert.Equal(t, "irrelevant", Irrelevant.String())
}
