// pkg/focus/engine_test.go
package focus_test

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/a11y/trap"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/config"
	"github.com/xkilldash9x/focuswarden/pkg/focus"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"
)

// managedAttributes are the attributes a scan may write.
var managedAttributes = []string{"tabindex"}

func defaultEngineConfig() config.EngineConfig {
	return config.NewDefaultConfig().Engine()
}

func newEngine(t *testing.T, markup string, cfg config.EngineConfig, opts ...focus.Option) *focus.Engine {
	t.Helper()
	opts = append([]focus.Option{focus.WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := focus.Load(strings.NewReader(markup), cfg, opts...)
	require.NoError(t, err)
	return e
}

func byID(t *testing.T, e *focus.Engine, id string) *html.Node {
	t.Helper()
	n := htmlquery.FindOne(e.Document().Root(), "//*[@id='"+id+"']")
	require.NotNil(t, n, "element #%s not found", id)
	return n
}

func drain(t *testing.T, e *focus.Engine) {
	t.Helper()
	require.Less(t, e.Document().Loop().Drain(), 1000, "the loop did not settle")
}

func tabindex(n *html.Node) string {
	v, ok := dom.Attr(n, "tabindex")
	if !ok {
		return "<none>"
	}
	return v
}

func ids(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		id, _ := dom.Attr(n, "id")
		out = append(out, id)
	}
	return out
}

// snapshot records the managed attributes of every element, keyed by path.
func snapshot(root *html.Node) map[string]map[string]string {
	out := make(map[string]map[string]string)
	dom.Walk(root, func(n *html.Node) bool {
		attrs := make(map[string]string)
		for _, name := range managedAttributes {
			if v, ok := dom.Attr(n, name); ok {
				attrs[name] = v
			}
		}
		out[dom.XPathOf(n)] = attrs
		return true
	})
	return out
}

const appMarkup = `<html><head><style>.gone { display: none }</style></head><body>
<main id="app">
  <a id="l1" href="/a" tabindex="-1">a</a>
  <div id="d5" tabindex="5">five</div>
  <button id="b3" tabindex="3">b</button>
  <span id="custom" role="button">custom</span>
  <input id="in">
  <button id="dis" disabled tabindex="-1">dis</button>
  <div hidden><a id="hid" href="/h" tabindex="2">h</a></div>
  <div aria-hidden="true"><button id="ah">x</button></div>
  <p class="gone"><input id="none"></p>
  <div id="dlg" role="dialog" aria-label="Prefs"><button id="ok">OK</button></div>
</main>
<aside><a id="outside" href="/o" tabindex="-1">o</a></aside>
</body></html>`

func TestScan_LinkAndDiv(t *testing.T) {
	e := newEngine(t, `<body><main><a id="link" href="/x" tabindex="-1">x</a><div id="div" tabindex="5">d</div></main></body>`, defaultEngineConfig())

	e.Scan(nil)

	assert.Equal(t, "0", tabindex(byID(t, e, "link")))
	assert.Equal(t, "0", tabindex(byID(t, e, "div")))
}

func TestScan_Idempotent(t *testing.T) {
	e := newEngine(t, appMarkup, defaultEngineConfig())

	e.Scan(nil)
	drain(t, e)
	first := snapshot(e.Document().Root())
	seq := e.Document().MutationSeq()

	e.Scan(nil)
	drain(t, e)
	if diff := cmp.Diff(first, snapshot(e.Document().Root())); diff != "" {
		t.Errorf("second scan changed the tree (-first +second):\n%s", diff)
	}
	assert.Equal(t, seq, e.Document().MutationSeq(), "a second scan writes nothing")
}

func TestScan_Properties(t *testing.T) {
	e := newEngine(t, appMarkup, defaultEngineConfig())
	root := e.Document().Root()
	c := e.Classifier()

	e.Scan(nil)
	drain(t, e)

	order := make(map[*html.Node]bool)
	for _, n := range e.ComputeOrder(nil) {
		order[n] = true
	}

	dom.Walk(root, func(n *html.Node) bool {
		ti, has := classify.TabIndex(n)
		if has {
			assert.LessOrEqual(t, ti, 0, "positive order left on %s", dom.XPathOf(n))
		}
		if c.IsInteractive(n) && !c.ShouldExclude(n) {
			assert.True(t, has && ti >= 0, "interactive %s is not in the tab order", dom.XPathOf(n))
		}
		if c.Oracle().IsHidden(n) {
			assert.False(t, order[n], "hidden %s is in the tab order", dom.XPathOf(n))
		}
		return true
	})

	assert.Equal(t, []string{"l1", "d5", "b3", "custom", "in", "ok", "outside"}, ids(e.ComputeOrder(nil)))
	assert.Equal(t, "-1", tabindex(byID(t, e, "dis")), "deactivated controls keep their order")
	assert.Equal(t, "0", tabindex(byID(t, e, "hid")), "positive order is collapsed even when hidden")
	assert.Equal(t, "<none>", tabindex(byID(t, e, "ah")))
	assert.Equal(t, byID(t, e, "ok"), e.Document().ActiveElement(), "the dialog was armed")
}

func TestScan_ConfiguredRoot(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.Root = "#app"
	e := newEngine(t, appMarkup, cfg)

	e.Scan(nil)
	assert.Equal(t, "0", tabindex(byID(t, e, "l1")))
	assert.Equal(t, "-1", tabindex(byID(t, e, "outside")), "nodes outside the root are untouched")
	assert.Equal(t, []string{"l1", "d5", "b3", "custom", "in", "ok"}, ids(e.ComputeOrder(nil)))

	e.Scan(byID(t, e, "outside").Parent)
	assert.Equal(t, "0", tabindex(byID(t, e, "outside")), "an explicit root wins over the configured one")
}

func TestScan_UnresolvedRoot(t *testing.T) {
	for _, selector := range []string{"#missing", "div >", "//section[@id='x']"} {
		t.Run(selector, func(t *testing.T) {
			cfg := defaultEngineConfig()
			cfg.Root = selector
			var got []diag.Diagnostic
			e := newEngine(t, appMarkup, cfg, focus.WithDiagnosticHandler(func(d diag.Diagnostic) {
				got = append(got, d)
			}))
			seq := e.Document().MutationSeq()

			e.Scan(nil)
			e.Scan(nil)
			assert.Nil(t, e.ComputeOrder(nil))
			e.Start()

			assert.Equal(t, seq, e.Document().MutationSeq(), "scan is a no-op")
			assert.Zero(t, e.Document().ObserverCount())
			require.Len(t, got, 1, "reported once per selector")
			assert.Equal(t, diag.KindConfigError, got[0].Kind)
			assert.Contains(t, got[0].Message, selector)
		})
	}
}

func TestTrap_WrapScenario(t *testing.T) {
	e := newEngine(t, `<body><div id="r"><button id="a" tabindex="0">A</button><input id="b" tabindex="0"></div></body>`, defaultEngineConfig())
	doc := e.Document()
	a, b := byID(t, e, "a"), byID(t, e, "b")

	h := e.Trap(byID(t, e, "r"))
	drain(t, e)
	require.True(t, h.Armed())
	assert.Equal(t, a, doc.ActiveElement())

	doc.Focus(b)
	doc.DispatchKey(nil, dom.KeyTab, false)
	assert.Equal(t, a, doc.ActiveElement())

	doc.DispatchKey(nil, dom.KeyTab, true)
	assert.Equal(t, b, doc.ActiveElement())
}

func TestTrap_FocusRestoration(t *testing.T) {
	e := newEngine(t, `<body><button id="e">open</button><div id="r"><button id="x">x</button></div></body>`, defaultEngineConfig())
	doc := e.Document()
	opener := byID(t, e, "e")
	doc.Focus(opener)

	h := e.Trap(byID(t, e, "r"), focus.WithReturnFocus(true))
	drain(t, e)
	assert.Equal(t, byID(t, e, "x"), doc.ActiveElement())

	h.Release()
	assert.Equal(t, byID(t, e, "x"), doc.ActiveElement(), "restoration waits one tick")
	drain(t, e)
	assert.Equal(t, opener, doc.ActiveElement())

	h.Release()
	h.RefreshBoundaries()
	drain(t, e)
	assert.Equal(t, opener, doc.ActiveElement())
}

func TestTrap_DefaultsFromConfig(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.ReturnFocusOnRelease = false
	e := newEngine(t, `<body><button id="e">open</button><div id="r"><button id="x">x</button><button id="y">y</button></div></body>`, cfg)
	doc := e.Document()
	doc.Focus(byID(t, e, "e"))

	h := e.Trap(byID(t, e, "r"), focus.WithInitialFocus(byID(t, e, "y")))
	drain(t, e)
	assert.Equal(t, byID(t, e, "y"), doc.ActiveElement())

	h.Release()
	drain(t, e)
	assert.Equal(t, byID(t, e, "y"), doc.ActiveElement(), "focus stays put without return-focus")
}

func TestTrap_EmptyRegion(t *testing.T) {
	var kinds []diag.Kind
	e := newEngine(t, `<body><div id="r"><p>Nothing to press</p></div></body>`, defaultEngineConfig(),
		focus.WithDiagnosticHandler(func(d diag.Diagnostic) { kinds = append(kinds, d.Kind) }))
	region := byID(t, e, "r")

	var h *trap.Handle
	require.NotPanics(t, func() { h = e.Trap(region) })
	drain(t, e)

	assert.True(t, h.Armed())
	assert.Equal(t, "0", tabindex(region))
	assert.Equal(t, region, e.Document().ActiveElement())
	assert.Equal(t, []diag.Kind{diag.KindEmptyTrapRegion}, kinds)
	assert.Equal(t, 1, e.Diagnostics(diag.KindEmptyTrapRegion))
}

func TestTrap_RegionShownInSameTurn(t *testing.T) {
	const markup = `<body><button id="opener">open</button>
	<div id="r" role="dialog" hidden><button id="a">A</button><button id="b">B</button></div></body>`

	for _, observe := range []bool{false, true} {
		name := "manual"
		if observe {
			name = "observed"
		}
		t.Run(name, func(t *testing.T) {
			var kinds []diag.Kind
			e := newEngine(t, markup, defaultEngineConfig(),
				focus.WithDiagnosticHandler(func(d diag.Diagnostic) { kinds = append(kinds, d.Kind) }))
			doc := e.Document()
			region, a, b := byID(t, e, "r"), byID(t, e, "a"), byID(t, e, "b")
			doc.Focus(byID(t, e, "opener"))
			if observe {
				e.Start()
				defer e.Stop()
			}

			h := e.Trap(region)
			doc.RemoveAttr(region, "hidden")
			drain(t, e)

			assert.Equal(t, a, doc.ActiveElement())
			assert.Equal(t, []string{"a", "b"}, ids(h.Members()))
			assert.Equal(t, "<none>", tabindex(region))
			assert.Empty(t, kinds)

			doc.DispatchKey(nil, dom.KeyTab, false)
			assert.Equal(t, b, doc.ActiveElement())
			doc.DispatchKey(nil, dom.KeyTab, false)
			assert.Equal(t, a, doc.ActiveElement())
		})
	}
}

func TestTrap_ReplacedDialogKeepsFocus(t *testing.T) {
	e := newEngine(t, `<body><button id="opener">open</button>
	<div id="r1" role="dialog"><button id="a">A</button></div>
	<div id="r2" role="dialog"><button id="c">C</button></div></body>`, defaultEngineConfig())
	doc := e.Document()
	doc.Focus(byID(t, e, "opener"))

	h1 := e.Trap(byID(t, e, "r1"), focus.WithReturnFocus(true))
	drain(t, e)
	h2 := e.Trap(byID(t, e, "r2"))
	h1.Release()
	drain(t, e)

	assert.True(t, h2.Armed())
	assert.Equal(t, byID(t, e, "c"), doc.ActiveElement(), "the release does not pull focus out of the newer trap")
}

func TestStart_ObservesChanges(t *testing.T) {
	e := newEngine(t, `<body><button id="opener">open</button><main id="app"></main></body>`, defaultEngineConfig())
	doc := e.Document()
	doc.Focus(byID(t, e, "opener"))

	e.Start()
	e.Start()
	assert.Equal(t, 1, doc.ObserverCount())

	require.NoError(t, doc.SetInnerHTML(byID(t, e, "app"),
		`<div id="dlg" role="alertdialog"><a id="more" href="#" tabindex="-1">more</a><button id="ok">OK</button></div>`))
	drain(t, e)

	assert.Equal(t, "0", tabindex(byID(t, e, "more")))
	assert.Equal(t, byID(t, e, "more"), doc.ActiveElement())

	doc.SetAttr(byID(t, e, "dlg"), "hidden", "")
	drain(t, e)
	assert.Equal(t, byID(t, e, "opener"), doc.ActiveElement())

	e.Stop()
	assert.Zero(t, doc.ObserverCount())
}

func TestStart_Disabled(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.AutoObserveMutations = false
	e := newEngine(t, `<body><main id="app"></main></body>`, cfg)

	e.Start()
	assert.Zero(t, e.Document().ObserverCount())
}

func TestOnRequestFinished(t *testing.T) {
	e := newEngine(t, `<body><main id="app"></main></body>`, defaultEngineConfig())
	app := byID(t, e, "app")

	// Content arrives without going through the document, as a response
	// handler writing the tree directly would.
	frag, err := html.ParseFragment(strings.NewReader(`<a id="late" href="#" tabindex="-1">late</a>`), app)
	require.NoError(t, err)
	for _, n := range frag {
		app.AppendChild(n)
	}

	e.OnRequestFinished(app)
	assert.Equal(t, "-1", tabindex(byID(t, e, "late")), "the pass runs on the next tick")
	drain(t, e)
	assert.Equal(t, "0", tabindex(byID(t, e, "late")))

	e.OnTreeChanged(nil)
	drain(t, e)
	assert.Equal(t, "0", tabindex(byID(t, e, "late")))
}

func TestPolicyExtensions(t *testing.T) {
	markup := `<body><div id="tile" role="tile">t</div><x-card id="card" tabindex="1">c</x-card></body>`

	e := newEngine(t, markup, defaultEngineConfig())
	e.Scan(nil)
	assert.Equal(t, "<none>", tabindex(byID(t, e, "tile")))

	cfg := defaultEngineConfig()
	cfg.ExtraInteractiveRoles = []string{"tile"}
	cfg.ExtraGenericContainers = []string{"x-card"}
	cfg.PruneStrayOrder = true
	e = newEngine(t, markup, cfg)
	e.Scan(nil)
	assert.Equal(t, "0", tabindex(byID(t, e, "tile")))
	assert.Equal(t, "<none>", tabindex(byID(t, e, "card")), "a stray custom container is pruned")
	assert.Equal(t, 1, e.Diagnostics(diag.KindStrayTabIndex))
}

func TestAnnounce(t *testing.T) {
	e := newEngine(t, `<body><main></main></body>`, defaultEngineConfig())

	e.Announce("Saved")
	e.Announce("Saved again")
	drain(t, e)

	region, err := dom.Query(e.Document().Root(), "[aria-live=polite]")
	require.NoError(t, err)
	assert.Equal(t, "Saved again", dom.TextContent(region))
}

func TestNew_Errors(t *testing.T) {
	_, err := focus.New(nil, defaultEngineConfig())
	assert.Error(t, err)

	doc, err := dom.ParseString(`<p></p>`, nil, nil)
	require.NoError(t, err)

	cfg := defaultEngineConfig()
	cfg.DialogRoles = []string{" "}
	_, err = focus.New(doc, cfg)
	assert.Error(t, err)

	_, err = focus.NewFromConfig(doc, nil)
	assert.Error(t, err)

	e, err := focus.NewFromConfig(doc, config.NewDefaultConfig())
	require.NoError(t, err)
	assert.Same(t, doc, e.Document())
}
