// internal/a11y/diag/diag_test.go
package diag

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"
)

func newObserved(t *testing.T, handler Handler) (*Reporter, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewReporter(zap.New(core), handler), logs
}

func TestReport_LogsAndCallsHandler(t *testing.T) {
	var got []Diagnostic
	r, logs := newObserved(t, func(d Diagnostic) { got = append(got, d) })

	doc, err := html.Parse(strings.NewReader(`<div id="card" tabindex="3"></div>`))
	require.NoError(t, err)
	div := doc.FirstChild.LastChild.FirstChild

	r.Report(Diagnostic{Kind: KindStrayTabIndex, Message: "stray tabindex", Node: div})

	require.Len(t, got, 1)
	assert.Equal(t, `//*[@id='card']`, got[0].Path)
	assert.Equal(t, 1, r.Count(KindStrayTabIndex))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "stray_tabindex", entries[0].ContextMap()["kind"])
	assert.Equal(t, `//*[@id='card']`, entries[0].ContextMap()["node"])
}

func TestReport_ThrottlesWarningsButNotHandler(t *testing.T) {
	handled := 0
	r, logs := newObserved(t, func(Diagnostic) { handled++ })

	for i := 0; i < 100; i++ {
		r.Report(Diagnostic{Kind: KindStrayTabIndex, Message: "stray"})
	}
	assert.Equal(t, 100, handled)
	assert.Less(t, logs.Len(), 100)
	assert.GreaterOrEqual(t, logs.Len(), 20)

	// Errors are never throttled.
	before := logs.Len()
	for i := 0; i < 5; i++ {
		r.Report(Diagnostic{Kind: KindRecovered, Message: "panic"})
	}
	assert.Equal(t, before+5, logs.Len())
	assert.Equal(t, 5, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestConfigError_OncePerSelector(t *testing.T) {
	var got []Diagnostic
	r, _ := newObserved(t, func(d Diagnostic) { got = append(got, d) })

	r.ConfigError("#app", errors.New("no match"))
	r.ConfigError("#app", errors.New("no match"))
	r.ConfigError("main", nil)

	require.Len(t, got, 2)
	assert.Equal(t, KindConfigError, got[0].Kind)
	assert.Contains(t, got[0].Message, "#app")
	assert.Contains(t, got[0].Message, "no match")
	assert.Equal(t, 2, r.Count(KindConfigError))
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	assert.NotPanics(t, func() {
		r.Report(Diagnostic{Kind: KindRecovered})
		r.ConfigError("x", nil)
	})
	assert.Zero(t, r.Count(KindRecovered))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "empty_trap_region", KindEmptyTrapRegion.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
