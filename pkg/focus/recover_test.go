// pkg/focus/recover_test.go
package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestPanicsBecomeDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	doc, err := dom.ParseString(`<body><button>b</button></body>`, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	var got []diag.Diagnostic
	e, err := New(doc, config.NewDefaultConfig().Engine(),
		WithLogger(zap.New(core)),
		WithDiagnosticHandler(func(d diag.Diagnostic) { got = append(got, d) }))
	require.NoError(t, err)

	// A missing collaborator makes every driver-backed call panic.
	e.driver = nil
	assert.NotPanics(t, func() {
		e.Scan(nil)
		e.OnTreeChanged(nil)
		e.Stop()
	})

	require.Len(t, got, 3)
	for _, d := range got {
		assert.Equal(t, diag.KindRecovered, d.Kind)
	}
	assert.Contains(t, got[0].Message, "scan: recovered from panic")
	assert.Equal(t, 3, e.Diagnostics(diag.KindRecovered))
	assert.Equal(t, 3, logs.FilterMessageSnippet("recovered from panic").Len())
}
