// File: cmd/process.go
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/config"
	"github.com/xkilldash9x/focuswarden/pkg/focus"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// fileReport is the outcome of scanning one document.
type fileReport struct {
	Path        string
	Before      []string
	After       []string
	Diagnostics []diag.Diagnostic
	Rendered    string
}

// processFile loads path into its own document and loop, scans it once and
// lets every deferred task settle.
func processFile(path string, cfg config.EngineConfig, logger *zap.Logger) (*fileReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rep := &fileReport{Path: path}
	engine, err := focus.Load(f, cfg,
		focus.WithLogger(logger.With(zap.String("file", path))),
		focus.WithDiagnosticHandler(func(d diag.Diagnostic) {
			rep.Diagnostics = append(rep.Diagnostics, d)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	rep.Before = describe(engine.ComputeOrder(nil))
	engine.Scan(nil)
	if n := engine.Document().Loop().Drain(); n > 0 {
		logger.Debug("Drained deferred tasks.", zap.String("file", path), zap.Int("tasks", n))
	}
	rep.After = describe(engine.ComputeOrder(nil))
	rep.Rendered = dom.Render(engine.Document().Root())
	return rep, nil
}

func describe(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		entry := dom.XPathOf(n)
		if v, ok := dom.Attr(n, "tabindex"); ok {
			entry += " tabindex=" + strconv.Quote(v)
		}
		out = append(out, entry)
	}
	return out
}
