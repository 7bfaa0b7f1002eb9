// pkg/focus/engine.go

// Package focus keeps keyboard focus state sane in an HTML document: it
// repairs tab order, traps focus in open dialogs, and re-runs both as the
// tree changes.
package focus

import (
	"errors"
	"fmt"
	"io"

	"github.com/xkilldash9x/focuswarden/internal/a11y/announce"
	"github.com/xkilldash9x/focuswarden/internal/a11y/classify"
	"github.com/xkilldash9x/focuswarden/internal/a11y/diag"
	"github.com/xkilldash9x/focuswarden/internal/a11y/reconcile"
	"github.com/xkilldash9x/focuswarden/internal/a11y/taborder"
	"github.com/xkilldash9x/focuswarden/internal/a11y/trap"
	"github.com/xkilldash9x/focuswarden/internal/a11y/visibility"
	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"github.com/xkilldash9x/focuswarden/internal/browser/style"
	"github.com/xkilldash9x/focuswarden/internal/config"
	"github.com/xkilldash9x/focuswarden/internal/eventloop"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Option configures an Engine.
type Option func(*settings)

type settings struct {
	logger  *zap.Logger
	handler diag.Handler
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithDiagnosticHandler receives every diagnostic, including the ones the
// log throttles.
func WithDiagnosticHandler(h diag.Handler) Option {
	return func(s *settings) { s.handler = h }
}

// TrapOption configures a single Trap call.
type TrapOption func(*trap.Options)

// WithInitialFocus focuses n instead of the first boundary member, provided
// n is inside the region.
func WithInitialFocus(n *html.Node) TrapOption {
	return func(o *trap.Options) { o.InitialFocus = n }
}

// WithReturnFocus overrides the configured return_focus_on_release.
func WithReturnFocus(enabled bool) TrapOption {
	return func(o *trap.Options) { o.ReturnFocusOnRelease = enabled }
}

// Engine is the public face of the focus reconciliation engine for one
// document. Like the document it is not safe for concurrent use; call it
// from the loop goroutine or while the loop is idle.
//
// No method returns an error or panics. Failures are reported as
// diagnostics and the call degrades to a no-op.
type Engine struct {
	doc      *dom.Document
	cfg      config.EngineConfig
	logger   *zap.Logger
	reporter *diag.Reporter

	auditor    *taborder.Auditor
	trapper    *trap.Trapper
	announcer  *announce.Announcer
	driver     *reconcile.Driver
	classifier *classify.Classifier
}

// New wires an engine over doc.
func New(doc *dom.Document, cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	if doc == nil {
		return nil, errors.New("focus: nil document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("focus: %w", err)
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	logger := s.logger.Named("focus")

	oracle := visibility.New(style.NewResolver(), visibility.WithGeneration(doc.MutationSeq))
	policy := classify.DefaultPolicy().Extend(cfg.ExtraInteractiveRoles, cfg.ExtraGenericContainers)
	classifier := classify.New(policy, oracle, doc)
	reporter := diag.NewReporter(logger, s.handler)

	auditor := taborder.NewAuditor(classifier)
	doc.SetSequencer(auditor.ComputeOrder)
	normalizer := taborder.NewNormalizer(classifier, doc, reporter, logger)

	trapCfg := trap.DefaultConfig()
	trapCfg.EscapeRoles = append(trapCfg.EscapeRoles, cfg.DialogRoles...)
	if len(cfg.CloseControlSelectors) > 0 {
		trapCfg.CloseSelectors = cfg.CloseControlSelectors
	}
	trapper := trap.New(doc, classifier, auditor, reporter, logger, trapCfg)
	normalizer.SetProtected(trapper.IsProtected)

	announcer := announce.New(doc, logger)
	driver := reconcile.New(reconcile.Components{
		Document:   doc,
		Oracle:     oracle,
		Normalizer: normalizer,
		Trapper:    trapper,
		Announcer:  announcer,
	}, reconcile.Options{
		Normalize:            normalizeOptions(cfg),
		AutoArmDialogs:       cfg.AutoArmDialogs,
		ReturnFocusOnRelease: cfg.ReturnFocusOnRelease,
		AnnounceDialogs:      cfg.AnnounceDialogs,
		DialogRoles:          cfg.DialogRoles,
	}, logger)

	logger.Debug("Focus engine ready.",
		zap.String("root", cfg.Root),
		zap.Strings("interactive_roles", policy.Roles()),
		zap.Bool("prune_stray_order", cfg.PruneStrayOrder),
	)

	return &Engine{
		doc:        doc,
		cfg:        cfg,
		logger:     logger,
		reporter:   reporter,
		auditor:    auditor,
		trapper:    trapper,
		announcer:  announcer,
		driver:     driver,
		classifier: classifier,
	}, nil
}

// NewFromConfig wires an engine from the application configuration.
func NewFromConfig(doc *dom.Document, cfg config.Interface, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("focus: nil configuration")
	}
	return New(doc, cfg.Engine(), opts...)
}

// Load parses markup into a fresh document with its own loop and wires an
// engine over it.
func Load(r io.Reader, cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	doc, err := dom.Parse(r, eventloop.New(s.logger), s.logger)
	if err != nil {
		return nil, fmt.Errorf("focus: parsing document: %w", err)
	}
	return New(doc, cfg, opts...)
}

func normalizeOptions(cfg config.EngineConfig) taborder.Options {
	return taborder.Options{
		CorrectNegativeOrder:      cfg.CorrectNegativeOrder,
		CollapsePositiveOrder:     cfg.CollapsePositiveOrder,
		EnsureInteractiveCoverage: cfg.EnsureInteractiveCoverage,
		PruneStrayOrder:           cfg.PruneStrayOrder,
	}
}

// Document returns the managed document.
func (e *Engine) Document() *dom.Document { return e.doc }

// Classifier exposes the classifier for diagnostics tooling.
func (e *Engine) Classifier() *classify.Classifier { return e.classifier }

// Diagnostics returns how many diagnostics of kind have been reported.
func (e *Engine) Diagnostics(kind diag.Kind) int { return e.reporter.Count(kind) }

// Scan runs the normalizer and dialog discovery over root once. A nil root
// means the configured root. Scanning twice leaves the tree unchanged.
func (e *Engine) Scan(root *html.Node) {
	defer e.recoverPanic("scan")
	root, ok := e.resolveRoot(root)
	if !ok {
		return
	}
	e.driver.RunPass(root)
}

// ComputeOrder returns the effective focus order under root without
// changing anything.
func (e *Engine) ComputeOrder(root *html.Node) (order []*html.Node) {
	defer e.recoverPanic("compute_order")
	root, ok := e.resolveRoot(root)
	if !ok {
		return nil
	}
	return e.auditor.ComputeOrder(root)
}

// Trap arms a focus trap on region. Return-focus defaults to the configured
// return_focus_on_release.
func (e *Engine) Trap(region *html.Node, opts ...TrapOption) (h *trap.Handle) {
	defer e.recoverPanic("trap")
	o := trap.Options{ReturnFocusOnRelease: e.cfg.ReturnFocusOnRelease}
	for _, opt := range opts {
		opt(&o)
	}
	return e.trapper.Trap(region, o)
}

// OnTreeChanged schedules a batched pass over root. Call it when a change
// happened that no observer saw.
func (e *Engine) OnTreeChanged(root *html.Node) {
	defer e.recoverPanic("on_tree_changed")
	e.driver.OnTreeChanged(root)
}

// OnRequestFinished schedules the same pass as OnTreeChanged after a
// network request updated root.
func (e *Engine) OnRequestFinished(root *html.Node) {
	defer e.recoverPanic("on_request_finished")
	e.driver.OnRequestFinished(root)
}

// Start observes the configured root for changes when auto_observe_mutations
// is set. It does not scan; call Scan for the initial pass.
func (e *Engine) Start() {
	defer e.recoverPanic("start")
	if !e.cfg.AutoObserveMutations {
		e.logger.Debug("Mutation observation disabled; Start is a no-op.")
		return
	}
	root, ok := e.resolveRoot(nil)
	if !ok {
		return
	}
	e.driver.Start(root)
}

// Stop ends observation and drops any queued pass. Armed traps stay armed.
func (e *Engine) Stop() {
	defer e.recoverPanic("stop")
	e.driver.Stop()
}

// Announce speaks msg through the polite live region.
func (e *Engine) Announce(msg string) {
	defer e.recoverPanic("announce")
	e.announcer.Announce(msg)
}

func (e *Engine) resolveRoot(root *html.Node) (*html.Node, bool) {
	if root != nil {
		return root, true
	}
	if e.cfg.Root == "" {
		return e.doc.Root(), true
	}
	n, err := dom.Query(e.doc.Root(), e.cfg.Root)
	if err != nil {
		e.reporter.ConfigError(e.cfg.Root, err)
		return nil, false
	}
	return n, true
}

func (e *Engine) recoverPanic(op string) {
	if r := recover(); r != nil {
		e.reporter.Report(diag.Diagnostic{
			Kind:    diag.KindRecovered,
			Message: fmt.Sprintf("%s: recovered from panic: %v", op, r),
		})
	}
}
