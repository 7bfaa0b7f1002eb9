// internal/a11y/diag/diag.go
package diag

import (
	"sync"
	"time"

	"github.com/xkilldash9x/focuswarden/internal/browser/dom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// KindConfigError: a configured selector resolved to nothing or did not parse.
	KindConfigError Kind = iota
	// KindStrayTabIndex: a generic container carries a focus-order attribute.
	KindStrayTabIndex
	// KindEmptyTrapRegion: a trapped region had no tabbable members.
	KindEmptyTrapRegion
	// KindRecovered: a panic was caught at the public boundary.
	KindRecovered
)

func (k Kind) String() string {
	switch k {
	case KindConfigError:
		return "config_error"
	case KindStrayTabIndex:
		return "stray_tabindex"
	case KindEmptyTrapRegion:
		return "empty_trap_region"
	case KindRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

func (k Kind) level() zapcore.Level {
	switch k {
	case KindConfigError, KindRecovered:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// Diagnostic is one reported condition. Node may be nil.
type Diagnostic struct {
	Kind    Kind
	Message string
	Node    *html.Node
	// Path is an XPath naming Node, filled in by the reporter.
	Path string
}

// Handler receives every diagnostic, unthrottled.
type Handler func(Diagnostic)

// Reporter fans diagnostics out to the log and an optional handler. Warning
// kinds are rate limited in the log only. A nil *Reporter discards everything.
type Reporter struct {
	logger  *zap.Logger
	handler Handler

	mu          sync.Mutex
	limiter     *rate.Limiter
	suppressed  int
	counts      map[Kind]int
	seenConfigs map[string]struct{}
}

// NewReporter creates a reporter. Both arguments may be nil.
func NewReporter(logger *zap.Logger, handler Handler) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		logger:      logger.Named("diag"),
		handler:     handler,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 20),
		counts:      make(map[Kind]int),
		seenConfigs: make(map[string]struct{}),
	}
}

// Report records d.
func (r *Reporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	if d.Node != nil && d.Path == "" {
		d.Path = dom.XPathOf(d.Node)
	}

	r.mu.Lock()
	r.counts[d.Kind]++
	logIt := true
	suppressed := 0
	if d.Kind.level() < zapcore.ErrorLevel {
		if r.limiter.Allow() {
			suppressed = r.suppressed
			r.suppressed = 0
		} else {
			r.suppressed++
			logIt = false
		}
	}
	handler := r.handler
	r.mu.Unlock()

	if logIt {
		fields := []zap.Field{zap.Stringer("kind", d.Kind)}
		if d.Path != "" {
			fields = append(fields, zap.String("node", d.Path))
		}
		if suppressed > 0 {
			fields = append(fields, zap.Int("suppressed", suppressed))
		}
		if ce := r.logger.Check(d.Kind.level(), d.Message); ce != nil {
			ce.Write(fields...)
		}
	}
	if handler != nil {
		handler(d)
	}
}

// ConfigError reports a bad selector once per selector string; repeats are
// dropped entirely.
func (r *Reporter) ConfigError(selector string, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if _, seen := r.seenConfigs[selector]; seen {
		r.mu.Unlock()
		return
	}
	r.seenConfigs[selector] = struct{}{}
	r.mu.Unlock()

	msg := "root selector '" + selector + "' is unusable"
	if err != nil {
		msg += ": " + err.Error()
	}
	r.Report(Diagnostic{Kind: KindConfigError, Message: msg})
}

// Count returns how many diagnostics of kind have been reported.
func (r *Reporter) Count(kind Kind) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}
