package progress

import (
	"sync"

	"github.com/maauso/media-compiler/internal/engine"
)

// Event is a progress update as shown to the user.
type Event struct {
	// Visible is false when the progress display should be hidden.
	Visible bool `json:"visible"`
	// Percent is the completion estimate in [0, 100].
	Percent float64 `json:"percent"`
	// Elapsed is the processed media time in seconds.
	Elapsed float64 `json:"elapsed"`
	// Total is the expected media duration in seconds.
	Total float64 `json:"total"`
}

// Reporter receives progress events.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// Tracker follows one engine invocation and reports completion estimates.
type Tracker struct {
	parser    Parser
	reporter  Reporter
	monotonic bool
	total     float64

	mu      sync.Mutex
	elapsed float64
	percent float64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithParser replaces the log parser. Defaults to FFmpegParser.
func WithParser(p Parser) Option {
	return func(t *Tracker) {
		if p != nil {
			t.parser = p
		}
	}
}

// WithReporter sets where events are published.
func WithReporter(r Reporter) Option {
	return func(t *Tracker) {
		if r != nil {
			t.reporter = r
		}
	}
}

// WithMonotonic controls whether the reported percentage is clamped to the
// running maximum. Enabled by default.
func WithMonotonic(enabled bool) Option {
	return func(t *Tracker) {
		t.monotonic = enabled
	}
}

// NewTracker creates a Tracker for an invocation producing total seconds of media.
func NewTracker(total float64, opts ...Option) *Tracker {
	t := &Tracker{
		parser:    FFmpegParser{},
		reporter:  nopReporter{},
		monotonic: true,
		total:     total,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start publishes a visible 0% event.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.elapsed, t.percent = 0, 0
	t.mu.Unlock()
	t.reporter.Report(Event{Visible: true, Total: t.total})
}

// Finish publishes a visible 100% event.
func (t *Tracker) Finish() {
	t.mu.Lock()
	t.percent = 100
	elapsed := t.elapsed
	t.mu.Unlock()
	t.reporter.Report(Event{Visible: true, Percent: 100, Elapsed: elapsed, Total: t.total})
}

// Observe consumes an engine log entry. Only diagnostic lines are considered.
// It matches engine.LogFunc.
func (t *Tracker) Observe(entry engine.LogEntry) {
	if entry.Type != engine.TypeDiagnostic {
		return
	}
	t.ObserveLine(entry.Message)
}

// ObserveLine consumes a single diagnostic line and reports an event when
// the line carries an elapsed timestamp.
func (t *Tracker) ObserveLine(line string) (Event, bool) {
	elapsed, ok := t.parser.ParseTime(line)
	if !ok {
		return Event{}, false
	}

	t.mu.Lock()
	p := Percent(elapsed, t.total)
	if t.monotonic && p < t.percent {
		p = t.percent
	}
	if !t.monotonic || elapsed > t.elapsed {
		t.elapsed = elapsed
	}
	t.percent = p
	ev := Event{Visible: true, Percent: p, Elapsed: elapsed, Total: t.total}
	t.mu.Unlock()

	t.reporter.Report(ev)
	return ev, true
}

// Percent returns the last reported percentage.
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// Elapsed returns the processed media time in seconds.
func (t *Tracker) Elapsed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Collector buffers diagnostic lines, used for the metadata probe.
type Collector struct {
	mu    sync.Mutex
	lines []string
}

// Observe records diagnostic lines. It matches engine.LogFunc.
func (c *Collector) Observe(entry engine.LogEntry) {
	if entry.Type != engine.TypeDiagnostic {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, entry.Message)
}

// Lines returns a copy of the buffered lines.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}
