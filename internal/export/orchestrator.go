package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/maauso/media-compiler/internal/engine"
	"github.com/maauso/media-compiler/internal/media"
	"github.com/maauso/media-compiler/internal/progress"
	"github.com/maauso/media-compiler/internal/session"
	"github.com/maauso/media-compiler/internal/storage"
)

// Static errors for the export pipeline.
var (
	// ErrProcessingFailed is the user-facing error for any failed export.
	// The underlying cause stays reachable through errors.Is / errors.As.
	ErrProcessingFailed = errors.New("processing failed, check logs")
	// ErrEngineInvocation marks a failed encode run.
	ErrEngineInvocation = errors.New("engine invocation failed")
)

// FilesystemCleanupError reports a staged file that could not be removed.
// It is logged and never returned to callers.
type FilesystemCleanupError struct {
	Name string
	Err  error
}

func (e *FilesystemCleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Name, e.Err)
}

func (e *FilesystemCleanupError) Unwrap() error {
	return e.Err
}

// Result is a successful export.
type Result struct {
	// Job is a snapshot of the finished job.
	Job *Job
	// Name is the delivered file name.
	Name string
	// ContentType is always ContentTypeQuickTime.
	ContentType string
	// Data is the encoded video.
	Data []byte
	// Location is where storage kept the file; empty without storage.
	Location string
}

// StateObserver is notified on every state transition.
type StateObserver func(job *Job, from, to State)

// Orchestrator drives exports of a session through the media engine.
// Exports are serialized by the session's export gate.
type Orchestrator struct {
	session   *session.Session
	loader    *engine.Loader
	store     storage.Storage
	history   History
	logger    *slog.Logger
	reporter  progress.Reporter
	parser    progress.Parser
	monotonic bool
	timeout   time.Duration
	observer  StateObserver
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets where progress events are published.
func WithReporter(r progress.Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithParser replaces the engine log parser used for the probe and progress.
func WithParser(p progress.Parser) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithMonotonic controls whether progress may move backwards.
func WithMonotonic(enabled bool) Option {
	return func(o *Orchestrator) {
		o.monotonic = enabled
	}
}

// WithTimeout bounds a whole export. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

// WithHistory records every export attempt.
func WithHistory(h History) Option {
	return func(o *Orchestrator) {
		o.history = h
	}
}

// WithStateObserver registers a callback for state transitions.
func WithStateObserver(fn StateObserver) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// NewOrchestrator creates a new Orchestrator. store may be nil, in which
// case results are only returned to the caller.
func NewOrchestrator(sess *session.Session, loader *engine.Loader, store storage.Storage, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		session:   sess,
		loader:    loader,
		store:     store,
		logger:    logger,
		reporter:  progress.ReporterFunc(func(progress.Event) {}),
		parser:    progress.FFmpegParser{},
		monotonic: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// History returns the configured history, or nil.
func (o *Orchestrator) History() History {
	return o.history
}

// Export runs one export of the current session contents.
//
// It returns session.ErrNotReady or session.ErrExportInProgress without
// touching the session or the engine. Every other failure is wrapped in
// ErrProcessingFailed after cleanup has run. Once the export has started,
// the session is always empty when Export returns.
func (o *Orchestrator) Export(ctx context.Context) (*Result, error) {
	job := NewJob()
	o.advance(job, StateValidating)

	contents, err := o.session.BeginExport()
	if err != nil {
		o.logger.Warn("export rejected",
			slog.String("export_id", job.ID),
			slog.String("reason", err.Error()),
		)
		job.Reject(err)
		o.advance(job, StateIdle)
		o.record(ctx, job)
		return nil, err
	}

	job.Begin(contents.Mode(), contents.Audio.Name, OutputName(contents.Audio.Name))
	o.logger.Info("export started",
		slog.String("export_id", job.ID),
		slog.String("mode", string(job.Mode)),
		slog.String("output", job.Output),
		slog.Int("images", len(contents.Images)),
	)
	o.record(ctx, job)

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	eng, res, runErr := o.run(runCtx, job, contents)
	if runErr != nil {
		job.Fail(runErr)
		o.logFailure(job, runErr)
	}

	o.advance(job, StateCleanup)
	o.cleanup(context.WithoutCancel(ctx), job, eng)
	o.advance(job, StateIdle)
	o.record(ctx, job)

	if runErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, runErr)
	}

	res.Job = job.Clone()
	o.logger.Info("export completed",
		slog.String("export_id", job.ID),
		slog.String("output", res.Name),
		slog.String("location", res.Location),
		slog.Int("bytes", len(res.Data)),
	)
	return res, nil
}

// run executes the steps between validation and cleanup. The returned engine
// is non-nil once loaded so cleanup can unlink staged files.
func (o *Orchestrator) run(ctx context.Context, job *Job, contents session.Contents) (engine.Engine, *Result, error) {
	if !o.loader.Loaded() {
		o.advance(job, StateLoadingEngine)
	}
	eng, err := o.loader.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	o.advance(job, StateStaging)
	audioName, visuals, err := o.stage(ctx, eng, job, contents)
	if err != nil {
		return eng, nil, err
	}

	o.advance(job, StateProbingDuration)
	total, err := o.probe(ctx, eng, audioName)
	if err != nil {
		return eng, nil, err
	}
	job.SetDuration(total)
	o.logger.Info("audio duration probed",
		slog.String("export_id", job.ID),
		slog.Float64("seconds", total),
	)

	o.advance(job, StateEncoding)
	var args []string
	if job.Mode == session.ModeMotionClip {
		args = MotionClipArgs(visuals[0], audioName, total, engineOutput)
	} else {
		args = ImageSequenceArgs(visuals, audioName, total, engineOutput)
	}

	tracker := progress.NewTracker(total,
		progress.WithParser(o.parser),
		progress.WithReporter(o.reporter),
		progress.WithMonotonic(o.monotonic),
	)
	eng.SetLogger(func(e engine.LogEntry) {
		tracker.Observe(e)
		o.logger.Debug("engine", slog.String("type", e.Type), slog.String("message", e.Message))
	})
	tracker.Start()

	err = eng.Run(ctx, args...)
	job.SetProcessed(tracker.Elapsed())
	if err != nil {
		return eng, nil, fmt.Errorf("%w: %w", ErrEngineInvocation, err)
	}

	o.advance(job, StateFinalizing)
	data, err := eng.ReadFile(ctx, engineOutput)
	if err != nil {
		return eng, nil, fmt.Errorf("read output: %w", err)
	}
	tracker.Finish()

	res := &Result{
		Name:        job.Output,
		ContentType: ContentTypeQuickTime,
		Data:        data,
	}
	if o.store != nil {
		location, err := o.store.Save(ctx, job.Output, ContentTypeQuickTime, bytes.NewReader(data))
		if err != nil {
			return eng, nil, fmt.Errorf("store output: %w", err)
		}
		res.Location = location
		job.SetLocation(location)
	}
	return eng, res, nil
}

// stage writes the audio and visuals under deterministic names and returns them.
func (o *Orchestrator) stage(ctx context.Context, eng engine.Engine, job *Job, contents session.Contents) (string, []string, error) {
	write := func(name string, a media.Asset) error {
		job.AddStaged(name)
		if err := eng.WriteFile(ctx, name, bytes.NewReader(a.Data)); err != nil {
			return fmt.Errorf("stage %s: %w", a.Name, err)
		}
		return nil
	}

	audioName := "audio." + contents.Audio.Ext()
	if err := write(audioName, *contents.Audio); err != nil {
		return "", nil, err
	}

	if job.Mode == session.ModeMotionClip {
		clipName := "input." + contents.MotionClip.Ext()
		if err := write(clipName, *contents.MotionClip); err != nil {
			return "", nil, err
		}
		return audioName, []string{clipName}, nil
	}

	names := make([]string, 0, len(contents.Images))
	for i, img := range contents.Images {
		name := fmt.Sprintf("image%d.%s", i, img.FormatExt())
		if err := write(name, img); err != nil {
			return "", nil, err
		}
		names = append(names, name)
	}
	return audioName, names, nil
}

// probe runs the metadata-only invocation and parses the audio duration.
// The run's own error is expected and ignored unless ctx ended.
func (o *Orchestrator) probe(ctx context.Context, eng engine.Engine, audioName string) (float64, error) {
	collector := &progress.Collector{}
	eng.SetLogger(collector.Observe)
	defer eng.SetLogger(nil)

	if err := eng.Run(ctx, ProbeArgs(audioName)...); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("probe duration: %w", ctx.Err())
		}
		o.logger.Debug("probe run exited with error", slog.String("error", err.Error()))
	}

	return progress.ScanDuration(collector.Lines(), o.parser)
}

// cleanup removes every staged file and the engine output, empties the
// session and hides progress. Unlink failures are logged only.
func (o *Orchestrator) cleanup(ctx context.Context, job *Job, eng engine.Engine) {
	if eng != nil {
		eng.SetLogger(nil)
		for _, name := range append(job.StagedFiles(), engineOutput) {
			err := eng.Unlink(ctx, name)
			switch {
			case err == nil:
			case errors.Is(err, fs.ErrNotExist):
				o.logger.Debug("nothing to clean up", slog.String("name", name))
			default:
				cerr := &FilesystemCleanupError{Name: name, Err: err}
				o.logger.Warn("engine cleanup failed",
					slog.String("export_id", job.ID),
					slog.String("error", cerr.Error()),
				)
			}
		}
	}

	o.session.EndExport()
	o.reporter.Report(progress.Event{})
}

func (o *Orchestrator) logFailure(job *Job, err error) {
	attrs := []any{
		slog.String("export_id", job.ID),
		slog.String("state", string(job.GetState())),
		slog.String("error", err.Error()),
	}
	var ffErr *engine.FFmpegError
	if errors.As(err, &ffErr) && ffErr.Stderr != "" {
		attrs = append(attrs, slog.String("stderr", ffErr.Stderr))
	}
	o.logger.Error("export failed", attrs...)
}

// advance moves job to state, logs the step and notifies the observer.
func (o *Orchestrator) advance(job *Job, to State) {
	from := job.GetState()
	if err := job.TransitionTo(to); err != nil {
		o.logger.Error("export state transition rejected",
			slog.String("export_id", job.ID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		return
	}
	o.logger.Debug("export state",
		slog.String("export_id", job.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	if o.observer != nil {
		o.observer(job, from, to)
	}
}

func (o *Orchestrator) record(ctx context.Context, job *Job) {
	if o.history == nil {
		return
	}
	if err := o.history.Save(context.WithoutCancel(ctx), job); err != nil {
		o.logger.Warn("failed to record export",
			slog.String("export_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
