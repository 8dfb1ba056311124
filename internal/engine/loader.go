package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// Factory creates an Engine instance.
type Factory func(ctx context.Context) (Engine, error)

// FFmpegFactory returns a Factory that checks the ffmpeg binary is reachable
// and creates an FFmpegEngine rooted at workDir.
func FFmpegFactory(ffmpegPath, workDir string) Factory {
	return func(_ context.Context) (Engine, error) {
		if ffmpegPath == "" {
			ffmpegPath = "ffmpeg"
		}
		resolved, err := exec.LookPath(ffmpegPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return NewFFmpegEngine(resolved, workDir)
	}
}

// Loader lazily creates a single Engine on first use and hands the same
// instance out afterwards. A failed load is not cached; the next Get retries.
type Loader struct {
	factory Factory
	logger  *slog.Logger

	mu     sync.Mutex
	engine Engine
}

// NewLoader creates a Loader around factory.
func NewLoader(factory Factory, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{factory: factory, logger: logger}
}

// Loaded reports whether the engine has already been created.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine != nil
}

// Get returns the engine, creating it on the first call.
func (l *Loader) Get(ctx context.Context) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine != nil {
		return l.engine, nil
	}

	l.logger.Info("loading media engine")
	eng, err := l.factory(ctx)
	if err != nil {
		l.logger.Error("failed to load media engine",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("load engine: %w", err)
	}
	l.engine = eng
	l.logger.Info("media engine loaded")
	return eng, nil
}
