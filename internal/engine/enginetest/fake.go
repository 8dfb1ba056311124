// Package enginetest provides an in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"sync"

	"github.com/maauso/media-compiler/internal/engine"
)

// RunFunc scripts the behavior of Fake.Run. It may emit log lines and
// write files through the Fake it receives.
type RunFunc func(ctx context.Context, f *Fake, args []string) error

// Fake is an in-memory engine. All methods are safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	files     map[string][]byte
	logFn     engine.LogFunc
	runs      [][]string
	unlinkErr map[string]error

	// OnRun is invoked by Run. When nil, Run succeeds without side effects.
	OnRun RunFunc
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		files:     make(map[string][]byte),
		unlinkErr: make(map[string]error),
	}
}

// Factory returns an engine.Factory that always hands out f.
func (f *Fake) Factory() engine.Factory {
	return func(context.Context) (engine.Engine, error) { return f, nil }
}

// WriteFile implements engine.Engine.
func (f *Fake) WriteFile(_ context.Context, name string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.Put(name, b)
	return nil
}

// ReadFile implements engine.Engine.
func (f *Fake) ReadFile(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, fs.ErrNotExist)
	}
	return append([]byte(nil), b...), nil
}

// Unlink implements engine.Engine.
func (f *Fake) Unlink(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.unlinkErr[name]; ok {
		return err
	}
	if _, ok := f.files[name]; !ok {
		return fmt.Errorf("unlink %s: %w", name, fs.ErrNotExist)
	}
	delete(f.files, name)
	return nil
}

// Run implements engine.Engine.
func (f *Fake) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.runs = append(f.runs, append([]string(nil), args...))
	run := f.OnRun
	f.mu.Unlock()

	if run == nil {
		return nil
	}
	return run(ctx, f, args)
}

// SetLogger implements engine.Engine.
func (f *Fake) SetLogger(fn engine.LogFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logFn = fn
}

// Emit delivers a log line to the current subscription.
func (f *Fake) Emit(typ, message string) {
	f.mu.Lock()
	fn := f.logFn
	f.mu.Unlock()
	if fn != nil {
		fn(engine.LogEntry{Type: typ, Message: message})
	}
}

// Put stores a file directly.
func (f *Fake) Put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append([]byte(nil), data...)
}

// FailUnlink makes Unlink(name) return err.
func (f *Fake) FailUnlink(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlinkErr[name] = err
}

// Files returns the sorted names currently stored.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runs returns a copy of every argument list passed to Run.
func (f *Fake) Runs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.runs))
	for i, r := range f.runs {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Verify interface implementation at compile time.
var _ engine.Engine = (*Fake)(nil)
