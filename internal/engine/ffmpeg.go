package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// maxStderrLines bounds the diagnostic tail kept for FFmpegError.
const maxStderrLines = 40

// FFmpegEngine implements Engine with the ffmpeg CLI and a private
// working directory standing in for the engine's virtual filesystem.
type FFmpegEngine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	workDir    string

	mu    sync.RWMutex
	logFn LogFunc
}

// NewFFmpegEngine creates a new FFmpegEngine rooted at workDir.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// The directory is created if it doesn't exist.
func NewFFmpegEngine(ffmpegPath, workDir string) (*FFmpegEngine, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "media-compiler", "engine")
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("create engine working directory: %w", err)
	}
	return &FFmpegEngine{ffmpegPath: ffmpegPath, workDir: workDir}, nil
}

// WorkDir returns the engine working directory.
func (e *FFmpegEngine) WorkDir() string {
	return e.workDir
}

// resolve maps a flat file name to a path inside the working directory.
func (e *FFmpegEngine) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.workDir, name), nil
}

// WriteFile stores data under name, replacing any previous content.
func (e *FFmpegEngine) WriteFile(ctx context.Context, name string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	path, err := e.resolve(name)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 - path is confined to workDir
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the content stored under name.
func (e *FFmpegEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is confined to workDir
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Unlink removes name. Removing a missing file reports an error wrapping fs.ErrNotExist.
func (e *FFmpegEngine) Unlink(_ context.Context, name string) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	return nil
}

// SetLogger replaces the log subscription.
func (e *FFmpegEngine) SetLogger(fn LogFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logFn = fn
}

func (e *FFmpegEngine) emit(entry LogEntry) {
	e.mu.RLock()
	fn := e.logFn
	e.mu.RUnlock()
	if fn != nil {
		fn(entry)
	}
}

// Run executes ffmpeg inside the working directory. The CLI is always run
// non-interactively with overwrite enabled. Every stderr line is delivered as
// TypeDiagnostic, every stdout line as TypeOutput.
func (e *FFmpegEngine) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-nostdin", "-y"}, args...)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	cmd.Dir = e.workDir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &FFmpegError{Args: args, Err: err}
	}

	tail := &lineTail{max: maxStderrLines}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.pump(stderr, TypeDiagnostic, tail)
	}()
	go func() {
		defer wg.Done()
		e.pump(stdout, TypeOutput, nil)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: tail.String(),
			Err:    err,
		}
	}
	return nil
}

// pump forwards each line of r to the log subscription.
func (e *FFmpegEngine) pump(r io.Reader, typ string, tail *lineTail) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if tail != nil {
			tail.add(line)
		}
		e.emit(LogEntry{Type: typ, Message: line})
	}
	// Drain whatever is left so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// scanLines splits on '\n' and on the bare '\r' ffmpeg uses for its status line.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// lineTail keeps the last max lines written to it.
type lineTail struct {
	max   int
	lines []string
}

func (t *lineTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}

// FFmpegError represents an error from running ffmpeg, including the tail of its stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Engine = (*FFmpegEngine)(nil)
