package engine

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpegScript mimics the parts of ffmpeg the engine relies on:
// it records its arguments, prints diagnostic lines to stderr (including a
// carriage-return status line) and exits with $FAKE_FFMPEG_EXIT.
const fakeFFmpegScript = `#!/bin/sh
echo "$@" > args.txt
printf 'Input #0, mp3, from audio.mp3:\n' >&2
printf '  Duration: 00:00:30.00, start: 0.000000, bitrate: 128 kb/s\n' >&2
printf 'frame=  10 fps=0.0 time=00:00:10.00 bitrate=N/A\r' >&2
printf 'frame=  20 fps=0.0 time=00:00:20.00 bitrate=N/A\r' >&2
echo "stdout line"
exit ${FAKE_FFMPEG_EXIT:-0}
`

// writeFakeFFmpeg installs the fake ffmpeg script and returns its path.
func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine fake is not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(fakeFFmpegScript), 0o755)) // #nosec G306 - test script must be executable
	return path
}

// collector gathers log entries concurrently.
type collector struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *collector) log(e LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *collector) messages(typ string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		if e.Type == typ {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestNewFFmpegEngine(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		e, err := NewFFmpegEngine("", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "ffmpeg", e.ffmpegPath)
	})

	t.Run("custom path", func(t *testing.T) {
		e, err := NewFFmpegEngine("/usr/local/bin/ffmpeg", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/ffmpeg", e.ffmpegPath)
	})

	t.Run("creates working directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "engine")
		e, err := NewFFmpegEngine("", dir)
		require.NoError(t, err)
		assert.Equal(t, dir, e.WorkDir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestFFmpegEngine_Filesystem(t *testing.T) {
	e, err := NewFFmpegEngine("", t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("write read unlink", func(t *testing.T) {
		require.NoError(t, e.WriteFile(ctx, "audio.mp3", strings.NewReader("payload")))

		data, err := e.ReadFile(ctx, "audio.mp3")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))

		require.NoError(t, e.Unlink(ctx, "audio.mp3"))
		_, err = os.Stat(filepath.Join(e.WorkDir(), "audio.mp3"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("write replaces content", func(t *testing.T) {
		require.NoError(t, e.WriteFile(ctx, "image0.jpg", strings.NewReader("first-longer")))
		require.NoError(t, e.WriteFile(ctx, "image0.jpg", strings.NewReader("second")))

		data, err := e.ReadFile(ctx, "image0.jpg")
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("unlink missing file", func(t *testing.T) {
		err := e.Unlink(ctx, "missing.mov")
		require.Error(t, err)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("rejects names with path elements", func(t *testing.T) {
		for _, name := range []string{"", ".", "..", "../escape", "dir/file", `dir\file`} {
			err := e.WriteFile(ctx, name, strings.NewReader("x"))
			assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

			_, err = e.ReadFile(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)

			assert.ErrorIs(t, e.Unlink(ctx, name), ErrInvalidName, "name %q", name)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := e.WriteFile(cctx, "a.txt", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)

		_, err = e.ReadFile(cctx, "a.txt")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFFmpegEngine_Run(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	e, err := NewFFmpegEngine(bin, t.TempDir())
	require.NoError(t, err)

	c := &collector{}
	e.SetLogger(c.log)

	err = e.Run(context.Background(), "-i", "audio.mp3")
	require.NoError(t, err)

	diag := c.messages(TypeDiagnostic)
	assert.Contains(t, diag, "Duration: 00:00:30.00, start: 0.000000, bitrate: 128 kb/s")
	assert.Contains(t, diag, "frame=  10 fps=0.0 time=00:00:10.00 bitrate=N/A")
	assert.Contains(t, diag, "frame=  20 fps=0.0 time=00:00:20.00 bitrate=N/A")
	assert.Equal(t, []string{"stdout line"}, c.messages(TypeOutput))

	// The process runs inside the working directory with non-interactive flags.
	args, err := os.ReadFile(filepath.Join(e.WorkDir(), "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "-nostdin -y -i audio.mp3", strings.TrimSpace(string(args)))
}

func TestFFmpegEngine_RunFailure(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	t.Setenv("FAKE_FFMPEG_EXIT", "1")

	e, err := NewFFmpegEngine(bin, t.TempDir())
	require.NoError(t, err)

	err = e.Run(context.Background(), "-i", "audio.mp3")
	require.Error(t, err)

	var ffErr *FFmpegError
	require.True(t, errors.As(err, &ffErr))
	assert.Equal(t, []string{"-i", "audio.mp3"}, ffErr.Args)
	assert.Contains(t, ffErr.Stderr, "Duration: 00:00:30.00")
	assert.Contains(t, ffErr.Error(), "ffmpeg error")

	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))
}

func TestFFmpegEngine_RunWithoutLogger(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	e, err := NewFFmpegEngine(bin, t.TempDir())
	require.NoError(t, err)

	e.SetLogger(nil)
	assert.NoError(t, e.Run(context.Background(), "-version"))
}

func TestFFmpegEngine_RunMissingBinary(t *testing.T) {
	e, err := NewFFmpegEngine(filepath.Join(t.TempDir(), "no-such-ffmpeg"), t.TempDir())
	require.NoError(t, err)

	err = e.Run(context.Background(), "-version")
	var ffErr *FFmpegError
	assert.True(t, errors.As(err, &ffErr))
}

func TestScanLines(t *testing.T) {
	input := "first\nsecond\rthird\r\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLines)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"first", "second", "third", "", "last"}, got)
}

func TestLineTail(t *testing.T) {
	tail := &lineTail{max: 2}
	tail.add("a")
	tail.add("b")
	tail.add("c")
	assert.Equal(t, "b\nc", tail.String())
}
