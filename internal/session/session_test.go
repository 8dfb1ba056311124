package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/media-compiler/internal/media"
)

func clip(name string) media.Asset  { return media.Asset{Name: name, MIMEType: media.MIMEGIF} }
func image(name string) media.Asset { return media.Asset{Name: name, MIMEType: media.MIMEJPEG} }
func audio(name string) media.Asset { return media.Asset{Name: name, MIMEType: media.MIMEMPEG} }

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyExclusive, false},
		{"exclusive", PolicyExclusive, false},
		{" Lenient ", PolicyLenient, false},
		{"strict", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPolicy, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSession_ExportEnabled(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(s *Session)
		expect bool
	}{
		{"empty", func(*Session) {}, false},
		{"audio only", func(s *Session) { _, _ = s.SetAudio(audio("a.mp3")) }, false},
		{"clip only", func(s *Session) { _, _ = s.SetMotionClip(clip("c.gif")) }, false},
		{"images only", func(s *Session) { _, _ = s.AppendImage(image("i.jpg")) }, false},
		{"clip and audio", func(s *Session) {
			_, _ = s.SetMotionClip(clip("c.gif"))
			_, _ = s.SetAudio(audio("a.mp3"))
		}, true},
		{"images and audio", func(s *Session) {
			_, _ = s.AppendImage(image("i.jpg"))
			_, _ = s.SetAudio(audio("a.mp3"))
		}, true},
	}

	for _, policy := range []Policy{PolicyExclusive, PolicyLenient} {
		for _, tt := range tests {
			t.Run(string(policy)+"/"+tt.name, func(t *testing.T) {
				s := New(policy)
				tt.setup(s)
				assert.Equal(t, tt.expect, s.ExportEnabled())
				assert.Equal(t, tt.expect, s.Snapshot().ExportEnabled)
			})
		}
	}
}

func TestSession_LastWinsSlots(t *testing.T) {
	s := New(PolicyExclusive)

	evicted, err := s.SetAudio(audio("first.mp3"))
	require.NoError(t, err)
	assert.Empty(t, evicted)

	evicted, err = s.SetAudio(audio("second.wav"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first.mp3"}, evicted)

	_, err = s.SetMotionClip(clip("one.gif"))
	require.NoError(t, err)
	evicted, err = s.SetMotionClip(clip("two.mov"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one.gif"}, evicted)

	snap := s.Snapshot()
	assert.Equal(t, "second.wav", snap.Audio)
	assert.Equal(t, "two.mov", snap.MotionClip)
	assert.Equal(t, ModeMotionClip, snap.Mode)
}

func TestSession_ImagesKeepArrivalOrder(t *testing.T) {
	s := New(PolicyExclusive)
	for _, name := range []string{"c.jpg", "a.png", "b.jpg"} {
		_, err := s.AppendImage(image(name))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"c.jpg", "a.png", "b.jpg"}, s.Snapshot().Images)
	assert.Equal(t, ModeImageSequence, s.Snapshot().Mode)
}

func TestSession_ExclusivePolicy(t *testing.T) {
	t.Run("clip discards images", func(t *testing.T) {
		s := New(PolicyExclusive)
		_, _ = s.AppendImage(image("a.jpg"))
		_, _ = s.AppendImage(image("b.jpg"))

		evicted, err := s.SetMotionClip(clip("loop.gif"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, evicted)

		snap := s.Snapshot()
		assert.Empty(t, snap.Images)
		assert.Equal(t, "loop.gif", snap.MotionClip)
	})

	t.Run("image discards clip", func(t *testing.T) {
		s := New(PolicyExclusive)
		_, _ = s.SetMotionClip(clip("loop.gif"))

		evicted, err := s.AppendImage(image("a.jpg"))
		require.NoError(t, err)
		assert.Equal(t, []string{"loop.gif"}, evicted)

		snap := s.Snapshot()
		assert.Empty(t, snap.MotionClip)
		assert.Equal(t, []string{"a.jpg"}, snap.Images)
	})
}

func TestSession_LenientPolicy(t *testing.T) {
	s := New(PolicyLenient)
	_, _ = s.AppendImage(image("a.jpg"))
	evicted, err := s.SetMotionClip(clip("loop.gif"))
	require.NoError(t, err)
	assert.Empty(t, evicted)
	_, _ = s.SetAudio(audio("song.mp3"))

	snap := s.Snapshot()
	assert.Equal(t, "loop.gif", snap.MotionClip)
	assert.Equal(t, []string{"a.jpg"}, snap.Images)

	c, err := s.BeginExport()
	require.NoError(t, err)
	assert.Equal(t, ModeMotionClip, c.Mode())
}

func TestSession_BeginExport(t *testing.T) {
	t.Run("not ready leaves session untouched", func(t *testing.T) {
		s := New(PolicyExclusive)
		_, _ = s.AppendImage(image("a.jpg"))

		_, err := s.BeginExport()
		assert.ErrorIs(t, err, ErrNotReady)

		snap := s.Snapshot()
		assert.False(t, snap.Exporting)
		assert.Equal(t, []string{"a.jpg"}, snap.Images)
	})

	t.Run("locks the session", func(t *testing.T) {
		s := New(PolicyExclusive)
		_, _ = s.AppendImage(image("a.jpg"))
		_, _ = s.SetAudio(audio("song.mp3"))

		c, err := s.BeginExport()
		require.NoError(t, err)
		require.NotNil(t, c.Audio)
		assert.Equal(t, "song.mp3", c.Audio.Name)
		assert.Len(t, c.Images, 1)

		assert.False(t, s.ExportEnabled())
		assert.True(t, s.Snapshot().Exporting)

		_, err = s.BeginExport()
		assert.ErrorIs(t, err, ErrExportInProgress)

		_, err = s.AppendImage(image("b.jpg"))
		assert.ErrorIs(t, err, ErrExportInProgress)
		_, err = s.SetAudio(audio("x.mp3"))
		assert.ErrorIs(t, err, ErrExportInProgress)
		_, err = s.SetMotionClip(clip("x.gif"))
		assert.ErrorIs(t, err, ErrExportInProgress)
		assert.ErrorIs(t, s.Reset(), ErrExportInProgress)
	})

	t.Run("contents are isolated from later changes", func(t *testing.T) {
		s := New(PolicyExclusive)
		_, _ = s.AppendImage(image("a.jpg"))
		_, _ = s.SetAudio(audio("song.mp3"))

		c, err := s.BeginExport()
		require.NoError(t, err)
		s.EndExport()

		_, _ = s.AppendImage(image("b.jpg"))
		assert.Len(t, c.Images, 1)
	})
}

func TestSession_EndExportEmptiesSession(t *testing.T) {
	s := New(PolicyLenient)
	_, _ = s.SetMotionClip(clip("loop.gif"))
	_, _ = s.AppendImage(image("a.jpg"))
	_, _ = s.SetAudio(audio("song.mp3"))

	_, err := s.BeginExport()
	require.NoError(t, err)
	s.EndExport()

	snap := s.Snapshot()
	assert.True(t, snap.Empty())
	assert.False(t, snap.Exporting)
	assert.False(t, snap.ExportEnabled)
	assert.Equal(t, ModeEmpty, snap.Mode)
}

func TestSession_Reset(t *testing.T) {
	s := New(PolicyExclusive)
	_, _ = s.AppendImage(image("a.jpg"))
	_, _ = s.SetAudio(audio("song.mp3"))

	require.NoError(t, s.Reset())
	assert.True(t, s.Snapshot().Empty())
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := New(PolicyExclusive)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = s.AppendImage(image("a.jpg")) }()
		go func() { defer wg.Done(); _, _ = s.SetAudio(audio("b.mp3")) }()
		go func() { defer wg.Done(); _ = s.Snapshot() }()
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Images, 20)
}

func TestContents_Mode(t *testing.T) {
	c := clip("c.gif")
	assert.Equal(t, ModeEmpty, Contents{}.Mode())
	assert.Equal(t, ModeImageSequence, Contents{Images: []media.Asset{image("a.jpg")}}.Mode())
	assert.Equal(t, ModeMotionClip, Contents{MotionClip: &c, Images: []media.Asset{image("a.jpg")}}.Mode())
}
