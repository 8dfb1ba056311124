// Package session holds the working set a video is compiled from: at most one
// motion clip, an ordered image sequence and at most one audio track.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/maauso/media-compiler/internal/media"
)

// Static errors for session operations.
var (
	// ErrNotReady is returned when an export is requested without audio and visuals.
	ErrNotReady = errors.New("a motion clip or images and an audio file are required")
	// ErrExportInProgress is returned when the session is locked by a running export.
	ErrExportInProgress = errors.New("an export is already in progress")
	// ErrInvalidPolicy is returned by ParsePolicy for unknown names.
	ErrInvalidPolicy = errors.New("invalid session policy")
)

// Mode describes which kind of visuals the session holds.
type Mode string

const (
	// ModeEmpty means no visuals are present.
	ModeEmpty Mode = "empty"
	// ModeMotionClip loops a single animated clip under the audio.
	ModeMotionClip Mode = "motion_clip"
	// ModeImageSequence shows each still image for an equal share of the audio.
	ModeImageSequence Mode = "image_sequence"
)

// Policy decides what happens when both kinds of visuals are added.
type Policy string

const (
	// PolicyExclusive keeps a single mode: adding visuals of the other kind
	// discards what the session held before.
	PolicyExclusive Policy = "exclusive"
	// PolicyLenient keeps both kinds; an export prefers the motion clip.
	PolicyLenient Policy = "lenient"
)

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyExclusive, "":
		return PolicyExclusive, nil
	case PolicyLenient:
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Contents is the immutable view of the session handed to an export.
type Contents struct {
	MotionClip *media.Asset
	Images     []media.Asset
	Audio      *media.Asset
}

// Mode returns the export mode. A motion clip takes precedence over images.
func (c Contents) Mode() Mode {
	switch {
	case c.MotionClip != nil:
		return ModeMotionClip
	case len(c.Images) > 0:
		return ModeImageSequence
	default:
		return ModeEmpty
	}
}

// Ready reports whether the contents can be exported.
func (c Contents) Ready() bool {
	return c.Audio != nil && (c.MotionClip != nil || len(c.Images) > 0)
}

// Snapshot is a read-only summary of the session for display.
type Snapshot struct {
	MotionClip    string   `json:"motion_clip,omitempty"`
	Images        []string `json:"images"`
	Audio         string   `json:"audio,omitempty"`
	Mode          Mode     `json:"mode"`
	Exporting     bool     `json:"exporting"`
	ExportEnabled bool     `json:"export_enabled"`
}

// Empty reports whether the snapshot holds no assets.
func (s Snapshot) Empty() bool {
	return s.MotionClip == "" && len(s.Images) == 0 && s.Audio == ""
}

// Session is the mutable working set. It is safe for concurrent use.
type Session struct {
	policy Policy

	mu        sync.RWMutex
	clip      *media.Asset
	images    []media.Asset
	audio     *media.Asset
	exporting bool
}

// New creates an empty Session.
func New(policy Policy) *Session {
	if policy == "" {
		policy = PolicyExclusive
	}
	return &Session{policy: policy}
}

// Policy returns the mixing policy.
func (s *Session) Policy() Policy {
	return s.policy
}

// SetMotionClip stores a as the motion clip, replacing any previous clip.
// Under PolicyExclusive the image sequence is discarded.
// It returns the names of the assets removed from the session.
func (s *Session) SetMotionClip(a media.Asset) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return nil, ErrExportInProgress
	}

	var evicted []string
	if s.clip != nil {
		evicted = append(evicted, s.clip.Name)
	}
	if s.policy == PolicyExclusive {
		for _, img := range s.images {
			evicted = append(evicted, img.Name)
		}
		s.images = nil
	}
	s.clip = &a
	return evicted, nil
}

// AppendImage adds a normalized still image at the end of the sequence.
// Under PolicyExclusive a held motion clip is discarded.
// It returns the names of the assets removed from the session.
func (s *Session) AppendImage(a media.Asset) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return nil, ErrExportInProgress
	}

	var evicted []string
	if s.policy == PolicyExclusive && s.clip != nil {
		evicted = append(evicted, s.clip.Name)
		s.clip = nil
	}
	s.images = append(s.images, a)
	return evicted, nil
}

// SetAudio stores a as the audio track, replacing any previous track.
// It returns the names of the assets removed from the session.
func (s *Session) SetAudio(a media.Asset) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return nil, ErrExportInProgress
	}

	var evicted []string
	if s.audio != nil {
		evicted = append(evicted, s.audio.Name)
	}
	s.audio = &a
	return evicted, nil
}

// Reset empties the session. It fails while an export holds the session.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exporting {
		return ErrExportInProgress
	}
	s.clear()
	return nil
}

func (s *Session) clear() {
	s.clip = nil
	s.images = nil
	s.audio = nil
}

func (s *Session) contents() Contents {
	c := Contents{
		MotionClip: s.clip,
		Audio:      s.audio,
	}
	if len(s.images) > 0 {
		c.Images = append([]media.Asset(nil), s.images...)
	}
	return c
}

// ExportEnabled reports whether an export may start now.
func (s *Session) ExportEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.exporting && s.contents().Ready()
}

// Snapshot returns a summary of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.contents()
	snap := Snapshot{
		Images:        make([]string, 0, len(s.images)),
		Mode:          c.Mode(),
		Exporting:     s.exporting,
		ExportEnabled: !s.exporting && c.Ready(),
	}
	if s.clip != nil {
		snap.MotionClip = s.clip.Name
	}
	for _, img := range s.images {
		snap.Images = append(snap.Images, img.Name)
	}
	if s.audio != nil {
		snap.Audio = s.audio.Name
	}
	return snap
}

// BeginExport locks the session for an export and returns its contents.
// It returns ErrExportInProgress if another export holds the session and
// ErrNotReady if the contents cannot be exported; the session is left untouched in both cases.
func (s *Session) BeginExport() (Contents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exporting {
		return Contents{}, ErrExportInProgress
	}
	c := s.contents()
	if !c.Ready() {
		return Contents{}, ErrNotReady
	}
	s.exporting = true
	return c, nil
}

// EndExport empties the session and releases the export lock.
func (s *Session) EndExport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.exporting = false
}
