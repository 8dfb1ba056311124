// Package intake validates user-supplied files and routes them into the session.
package intake

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/media-compiler/internal/media"
)

// Kind is the classification of a submitted file.
type Kind string

const (
	KindMotionClip Kind = "motion_clip"
	KindStillImage Kind = "still_image"
	KindAudio      Kind = "audio"
	KindRejected   Kind = "rejected"
)

// Classify maps a declared MIME type to a Kind. Parameters and case are ignored.
func Classify(mimeType string) Kind {
	switch baseType(mimeType) {
	case media.MIMEGIF, media.MIMEQuickTime:
		return KindMotionClip
	case media.MIMEJPEG, media.MIMEPNG:
		return KindStillImage
	case media.MIMEMP3, media.MIMEMPEG, media.MIMEWAV:
		return KindAudio
	default:
		return KindRejected
	}
}

// baseType lower-cases t and strips any parameters.
func baseType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// DetectType returns the MIME type to classify a file by. A declared type is
// trusted; missing or generic declarations fall back to content sniffing.
func DetectType(declared string, data []byte) string {
	t := baseType(declared)
	if t != "" && t != "application/octet-stream" {
		return t
	}
	return baseType(mimetype.Detect(data).String())
}

// Channel is the entry point a batch arrives through.
type Channel string

const (
	// ChannelVisual accepts motion clips and still images.
	ChannelVisual Channel = "visual"
	// ChannelAudio accepts audio; only the first file of a batch is considered.
	ChannelAudio Channel = "audio"
	// ChannelAny accepts every supported kind.
	ChannelAny Channel = "any"
)

// ErrInvalidChannel is returned by ParseChannel for unknown names.
var ErrInvalidChannel = errors.New("invalid intake channel")

// ParseChannel converts a request value to a Channel. Empty means ChannelAny.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ChannelAny, nil
	case ChannelVisual, ChannelAudio, ChannelAny:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
}

// Accepts reports whether files of kind k may enter through c.
func (c Channel) Accepts(k Kind) bool {
	switch c {
	case ChannelVisual:
		return k == KindMotionClip || k == KindStillImage
	case ChannelAudio:
		return k == KindAudio
	case ChannelAny:
		return k != KindRejected
	default:
		return false
	}
}

// rejectionMessage is the user-facing warning for a file c does not accept.
func (c Channel) rejectionMessage() string {
	switch c {
	case ChannelVisual:
		return "Please upload valid JPG, PNG, GIF, or MOV files."
	case ChannelAudio:
		return "Please upload a valid MP3 or WAV file."
	default:
		return "Please upload valid JPG, PNG, GIF, MOV, MP3, or WAV files."
	}
}
