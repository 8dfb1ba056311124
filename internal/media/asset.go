// Package media provides the media asset type and still-image normalization.
package media

import (
	"context"
	"path/filepath"
	"strings"
)

// Declared MIME types understood by the compiler.
const (
	MIMEJPEG      = "image/jpeg"
	MIMEPNG       = "image/png"
	MIMEGIF       = "image/gif"
	MIMEQuickTime = "video/quicktime"
	MIMEMP3       = "audio/mp3"
	MIMEMPEG      = "audio/mpeg"
	MIMEWAV       = "audio/wav"
)

// Default normalized frame size.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// extByMIME maps known media types to their file extension.
var extByMIME = map[string]string{
	MIMEJPEG:      "jpg",
	MIMEPNG:       "png",
	MIMEGIF:       "gif",
	MIMEQuickTime: "mov",
	MIMEMP3:       "mp3",
	MIMEMPEG:      "mp3",
	MIMEWAV:       "wav",
}

// Asset is a user-supplied media file held in memory: a motion clip,
// a still image or an audio track.
type Asset struct {
	// Name is the original file name as submitted.
	Name string
	// MIMEType is the declared (or sniffed) media type.
	MIMEType string
	// Data is the binary payload.
	Data []byte
}

// Ext returns the lower-cased extension of the asset without the dot.
// Names without an extension fall back to the MIME type.
func (a Asset) Ext() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Name)), ".")
	if ext != "" {
		return ext
	}
	if e, ok := extByMIME[a.MIMEType]; ok {
		return e
	}
	return "bin"
}

// Size returns the payload size in bytes.
func (a Asset) Size() int {
	return len(a.Data)
}

// Normalizer produces canonical still images for the image sequence.
type Normalizer interface {
	// Normalize returns a new asset of exactly w x h pixels holding the
	// largest centered crop of src matching the w:h aspect ratio.
	// The source asset is never modified.
	Normalize(ctx context.Context, src Asset, w, h int) (Asset, error)
}

// FormatExt returns the extension matching the payload's MIME type,
// falling back to Ext for unknown types. Normalized images are re-encoded
// by MIME type, so their name may not match their content.
func (a Asset) FormatExt() string {
	if e, ok := extByMIME[a.MIMEType]; ok {
		return e
	}
	return a.Ext()
}
