// Package storage delivers finished exports. It defines the Storage interface
// (port) and implementations for a local output directory, S3 and MinIO.
package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned when a name has no usable base component.
var ErrInvalidName = errors.New("invalid output name")

// Storage defines where finished exports are delivered.
type Storage interface {
	// Save stores data under name and returns its location: a file path
	// for local storage or an object URL for S3.
	Save(ctx context.Context, name, contentType string, data io.Reader) (location string, err error)
}

// cleanName reduces name to its base component.
func cleanName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" || strings.TrimSpace(base) == "" {
		return "", ErrInvalidName
	}
	return base, nil
}
