// Package id generates export identifiers.
package id

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Prefix starts every export ID.
const Prefix = "export-"

var pattern = regexp.MustCompile(`^export-\d+(-[0-9a-f]{12})?$`)

// Generate creates a new unique export ID.
// Format: export-<timestamp>-<random>
// Example: export-1701432000-a1b2c3d4e5f6
// The random part is the leading 48 bits of a version 4 UUID.
func Generate() string {
	timestamp := time.Now().Unix()
	u, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s%d", Prefix, timestamp)
	}
	return fmt.Sprintf("%s%d-%s", Prefix, timestamp, hex.EncodeToString(u[:6]))
}

// Valid reports whether s has the shape of a generated ID.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
