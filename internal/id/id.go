// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// UUID generates a UUID v4 (random).
func UUID() string {
	return uuid.NewString()
}

// Short generates a short random hex ID (16 characters).
// Suitable for user-facing IDs where brevity matters.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Mock generates a prefixed mock rule ID (mock_xxx).
func Mock() string {
	return "mock_" + Short()
}

// Scenario generates a prefixed scenario ID (scn_xxx).
func Scenario() string {
	return "scn_" + Short()
}

// IsValid reports whether s looks like an ID produced by this package:
// either a UUID or a prefixed/bare short hex ID.
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) != 16 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
