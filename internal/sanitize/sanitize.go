// Package sanitize provides shared name sanitization for project names
// and export file stems.
//
// Project names surface in tool results and log fields; export stems
// become file names on the user's disk. Both keep only characters from
// [A-Za-z0-9._-], replacing everything else with underscores.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxStemLength caps export file stems before the short-id suffix.
	MaxStemLength = 80

	// DefaultName is used when sanitization produces an empty result.
	DefaultName = "untitled"
)

// Name sanitizes a project or workspace name. Characters outside
// [A-Za-z0-9._-] become underscores; case is preserved.
//
// Examples:
//
//	"my-project"   -> "my-project"
//	"My Project!"  -> "My_Project_"
//	""             -> "untitled"
func Name(s string) string {
	if s == "" {
		return DefaultName
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Changed reports whether sanitizing s would alter it.
func Changed(s string) bool {
	return Name(s) != s
}

// FileStem sanitizes a conversation title for use as an export file
// name. Beyond the character rules of Name, runs of underscores are
// collapsed, edges are trimmed, and the result is capped at
// MaxStemLength without splitting a multi-byte rune.
func FileStem(s string) string {
	stem := Name(s)
	for strings.Contains(stem, "__") {
		stem = strings.ReplaceAll(stem, "__", "_")
	}
	stem = strings.Trim(stem, "_.")
	if stem == "" {
		return DefaultName
	}
	if len(stem) > MaxStemLength {
		cut := MaxStemLength
		for cut > 0 && stem[cut-1] >= 0x80 {
			cut--
		}
		stem = stem[:cut]
		stem = strings.Trim(stem, "_.")
		if stem == "" {
			return DefaultName
		}
	}
	return stem
}

// ShortID returns the first 8 hex characters of a SHA-256 over the
// NUL-joined parts. Export files use it to keep names unique across
// sources without exposing raw identifiers.
func ShortID(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}
