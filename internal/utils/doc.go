// Package utils provides shared helper functions.
package utils

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// EnsureDir ensures a directory exists, creating it if necessary.
func EnsureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// GetDataPath returns the kaapav data directory (~/.kaapav).
func GetDataPath() string {
	home, _ := os.UserHomeDir()
	p, _ := EnsureDir(filepath.Join(home, ".kaapav"))
	return p
}

// TruncateRunes cuts s to at most n characters. Multi-byte characters are
// never split.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Preview flattens s onto one line and truncates it with an ellipsis, for
// log lines and dashboards.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return TruncateRunes(s, n)
	}
	return TruncateRunes(s, n-1) + "…"
}

// MaskPhone hides all but the last four digits of a phone number.
func MaskPhone(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
