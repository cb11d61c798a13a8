// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package normalize holds the input normalization rules shared by the API
// and the pairing domain.
package normalize

import (
	"strings"
	"unicode"
)

// Phone number length bounds after normalization (E.164 allows at most 15 digits).
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 15
)

// Token normalizes a string token for matching:
// - trims Unicode whitespace + invisible edge characters
// - lowercases for case-insensitive comparisons
func Token(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200B' || // Zero Width Space
			r == '\u200C' || // Zero Width Non-Joiner
			r == '\u200D' || // Zero Width Joiner
			r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
	}))
}

// Digits strips every non-ASCII-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidPhoneLength reports whether digits has an acceptable length.
func ValidPhoneLength(digits string) bool {
	return len(digits) >= MinPhoneDigits && len(digits) <= MaxPhoneDigits
}

// WithCountryCode returns digits prefixed with cc unless it already starts with cc.
// An empty cc leaves the number untouched.
func WithCountryCode(digits, cc string) string {
	if cc == "" || strings.HasPrefix(digits, cc) {
		return digits
	}
	return cc + digits
}
