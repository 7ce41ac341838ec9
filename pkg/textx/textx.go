// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode/utf8"
)

// WindowRadius is how many bytes of surrounding text a context window
// extends on each side of a match offset.
const WindowRadius = 100

// SnippetMaxLen caps the length of a stored context snippet in bytes.
const SnippetMaxLen = 500

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Window returns the byte slice of text centered on offset, clamped to the
// text bounds. Slicing is by byte, so the edges may split a multi-byte rune;
// callers that persist the window must repair it first.
func Window(text string, offset, radius int) string {
	if radius < 0 {
		radius = 0
	}
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		return ""
	}
	return text[start:end]
}

// Snippet flattens a context window into a single line safe for storage:
// newlines become single spaces, surrounding whitespace is trimmed, broken
// rune edges are repaired and the result is capped at max bytes.
func Snippet(window string, max int) string {
	s := strings.ReplaceAll(window, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return s
}

// DecodeUTF8 converts raw object bytes to a string, replacing any invalid
// byte sequences with the Unicode replacement character. Decoding never
// fails; garbage in yields replacement runes out.
func DecodeUTF8(b []byte) string {
	s := string(b)
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}
