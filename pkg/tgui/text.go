package tgui

import "unicode/utf8"

// Telegram hard limits (runes).
const (
	MaxMessageRunes = 4096
	MaxCaptionRunes = 1024
)

// TruncRunes returns s truncated to at most n runes.
// The ellipsis "…" appended on truncation counts toward the limit.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	// Single pass: remember the byte index after the first n-1 runes; if an
	// (n+1)-th rune exists, cut there and spend the last slot on "…".
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n-1 {
			cut = i + utf8.RuneLen(r)
		}
		if count > n {
			return s[:cut] + "…"
		}
	}
	return s
}
