package device

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// The Device database uses the 3-byte utf8 charset, which cannot store
// characters outside the Basic Multilingual Plane (emoji in particular).
// Text is stored with such characters encoded as [U+XXXX] sentinels and
// decoded back on read.

var codePointPattern = regexp.MustCompile(`\[U\+([0-9A-Fa-f]+)\]`)

// EncodeText replaces every rune above U+FFFF with its [U+XXXX] sentinel.
func EncodeText(text string) string {
	if text == "" {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		if r > 0xFFFF {
			fmt.Fprintf(&b, "[U+%X]", r)
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// DecodeText reverses EncodeText. Sentinels that do not name a valid code
// point are left as-is.
func DecodeText(text string) string {
	if !strings.Contains(text, "[U+") {
		return text
	}

	return codePointPattern.ReplaceAllStringFunc(text, func(match string) string {
		hex := codePointPattern.FindStringSubmatch(match)[1]

		n, err := strconv.ParseInt(hex, 16, 32)
		if err != nil || !utf8.ValidRune(rune(n)) {
			return match
		}

		return string(rune(n))
	})
}

// truncateRunes limits s to at most n runes. The notes column holds 255
// characters; truncation happens after encoding because a single emoji
// expands to roughly ten characters of sentinel.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}
