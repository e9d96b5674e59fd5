package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// BOM is the UTF-8 byte order mark some editors prepend to localization files.
const BOM = "\ufeff"

var taggedRE = regexp.MustCompile(`^<EM\d+>.*</EM\d+>$`)

// SplitKey splits a line at its first '='. ok is false when the line has none.
func SplitKey(line string) (key, value string, ok bool) {
	return strings.Cut(line, "=")
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, BOM)
}

// WrapTag wraps value in <EMn>...</EMn> markers.
func WrapTag(value string, tag int) string {
	n := strconv.Itoa(tag)
	return "<EM" + n + ">" + value + "</EM" + n + ">"
}

// IsTagged reports whether a trimmed value is already wrapped in EM markers.
func IsTagged(value string) bool {
	return taggedRE.MatchString(value)
}

// SplitTerminator separates a line read with its newline into body and terminator.
func SplitTerminator(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

// Truncate shortens a string to at most maxLen bytes, appending "..." if
// truncated. It never cuts a UTF-8 sequence in half.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
