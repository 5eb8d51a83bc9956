package text

import (
	"strings"
	"unicode/utf8"
)

// MaxPageChars bounds the text extracted from one HTML page.
const MaxPageChars = 5000

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// CollapseWhitespace trims s and replaces every run of whitespace with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most max characters (runes) of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// StripCDATA removes a literal CDATA wrapper left in feed content.
// The wrapper is assumed to be canonical: exactly len("<![CDATA[") leading and
// len("]]>") trailing characters are dropped, whatever they are.
func StripCDATA(s string) string {
	if !strings.HasPrefix(s, cdataOpen) {
		return s
	}
	if len(s) < len(cdataOpen)+len(cdataClose) {
		return ""
	}
	return s[len(cdataOpen) : len(s)-len(cdataClose)]
}
