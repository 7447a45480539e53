// Package validation holds input sanitizers and form field validators shared
// by the service layer, the web handlers and the sheets exporter.
package validation

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy = bluemonday.StrictPolicy()

// SanitizeText removes all HTML from s.
func SanitizeText(s string) string {
	// StrictPolicy escapes what it keeps; the templates escape on output.
	return html.UnescapeString(strictHTMLPolicy.Sanitize(s))
}

// StripUnprintable drops non-printable runes, keeping tab, newline and CR.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanText is the free-text pipeline applied to every form field.
func CleanText(s string) string {
	return strings.TrimSpace(StripUnprintable(SanitizeText(s)))
}

// SanitizeForFormulaInjection prefixes a quote when a cell value would be
// read as a formula by a spreadsheet.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	switch trimmed[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
