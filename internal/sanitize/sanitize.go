// Package sanitize neutralizes markup-significant characters in free text
// before it is stored or echoed.
package sanitize

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces & < > " ' with their character references.
func Escape(text string) string {
	return htmlReplacer.Replace(text)
}

// EscapePtr returns an escaped copy of *text. Nil stays nil.
func EscapePtr(text *string) *string {
	if text == nil {
		return nil
	}
	escaped := Escape(*text)
	return &escaped
}
