package story

import (
	"html"
	"regexp"
	"strings"
)

// Inline emphasis markup recognised in scene text. Bold must be replaced
// before italic so that ** pairs are not consumed as two * pairs.
var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
)

// FormatHTML renders scene text to an HTML fragment: **bold** becomes
// <strong>, *italic* becomes <em>, and newlines become <br>. The input is
// HTML-escaped first, so scene text can never inject markup of its own.
func FormatHTML(text string) string {
	out := html.EscapeString(text)
	out = boldRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicRe.ReplaceAllString(out, "<em>$1</em>")
	out = strings.ReplaceAll(out, "\n", "<br>")
	return out
}
