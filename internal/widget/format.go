package widget

import (
	"html"
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.*?)\*`)
	linkPattern   = regexp.MustCompile(`https?://[^\s<]+`)
)

// FormatHTML renders turn text as an HTML fragment. The text is escaped
// before any markup is added, so remote replies cannot inject tags.
func FormatHTML(text string) string {
	out := html.EscapeString(text)
	out = boldPattern.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicPattern.ReplaceAllString(out, "<em>$1</em>")
	out = linkPattern.ReplaceAllString(out, `<a href="$0" target="_blank" rel="noopener noreferrer">$0</a>`)
	return strings.ReplaceAll(out, "\n", "<br>")
}
