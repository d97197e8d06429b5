package engine

import (
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/net/html"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "GoBook/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// CleanCaption turns one caption line into plain text: entities are
// decoded, inline markup such as <font> or <i> is dropped and whitespace
// is collapsed.
func CleanCaption(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return NormalizeSpace(s)
	}
	tokens := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch tokens.Next() {
		case html.ErrorToken:
			return NormalizeSpace(sb.String())
		case html.TextToken:
			sb.Write(tokens.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			sb.WriteByte(' ')
		}
	}
}

// NormalizeSpace collapses every whitespace run to one space and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// TruncateAtWord truncates a string to maxLen runes at a word boundary.
func TruncateAtWord(s string, maxLen int) string {
	return strutil.TruncateAtWord(s, maxLen)
}
