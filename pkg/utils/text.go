package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup left over from extraction and collapses whitespace.
// Input that does not parse as HTML is returned with whitespace collapsed.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<>") {
		return strings.Join(strings.Fields(content), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}
	doc.Find("script,style,noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
