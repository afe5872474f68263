package enrichment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanDescription reduces an HTML or plain-text description to plain text
// with paragraphs separated by blank lines and other whitespace collapsed.
func CleanDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.ContainsAny(raw, "<&") {
		return collapseSpaces(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpaces(raw)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var paragraphs []string
	blocks := doc.Find("p, li, h1, h2, h3, h4, h5, h6, blockquote")
	if blocks.Length() == 0 {
		paragraphs = append(paragraphs, doc.Text())
	} else {
		blocks.Each(func(_ int, s *goquery.Selection) {
			if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
				return
			}
			paragraphs = append(paragraphs, s.Text())
		})
	}

	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = collapseSpaces(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
