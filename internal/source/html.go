package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const readableBlockSelector = "p, li, h1, h2, h3, h4, h5, h6, pre, blockquote, td"

// HTMLToText reduces an HTML fragment or document to whitespace-normalized text.
func HTMLToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return documentText(doc.Selection), nil
}

// readableText extracts article text from a full page, preferring <article>.
func readableText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	return documentText(root), nil
}

func documentText(root *goquery.Selection) string {
	root.Find("script, style, noscript, nav, header, footer").Remove()
	root.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})

	var b strings.Builder

	blocks := root.Find(readableBlockSelector)
	if blocks.Length() == 0 {
		return normalizeLines(root.Text())
	}

	blocks.Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are emitted by their outermost ancestor.
		if s.ParentsFiltered(readableBlockSelector).Length() > 0 {
			return
		}

		fragment := normalizeLines(s.Text())
		if fragment == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fragment)
	})

	return b.String()
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}
