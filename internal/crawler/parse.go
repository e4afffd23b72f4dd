package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/brandlens/footprint/internal/analysis"
)

var textPolicy = bluemonday.StrictPolicy()

// parsedPage is the parse result for one fetched document.
type parsedPage struct {
	page  analysis.Page
	links []string
}

// parsePage extracts the fields the extractor needs (title, meta
// description, h1-h3 headings, body text) plus outgoing links resolved
// against the page URL.
func parsePage(pageURL string, html []byte) (parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return parsedPage{}, fmt.Errorf("parse document: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	page := analysis.Page{
		URL:   pageURL,
		Title: cleanText(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.MetaDescription = cleanText(desc)
	}
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if h := cleanText(sel.Text()); h != "" {
			page.Headings = append(page.Headings, h)
		}
	})
	page.Body = cleanText(doc.Find("body").Text())

	base, err := url.Parse(pageURL)
	if err != nil {
		return parsedPage{}, fmt.Errorf("parse page url: %w", err)
	}
	seen := map[string]struct{}{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link := resolveLink(base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return parsedPage{page: page, links: links}, nil
}

// cleanText strips any markup bleeding through attribute values and
// collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(textPolicy.Sanitize(s)), " ")
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
