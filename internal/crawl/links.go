package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link text matching any of these promotes the target to the file priority
// tier even without a data-file extension.
var spendingKeywords = []string{
	"spending", "expenditure", "payment", "supplier", "procurement",
	"budget", "allocation", "£500", "over 500", "invoice", "salary",
}

// ExtractLinks walks every anchor on an HTML page, resolves it against the
// page URL, and emits at most one link per normalized URL. mailto/tel/
// javascript and intra-page anchors are skipped; allowlist filtering is the
// frontier's job.
func ExtractLinks(pageURL string, body []byte, pageCategory string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
			return
		}

		rel, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(rel)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""

		norm := NormalizeURL(abs.String())
		if seen[norm] {
			return
		}
		seen[norm] = true

		text := strings.Join(strings.Fields(sel.Text()), " ")
		links = append(links, Link{
			URL:              norm,
			LinkText:         text,
			InferredCategory: CategoryFor(norm, text, pageCategory),
			Priority:         linkPriority(norm, text),
		})
	})

	return links, nil
}

// linkPriority promotes data files and spending-related links to tier 0 and
// known-category pages to tier 1; everything else is generic HTML.
func linkPriority(rawURL, linkText string) int {
	if IsDataFileURL(rawURL) {
		return PriorityFile
	}
	textLower := strings.ToLower(linkText)
	for _, kw := range spendingKeywords {
		if strings.Contains(textLower, kw) {
			return PriorityFile
		}
	}
	if CategoryFor(rawURL, linkText, "") != "services" {
		return PriorityCategory
	}
	return PriorityHTML
}
