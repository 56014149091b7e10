package crawl

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// QualityScore is the multi-criterion assessment of a page or document.
type QualityScore struct {
	OverallScore   int
	ContentScore   int
	StructureScore int
	ContactScore   int
	Components     map[string]int
	Tier           string
}

var (
	emailRegex   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ukPhoneRegex = regexp.MustCompile(`(?:\+44\s?\d{3,4}|\(?0\d{3,4}\)?)[\s\-]?\d{3}[\s\-]?\d{3,4}`)

	pageDateRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
		regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+20\d{2}\b`),
	}
)

// ScoreHTML computes the quality score for an HTML page. Pure: equal inputs
// (including now) yield equal outputs; no I/O.
func ScoreHTML(body []byte, pageURL, category string, now time.Time) QualityScore {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return QualityScore{Tier: "poor", Components: map[string]int{}}
	}

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	words := len(strings.Fields(text))

	components := make(map[string]int)

	// Content: word count bucket plus a sensible heading outline.
	content := 0
	switch {
	case words >= 1000:
		content = 30
	case words >= 300:
		content = 20
	case words >= 100:
		content = 10
	}
	if doc.Find("h1").Length() > 0 {
		content += 5
	}
	if doc.Find("h1, h2, h3").Length() > 0 && doc.Find("h4, h5, h6").Length() == 0 {
		content += 5
	}
	components["content"] = content

	// Structure: tables, lists, semantic sectioning.
	structure := 0
	if doc.Find("table").Length() > 0 {
		structure += 10
	}
	if doc.Find("ul, ol").Length() > 0 {
		structure += 5
	}
	if doc.Find("main, article, section, nav").Length() > 0 {
		structure += 10
	}
	components["structure"] = structure

	// Contact: public email and UK phone numbers.
	contact := 0
	if emailRegex.MatchString(text) {
		contact += 7
	}
	if ukPhoneRegex.MatchString(text) {
		contact += 8
	}
	components["contact"] = contact

	// Freshness: a parseable date on page within 2 (or 5) years.
	freshness := 0
	if newest, ok := newestPageDate(text); ok {
		age := now.Sub(newest)
		switch {
		case age <= 2*365*24*time.Hour:
			freshness = 10
		case age <= 5*365*24*time.Hour:
			freshness = 5
		}
	}
	components["freshness"] = freshness

	// Citations: outbound links to the same government domain, links to
	// data files.
	citation := 0
	host := hostOf(pageURL)
	sameDomain := 0
	fileLinks := 0
	agendaCited := false
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.AttrOr("href", "")
		target := href
		if !strings.HasPrefix(href, "http") {
			target = pageURL // relative links stay on the same domain
		}
		if hostOf(target) == host && strings.Contains(host, "gov") {
			sameDomain++
		}
		if IsDataFileURL(href) {
			fileLinks++
			lower := strings.ToLower(href + " " + sel.Text())
			if strings.Contains(lower, "agenda") || strings.Contains(lower, "minutes") {
				agendaCited = true
			}
		}
	})
	if sameDomain >= 3 {
		citation += 5
	}
	if fileLinks >= 1 {
		citation += 5
	}
	components["citation"] = citation

	overall := content + structure + contact + freshness + citation
	if category == "meetings" && agendaCited {
		overall += 5
	}
	if overall > 100 {
		overall = 100
	}

	return QualityScore{
		OverallScore:   overall,
		ContentScore:   content,
		StructureScore: structure,
		ContactScore:   contact,
		Components:     components,
		Tier:           qualityTier(overall),
	}
}

func qualityTier(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

func newestPageDate(text string) (time.Time, bool) {
	var newest time.Time
	found := false
	for _, re := range pageDateRegexes {
		for _, m := range re.FindAllString(text, -1) {
			for _, layout := range []string{"2006-01-02", "2/1/2006", "02/01/2006", "January 2006"} {
				if t, err := time.Parse(layout, m); err == nil {
					if !found || t.After(newest) {
						newest = t
						found = true
					}
					break
				}
			}
		}
	}
	return newest, found
}
