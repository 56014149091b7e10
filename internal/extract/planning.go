package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/david/civic-crawler/internal/models"
)

// Planning portals render one application per page as a details table or
// definition list. Reference formats vary; Bolton uses NN/NNNNN/SS.
var planningRefRegex = regexp.MustCompile(`\b\d{2}/\d{4,6}(/[A-Z]{1,4})?\b`)

// planningFieldLabels maps portal label text to record fields.
var planningFieldLabels = map[string]string{
	"reference":            "reference",
	"application number":   "reference",
	"application ref":      "reference",
	"address":              "address",
	"site address":         "address",
	"location":             "address",
	"proposal":             "proposal",
	"description":          "proposal",
	"status":               "status",
	"decision":             "status",
	"received":             "received",
	"received date":        "received",
	"date received":        "received",
	"validated":            "received",
	"decision date":        "decided",
	"decision issued date": "decided",
	"applicant":            "applicant",
	"applicant name":       "applicant",
	"case officer":         "officer",
	"consultation end":     "consultation",
	"consultation expiry":  "consultation",
	"development type":     "devtype",
	"application type":     "devtype",
	"parish":               "parish",
	"ward":                 "parish",
}

// ExtractPlanningHTML scrapes a planning portal detail page. Pages without a
// recognizable application reference yield a nil application, which is not an
// error; most portal pages are search or navigation chrome.
func ExtractPlanningHTML(body []byte, pageURL, domain string) (*models.PlanningApplication, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)

	collect := func(label, value string) {
		key := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(label), ":")))
		if field, ok := planningFieldLabels[key]; ok {
			value = strings.TrimSpace(value)
			if value != "" && fields[field] == "" {
				fields[field] = value
			}
		}
	}

	// Two-column detail tables.
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() == 2 {
			collect(cells.Eq(0).Text(), cells.Eq(1).Text())
		}
	})
	// Definition lists.
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		values := dl.Find("dd")
		for i := 0; i < terms.Length() && i < values.Length(); i++ {
			collect(terms.Eq(i).Text(), values.Eq(i).Text())
		}
	})

	ref := fields["reference"]
	if ref == "" {
		// Fall back to a reference-shaped token in the page title.
		title := doc.Find("title").Text() + " " + doc.Find("h1").Text()
		ref = planningRefRegex.FindString(title)
	}
	if ref == "" {
		return nil, nil
	}

	app := &models.PlanningApplication{
		Reference:       ref,
		Domain:          domain,
		Address:         fields["address"],
		Proposal:        fields["proposal"],
		Status:          NormalizePlanningStatus(fields["status"]),
		ApplicantName:   fields["applicant"],
		CaseOfficer:     fields["officer"],
		DevelopmentType: fields["devtype"],
		Parish:          fields["parish"],
		SourceURL:       pageURL,
	}

	if v := fields["received"]; v != "" {
		if t, err := ParseDate(v); err == nil {
			app.ReceivedDate = t
		}
	}
	if v := fields["decided"]; v != "" {
		if t, err := ParseDate(v); err == nil {
			app.DecisionDate = &t
		}
	}
	if v := fields["consultation"]; v != "" {
		if t, err := ParseDate(v); err == nil {
			app.ConsultationEndDate = &t
		}
	}

	// Linked documents on the page travel with the application.
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := sel.AttrOr("href", "")
		lower := strings.ToLower(href)
		if strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, "document") {
			app.DocumentURLs = append(app.DocumentURLs, href)
		}
	})

	return app, nil
}
