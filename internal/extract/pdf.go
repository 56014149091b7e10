package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	rpdf "rsc.io/pdf"

	"github.com/david/civic-crawler/internal/models"
)

// pdfPage is one page of extracted text, split into visual lines.
type pdfPage struct {
	Number int
	Lines  []string
}

var (
	agendaItemRegex = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.\s]\s*(.*)$`)
	decisionRegex   = regexp.MustCompile(`(?i)\b(RESOLVED|DECIDED|AGREED)\b[:\s\-]*(.*)`)
	actionRegex     = regexp.MustCompile(`(?i)^ACTION[:\s\-]+(.*)`)
	attendeeHeader  = regexp.MustCompile(`(?i)^(present|attendees|in attendance)[:\s]*`)
	poundRegex      = regexp.MustCompile(`£\s?\d{1,3}(,\d{3})*(\.\d+)?`)
	wordPoundRegex  = regexp.MustCompile(`\b(\d{4,})\s+pounds?\b`)

	pdfDateRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+20\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
		regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
	}
)

// ExtractPDF routes a PDF by its title and URL: agendas and minutes get the
// structured meeting parsers, everything else the monetary-mention scan.
func ExtractPDF(data []byte, sourceURL, title string, now time.Time) (*Bundle, error) {
	pages, err := extractPDFPages(data)
	if err != nil {
		return nil, fmt.Errorf("pdf text extraction failed: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf has no extractable text")
	}

	hint := strings.ToLower(sourceURL + " " + title)
	switch {
	case strings.Contains(hint, "minute"):
		return parseMinutesPDF(pages, sourceURL, title), nil
	case strings.Contains(hint, "agenda"):
		return parseAgendaPDF(pages, sourceURL, title, now), nil
	default:
		return parseGeneralPDF(pages, sourceURL, now), nil
	}
}

// extractPDFPages pulls text page by page, grouping fragments that share a
// baseline into lines. The parser panics on some malformed files, so the
// panic is converted to an error.
func extractPDFPages(content []byte) (pages []pdfPage, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			pages = nil
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		fragments := page.Content().Text
		if len(fragments) == 0 {
			continue
		}

		// Fragments on the same Y coordinate belong to one visual line.
		byLine := make(map[int][]rpdf.Text)
		for _, frag := range fragments {
			key := int(frag.Y)
			byLine[key] = append(byLine[key], frag)
		}
		keys := make([]int, 0, len(byLine))
		for k := range byLine {
			keys = append(keys, k)
		}
		// PDF Y grows upward; read top to bottom.
		sort.Sort(sort.Reverse(sort.IntSlice(keys)))

		p := pdfPage{Number: pageIndex}
		for _, k := range keys {
			frags := byLine[k]
			sort.Slice(frags, func(i, j int) bool { return frags[i].X < frags[j].X })
			var sb strings.Builder
			for _, frag := range frags {
				sb.WriteString(frag.S)
			}
			line := strings.TrimSpace(sb.String())
			if line != "" {
				p.Lines = append(p.Lines, line)
			}
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func parseAgendaPDF(pages []pdfPage, sourceURL, title string, now time.Time) *Bundle {
	doc := &models.AgendaDocument{
		MeetingTitle: meetingTitle(pages, title),
		Committee:    committeeName(pages, title),
		SourceURL:    sourceURL,
	}
	if d, ok := firstPDFDate(pages); ok {
		doc.MeetingDate = &d
	}

	bundle := &Bundle{Agenda: doc}
	itemDate := now
	if doc.MeetingDate != nil {
		itemDate = *doc.MeetingDate
	}

	for _, page := range pages {
		for _, line := range page.Lines {
			m := agendaItemRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			itemTitle := strings.TrimSpace(m[2])
			doc.AgendaItems = append(doc.AgendaItems, models.AgendaItem{
				ItemNumber: m[1],
				Title:      itemTitle,
				PageNumber: page.Number,
				Confidence: agendaConfidence(itemTitle),
			})

			// Each agenda item is also a weak statistical signal. Items
			// that quote an amount carry it; the rest count as one item.
			datum := models.StatisticalDatum{
				Category:       "meetings",
				Metric:         itemTitle,
				Date:           itemDate,
				SourceDocument: sourceURL,
				LastUpdated:    now,
			}
			if tok := poundRegex.FindString(itemTitle); tok != "" {
				if amount, err := ParseAmount(tok); err == nil {
					datum.Value = amount
					datum.Unit = "GBP"
					datum.Confidence = models.ConfidenceMedium
				}
			}
			if datum.Unit == "" {
				datum.Value = decimal.NewFromInt(1)
				datum.Unit = "item"
				datum.Confidence = models.ConfidenceLow
			}
			bundle.StatisticalData = append(bundle.StatisticalData, datum)
		}
	}

	return bundle
}

// agendaConfidence grades a numbered heading: a substantial body after the
// number is a solid match, a bare or short title only probably so.
func agendaConfidence(title string) models.Confidence {
	switch {
	case len(title) >= 20:
		return models.ConfidenceHigh
	case title != "":
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func parseMinutesPDF(pages []pdfPage, sourceURL, title string) *Bundle {
	doc := &models.MinutesDocument{
		MeetingTitle: meetingTitle(pages, title),
		Committee:    committeeName(pages, title),
		SourceURL:    sourceURL,
	}
	if d, ok := firstPDFDate(pages); ok {
		doc.MeetingDate = &d
	}

	inAttendees := false
	for _, page := range pages {
		for _, line := range page.Lines {
			if attendeeHeader.MatchString(line) {
				inAttendees = true
				rest := strings.TrimSpace(attendeeHeader.ReplaceAllString(line, ""))
				doc.Attendees = append(doc.Attendees, splitNames(rest)...)
				continue
			}
			if inAttendees {
				// The list ends at the first numbered item or blank-ish
				// separator line.
				if agendaItemRegex.MatchString(line) || looksLikeHeading(line) {
					inAttendees = false
				} else {
					doc.Attendees = append(doc.Attendees, splitNames(line)...)
					continue
				}
			}

			if m := decisionRegex.FindStringSubmatch(line); m != nil {
				text := strings.TrimSpace(m[2])
				if text == "" {
					text = line
				}
				doc.Decisions = append(doc.Decisions, models.MinuteDecision{
					Title:      text,
					PageNumber: page.Number,
					Confidence: decisionConfidence(m[1], text),
				})
			}
			if m := actionRegex.FindStringSubmatch(line); m != nil {
				doc.Actions = append(doc.Actions, strings.TrimSpace(m[1]))
			}
		}
	}

	return &Bundle{Minutes: doc}
}

func decisionConfidence(verb, text string) models.Confidence {
	if strings.EqualFold(verb, "RESOLVED") && len(strings.Fields(text)) >= 3 {
		return models.ConfidenceHigh
	}
	if len(strings.Fields(text)) >= 3 {
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}

// parseGeneralPDF scans for monetary mentions and records each with 80 chars
// of surrounding context as a low-grade statistical datum.
func parseGeneralPDF(pages []pdfPage, sourceURL string, now time.Time) *Bundle {
	bundle := &Bundle{}
	date := now
	if d, ok := firstPDFDate(pages); ok {
		date = d
	}

	record := func(text string, loc []int, amount decimal.Decimal) {
		start := loc[0] - 80
		if start < 0 {
			start = 0
		}
		end := loc[1] + 80
		if end > len(text) {
			end = len(text)
		}
		snippet := strings.Join(strings.Fields(text[start:end]), " ")

		bundle.StatisticalData = append(bundle.StatisticalData, models.StatisticalDatum{
			Category:       "finance",
			Metric:         snippet,
			Value:          amount,
			Unit:           "GBP",
			Date:           date,
			SourceDocument: sourceURL,
			Confidence:     amountConfidence(snippet),
			LastUpdated:    now,
		})
	}

	for _, page := range pages {
		text := strings.Join(page.Lines, " ")
		for _, loc := range poundRegex.FindAllStringIndex(text, -1) {
			if amount, err := ParseAmount(text[loc[0]:loc[1]]); err == nil {
				record(text, loc, amount)
			}
		}
		// Written-out amounts, "250000 pounds".
		for _, loc := range wordPoundRegex.FindAllSubmatchIndex([]byte(text), -1) {
			if amount, err := decimal.NewFromString(text[loc[2]:loc[3]]); err == nil {
				record(text, loc, amount)
			}
		}
	}
	return bundle
}

var amountContextHints = []string{
	"budget", "spend", "cost", "total", "grant", "contract", "fund", "saving",
}

func amountConfidence(snippet string) models.Confidence {
	lower := strings.ToLower(snippet)
	for _, hint := range amountContextHints {
		if strings.Contains(lower, hint) {
			return models.ConfidenceMedium
		}
	}
	return models.ConfidenceLow
}

func firstPDFDate(pages []pdfPage) (time.Time, bool) {
	for _, page := range pages {
		text := strings.Join(page.Lines, " ")
		for _, re := range pdfDateRegexes {
			if m := re.FindString(text); m != "" {
				if t, err := ParseDate(m); err == nil {
					return t, true
				}
			}
		}
		// The meeting date is on the cover page if anywhere.
		break
	}
	return time.Time{}, false
}

// meetingTitle prefers the first substantial line of the first page over the
// filename-derived title.
func meetingTitle(pages []pdfPage, fallback string) string {
	if len(pages) > 0 {
		for _, line := range pages[0].Lines {
			if len(strings.Fields(line)) >= 2 && !agendaItemRegex.MatchString(line) {
				return line
			}
		}
	}
	return fallback
}

var committeeRegex = regexp.MustCompile(`(?i)\b([A-Z][A-Za-z&,\s]+?(?:Committee|Cabinet|Council|Board|Panel|Forum))\b`)

func committeeName(pages []pdfPage, title string) string {
	if len(pages) > 0 {
		for _, line := range pages[0].Lines {
			if m := committeeRegex.FindStringSubmatch(line); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}
	if m := committeeRegex.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// looksLikeHeading reports an all-caps short line, typical of section breaks.
func looksLikeHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > 60 {
		return false
	}
	return trimmed == strings.ToUpper(trimmed) && strings.ContainsAny(trimmed, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		name := strings.TrimSpace(part)
		name = strings.TrimPrefix(name, "and ")
		name = strings.TrimSpace(name)
		if name != "" && len(strings.Fields(name)) <= 6 {
			names = append(names, name)
		}
	}
	return names
}
