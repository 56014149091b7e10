package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/david/civic-crawler/internal/models"
)

var (
	percentRegex  = regexp.MustCompile(`\b\d{1,3}(\.\d+)?\s?%`)
	countRegex    = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})*)\s+(applications|residents|properties|households|complaints|requests|meetings|decisions|homes|businesses|people|staff)\b`)
	durationRegex = regexp.MustCompile(`(?i)\b(\d{1,4})\s+(days|weeks|months|years|hours|minutes)\b`)
)

// statContextHints upgrade confidence when the surrounding sentence reads
// like a reported figure rather than incidental text.
var statContextHints = []string{
	"budget", "allocated", "spent", "total", "number of", "increase",
	"decrease", "average", "per cent", "compared", "previous year", "target",
}

// ExtractText scans a plain-text document for statistics: monetary amounts,
// percentages, and counted nouns. Each match becomes one datum with its
// surrounding context as the metric label.
func ExtractText(data []byte, sourceURL string, now time.Time) (*Bundle, error) {
	text := decodeText(data)
	bundle := &Bundle{}

	add := func(loc []int, value decimal.Decimal, unit string) {
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
			Category:       "statistics",
			Metric:         snippet,
			Value:          value,
			Unit:           unit,
			Date:           now,
			SourceDocument: sourceURL,
			Confidence:     textConfidence(snippet),
			LastUpdated:    now,
		})
	}

	for _, loc := range poundRegex.FindAllStringIndex(text, -1) {
		if amount, err := ParseAmount(text[loc[0]:loc[1]]); err == nil {
			add(loc, amount, "GBP")
		}
	}
	for _, loc := range percentRegex.FindAllStringIndex(text, -1) {
		token := strings.TrimSpace(strings.TrimSuffix(text[loc[0]:loc[1]], "%"))
		if v, err := decimal.NewFromString(token); err == nil {
			add(loc, v, "percent")
		}
	}
	for _, loc := range countRegex.FindAllStringIndex(text, -1) {
		m := countRegex.FindStringSubmatch(text[loc[0]:loc[1]])
		if m == nil {
			continue
		}
		if v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			add(loc, v, strings.ToLower(m[2]))
		}
	}
	for _, loc := range durationRegex.FindAllStringIndex(text, -1) {
		m := durationRegex.FindStringSubmatch(text[loc[0]:loc[1]])
		if m == nil {
			continue
		}
		if v, err := decimal.NewFromString(m[1]); err == nil {
			add(loc, v, strings.ToLower(m[2]))
		}
	}

	return bundle, nil
}

func textConfidence(snippet string) models.Confidence {
	lower := strings.ToLower(snippet)
	hits := 0
	for _, hint := range statContextHints {
		if strings.Contains(lower, hint) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		return models.ConfidenceHigh
	case hits == 1:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
