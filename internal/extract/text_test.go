package extract

import (
	"testing"

	"github.com/david/civic-crawler/internal/models"
)

func TestExtractText(t *testing.T) {
	input := "The council spent £1,234,567 on roads, an increase of 12.5% compared to the previous year. There were 3,420 applications decided in 45 days."

	bundle, err := ExtractText([]byte(input), "https://www.bolton.gov.uk/report.txt", extractNow)
	if err != nil {
		t.Fatal(err)
	}

	// Amounts first, then percentages, counts, durations.
	if len(bundle.StatisticalData) != 4 {
		for _, d := range bundle.StatisticalData {
			t.Logf("  %s %s", d.Value, d.Unit)
		}
		t.Fatalf("got %d data, want 4", len(bundle.StatisticalData))
	}

	amount := bundle.StatisticalData[0]
	if amount.Value.String() != "1234567" || amount.Unit != "GBP" {
		t.Errorf("amount = %s %s, want 1234567 GBP", amount.Value, amount.Unit)
	}
	// "spent", "increase", "compared" all sit within the context window.
	if amount.Confidence != models.ConfidenceHigh {
		t.Errorf("amount confidence = %v, want high", amount.Confidence)
	}

	pct := bundle.StatisticalData[1]
	if pct.Value.String() != "12.5" || pct.Unit != "percent" {
		t.Errorf("percentage = %s %s, want 12.5 percent", pct.Value, pct.Unit)
	}

	count := bundle.StatisticalData[2]
	if count.Value.String() != "3420" || count.Unit != "applications" {
		t.Errorf("count = %s %s, want 3420 applications", count.Value, count.Unit)
	}

	dur := bundle.StatisticalData[3]
	if dur.Value.String() != "45" || dur.Unit != "days" {
		t.Errorf("duration = %s %s, want 45 days", dur.Value, dur.Unit)
	}
}

func TestExtractTextNoFigures(t *testing.T) {
	bundle, err := ExtractText([]byte("Nothing numeric to see here."), "https://www.bolton.gov.uk/blank.txt", extractNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.StatisticalData) != 0 {
		t.Errorf("got %d data from figure-free text", len(bundle.StatisticalData))
	}
}

func TestTextConfidence(t *testing.T) {
	cases := []struct {
		snippet string
		want    models.Confidence
	}{
		{"total budget allocated for the year", models.ConfidenceHigh},
		{"the budget for next year", models.ConfidenceMedium},
		{"somewhere in a sentence", models.ConfidenceLow},
	}
	for _, tc := range cases {
		if got := textConfidence(tc.snippet); got != tc.want {
			t.Errorf("textConfidence(%q) = %v, want %v", tc.snippet, got, tc.want)
		}
	}
}
