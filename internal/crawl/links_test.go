package crawl

import (
	"strings"
	"testing"
)

const transparencyPage = `<!DOCTYPE html>
<html><body>
<main>
  <h1>Council spending</h1>
  <ul>
    <li><a href="/downloads/file/spending-2024-q3.csv">Spending over £500, Q3 2024</a></li>
    <li><a href="/downloads/file/spending-2024-q3.csv#top">duplicate with fragment</a></li>
    <li><a href="payments-to-suppliers">Payments to suppliers</a></li>
    <li><a href="/transparency/performance">Performance data</a></li>
    <li><a href="/parks">Parks and open spaces</a></li>
  </ul>
  <a href="mailto:foi@bolton.gov.uk">Email us</a>
  <a href="tel:01204333333">Call us</a>
  <a href="javascript:void(0)">Toggle</a>
  <a href="#main">Skip to content</a>
</main>
</body></html>`

func TestExtractLinks(t *testing.T) {
	links, err := ExtractLinks("https://www.bolton.gov.uk/transparency", []byte(transparencyPage), "transparency")
	if err != nil {
		t.Fatal(err)
	}

	if len(links) != 4 {
		for _, l := range links {
			t.Logf("  %s (tier %d)", l.URL, l.Priority)
		}
		t.Fatalf("extracted %d links, want 4", len(links))
	}

	byURL := make(map[string]Link, len(links))
	for _, l := range links {
		if strings.Contains(l.URL, "mailto") || strings.Contains(l.URL, "javascript") {
			t.Errorf("non-http link leaked through: %s", l.URL)
		}
		byURL[l.URL] = l
	}

	csv, ok := byURL["https://www.bolton.gov.uk/downloads/file/spending-2024-q3.csv"]
	if !ok {
		t.Fatal("csv link missing")
	}
	if csv.Priority != PriorityFile {
		t.Errorf("data file link priority = %d, want %d", csv.Priority, PriorityFile)
	}

	// Spending-related anchor text promotes even without a file extension.
	suppliers, ok := byURL["https://www.bolton.gov.uk/payments-to-suppliers"]
	if !ok {
		t.Fatal("relative link not resolved against the page URL")
	}
	if suppliers.Priority != PriorityFile {
		t.Errorf("spending-text link priority = %d, want %d", suppliers.Priority, PriorityFile)
	}

	perf, ok := byURL["https://www.bolton.gov.uk/transparency/performance"]
	if !ok {
		t.Fatal("category link missing")
	}
	if perf.Priority != PriorityCategory {
		t.Errorf("category link priority = %d, want %d", perf.Priority, PriorityCategory)
	}
	if perf.InferredCategory != "transparency" {
		t.Errorf("category link inferred %q, want transparency", perf.InferredCategory)
	}

	parks, ok := byURL["https://www.bolton.gov.uk/parks"]
	if !ok {
		t.Fatal("generic link missing")
	}
	if parks.Priority != PriorityHTML {
		t.Errorf("generic link priority = %d, want %d", parks.Priority, PriorityHTML)
	}
}

func TestExtractLinksOffsiteKept(t *testing.T) {
	body := `<html><body><a href="https://bolton.moderngov.co.uk/mgListCommittees.aspx">Committees</a>
<a href="https://www.example.com/elsewhere">Elsewhere</a></body></html>`
	links, err := ExtractLinks("https://www.bolton.gov.uk/", []byte(body), "services")
	if err != nil {
		t.Fatal(err)
	}
	// Scope filtering belongs to the frontier, not the extractor.
	if len(links) != 2 {
		t.Fatalf("extracted %d links, want 2", len(links))
	}
}
