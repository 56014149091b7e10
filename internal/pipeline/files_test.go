package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/david/civic-crawler/internal/crawl"
	"github.com/david/civic-crawler/internal/models"
	"github.com/david/civic-crawler/internal/storage"
	"github.com/david/civic-crawler/internal/telemetry"
)

func testPipeline(t *testing.T) (*Pipeline, *storage.MemorySink, *telemetry.Monitor, *telemetry.Citations) {
	t.Helper()
	sink := storage.NewMemorySink()
	monitor := telemetry.NewMonitor(nil, zerolog.Nop())
	citations := telemetry.NewCitations()
	p := New(sink, monitor, citations, t.TempDir(), zerolog.Nop())
	return p, sink, monitor, citations
}

const spendingCSV = `Transaction Date,Supplier,Amount,Department
01/02/2024,Acme Highways Ltd,"£1,234.56",Highways
15/02/2024,Beta Care Services,"£98,000.00",Adult Social Care
`

func TestProcessCSVWritesArtifactFirst(t *testing.T) {
	p, sink, _, citations := testPipeline(t)

	fileURL := "https://www.bolton.gov.uk/downloads/spending.csv"
	parent := "https://www.bolton.gov.uk/transparency"
	item := crawl.FrontierItem{URL: fileURL, Category: "transparency"}
	result := &crawl.FetchResult{
		URL:         fileURL,
		ContentType: "text/csv",
		Body:        []byte(spendingCSV),
	}

	if err := p.Process(context.Background(), item, parent, result); err != nil {
		t.Fatal(err)
	}

	writes := sink.Writes()
	if len(writes) != 3 {
		t.Fatalf("got %d writes, want artifact + 2 records", len(writes))
	}
	if writes[0].Kind != models.KindFileArtifact {
		t.Fatalf("first write is %s, the artifact must precede extracted records", writes[0].Kind)
	}
	for _, w := range writes[1:] {
		if w.Kind != models.KindSpendingRecord {
			t.Errorf("unexpected write kind %s", w.Kind)
		}
	}

	artifact := writes[0].Record.(models.FileArtifact)
	if artifact.FileURL != fileURL || artifact.ParentPageURL != parent {
		t.Errorf("artifact = %+v", artifact)
	}
	if artifact.Summary.TotalItems != 2 {
		t.Errorf("Summary.TotalItems = %d, want 2", artifact.Summary.TotalItems)
	}

	edges := citations.EdgesForFile(fileURL)
	if len(edges) != 1 || edges[0].ParentPageURL != parent {
		t.Errorf("citation edges = %+v, want one edge back to the parent page", edges)
	}
}

func TestProcessUnparseableFileWritesNothing(t *testing.T) {
	p, sink, monitor, _ := testPipeline(t)

	fileURL := "https://www.bolton.gov.uk/downloads/budget.xlsx"
	item := crawl.FrontierItem{URL: fileURL, Category: "transparency"}
	result := &crawl.FetchResult{
		URL:         fileURL,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        []byte("not actually a workbook"),
	}

	if err := p.Process(context.Background(), item, "https://www.bolton.gov.uk/budgets", result); err == nil {
		t.Fatal("expected an error for an unparseable workbook")
	}

	if got := len(sink.Writes()); got != 0 {
		t.Fatalf("failed file produced %d writes, want none", got)
	}

	report := monitor.Report(false)
	if len(report.Errors) != 1 || report.Errors[0].Type != models.ErrorParsing {
		t.Errorf("errors = %+v, want one parsing_error", report.Errors)
	}
}

func TestProcessSkipsNonFiles(t *testing.T) {
	p, sink, _, _ := testPipeline(t)

	result := &crawl.FetchResult{
		URL:         "https://www.bolton.gov.uk/page",
		ContentType: "text/html",
		Body:        []byte("<html><body>a page</body></html>"),
	}
	if err := p.Process(context.Background(), crawl.FrontierItem{URL: result.URL}, "", result); err != nil {
		t.Fatal(err)
	}
	if got := len(sink.Writes()); got != 0 {
		t.Errorf("HTML page produced %d pipeline writes", got)
	}
}

func TestProcessLegacyXLSRouting(t *testing.T) {
	p, sink, monitor, _ := testPipeline(t)

	// A .xls URL goes to the OLE reader, which rejects this body; the point
	// is the route, observable through the parsing error.
	fileURL := "https://www.bolton.gov.uk/downloads/archive.xls"
	result := &crawl.FetchResult{
		URL:         fileURL,
		ContentType: "application/vnd.ms-excel",
		Body:        []byte("zzzz"),
	}
	if err := p.Process(context.Background(), crawl.FrontierItem{URL: fileURL, Category: "transparency"}, "", result); err == nil {
		t.Fatal("expected an error")
	}
	if len(sink.Writes()) != 0 {
		t.Error("failed legacy workbook still produced writes")
	}
	if report := monitor.Report(false); len(report.Errors) != 1 {
		t.Errorf("errors = %+v", report.Errors)
	}
}

func TestTitleFromURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.bolton.gov.uk/downloads/spending-2024.csv", "spending-2024.csv"},
		{"https://www.bolton.gov.uk/", "www.bolton.gov.uk"},
		{"https://www.bolton.gov.uk", "www.bolton.gov.uk"},
	}
	for _, tc := range cases {
		if got := titleFromURL(tc.in); got != tc.want {
			t.Errorf("titleFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
