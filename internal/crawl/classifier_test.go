package crawl

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		url         string
		finalURL    string
		body        string
		want        ResourceKind
	}{
		{"html content type", "text/html; charset=utf-8", "https://www.bolton.gov.uk/page", "", "", KindHTMLPage},
		{"pdf content type", "application/pdf", "https://www.bolton.gov.uk/doc", "", "", KindPDFDocument},
		{"csv content type", "text/csv", "https://www.bolton.gov.uk/data", "", "", KindCSVFile},
		{"xlsx content type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "https://www.bolton.gov.uk/data", "", "", KindExcelFile},
		{"legacy xls content type", "application/vnd.ms-excel", "https://www.bolton.gov.uk/data", "", "", KindExcelFile},
		{"plain text content type", "text/plain", "https://www.bolton.gov.uk/readme", "", "", KindTextFile},

		// Generic content types fall back to the URL suffix.
		{"octet-stream with csv suffix", "application/octet-stream", "https://www.bolton.gov.uk/spending.csv", "", "", KindCSVFile},
		{"no content type with pdf suffix", "", "https://www.bolton.gov.uk/budget.PDF", "", "", KindPDFDocument},
		{"final url suffix wins", "application/octet-stream", "https://www.bolton.gov.uk/download?id=9", "https://www.bolton.gov.uk/files/budget.xlsx", "", KindExcelFile},
		{"suffix with query string", "", "https://www.bolton.gov.uk/spending.csv?year=2024", "", "", KindCSVFile},

		// Last resort: sniff the body.
		{"html sniff", "application/octet-stream", "https://www.bolton.gov.uk/odd", "", "<!DOCTYPE html><html><body>hi</body></html>", KindHTMLPage},
		{"unknown stays other", "application/zip", "https://www.bolton.gov.uk/archive.zip", "", "PK\x03\x04", KindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(&FetchResult{
				URL:         tc.url,
				FinalURL:    tc.finalURL,
				ContentType: tc.contentType,
				Body:        []byte(tc.body),
			})
			if got != tc.want {
				t.Errorf("Classify = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategoryFor(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		linkText string
		fallback string
		want     string
	}{
		{"transparency path", "https://www.bolton.gov.uk/transparency/spending", "", "", "transparency"},
		{"committee index on moderngov", "https://bolton.moderngov.co.uk/mgListCommittees.aspx", "", "", "committees"},
		{"member index on moderngov", "https://bolton.moderngov.co.uk/mgMemberIndex.aspx", "", "", "councillors"},
		{"opaque moderngov path uses fallback", "https://bolton.moderngov.co.uk/ieListDocuments.aspx?CId=1", "", "meetings", "meetings"},
		{"agenda link text", "https://bolton.moderngov.co.uk/doc.aspx", "Agenda pack", "", "meetings"},
		{"planning application portal", "https://paplanning.bolton.gov.uk/online-applications/", "", "", "planning_applications"},
		{"council tax", "https://www.bolton.gov.uk/council-tax/bands", "", "", "council-tax"},
		{"fallback to referrer", "https://www.bolton.gov.uk/xyzzy", "Read more", "housing", "housing"},
		{"default services", "https://www.bolton.gov.uk/xyzzy", "Read more", "", "services"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CategoryFor(tc.url, tc.linkText, tc.fallback); got != tc.want {
				t.Errorf("CategoryFor(%q, %q, %q) = %q, want %q", tc.url, tc.linkText, tc.fallback, got, tc.want)
			}
		})
	}
}

func TestIsDataFileURL(t *testing.T) {
	yes := []string{
		"https://www.bolton.gov.uk/spending.csv",
		"https://www.bolton.gov.uk/budget.XLSX",
		"https://www.bolton.gov.uk/minutes.pdf?v=2",
	}
	no := []string{
		"https://www.bolton.gov.uk/spending",
		"https://www.bolton.gov.uk/archive.zip",
		"https://www.bolton.gov.uk/page.html",
	}
	for _, u := range yes {
		if !IsDataFileURL(u) {
			t.Errorf("IsDataFileURL(%q) = false, want true", u)
		}
	}
	for _, u := range no {
		if IsDataFileURL(u) {
			t.Errorf("IsDataFileURL(%q) = true, want false", u)
		}
	}
}
