package crawl

import (
	"net/url"
	"path"
	"strings"
)

// Category keyword table: URL path and link text are matched against these
// to tag resources with a civic subject. Host-based rules (moderngov,
// paplanning) live in telemetry.Analyze; here only the path and link text
// count, so member and committee indexes on a meetings host still classify
// by their own path keywords.
var categoryKeywords = map[string][]string{
	"transparency":          {"transparency", "spending", "expenditure", "open-data", "foi", "performance"},
	"meetings":              {"meeting", "agenda", "minutes", "committee", "iedochome", "mgconvert"},
	"planning":              {"planning", "development", "building-control"},
	"planning_applications": {"online-applications", "application", "paplanning"},
	"decisions":             {"decision", "decided", "resolved"},
	"council-tax":           {"council-tax", "counciltax", "band", "valuation"},
	"housing":               {"housing", "tenancy", "homeless", "landlord"},
	"councillors":           {"councillor", "member", "mgmemberindex", "ward"},
	"committees":            {"committee", "mglistcommittees"},
	"services":              {"service", "bins", "waste", "parks", "libraries", "schools"},
}

// categoryOrder makes classification deterministic when keywords overlap.
// councillors and committees sit before meetings so mgMemberIndex and
// mgListCommittees paths win over the shared "committee" keyword.
var categoryOrder = []string{
	"planning_applications", "councillors", "committees", "meetings",
	"transparency", "council-tax", "housing", "decisions", "planning", "services",
}

var fileExtKinds = map[string]ResourceKind{
	".pdf":  KindPDFDocument,
	".csv":  KindCSVFile,
	".xlsx": KindExcelFile,
	".xls":  KindExcelFile,
	".txt":  KindTextFile,
}

// FileExtensions lists the data-file suffixes in priority-promotion order.
var FileExtensions = []string{".pdf", ".csv", ".xlsx", ".xls", ".txt"}

// Classify decides the resource kind: content-type header first, then URL
// suffix, then an HTML sniff. Unknown kinds are dropped by the caller.
func Classify(result *FetchResult) ResourceKind {
	ct := strings.ToLower(result.ContentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "text/html", "application/xhtml+xml":
		return KindHTMLPage
	case "application/pdf":
		return KindPDFDocument
	case "text/csv", "application/csv":
		return KindCSVFile
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return KindExcelFile
	case "text/plain":
		return KindTextFile
	}

	if kind, ok := fileExtKinds[urlExt(result.FinalURL)]; ok {
		return kind
	}
	if kind, ok := fileExtKinds[urlExt(result.URL)]; ok {
		return kind
	}

	body := result.Body
	if len(body) > 1024 {
		body = body[:1024]
	}
	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype html") || strings.Contains(lower, "<meta") {
		return KindHTMLPage
	}

	return KindOther
}

// CategoryFor tags a URL (and the link text it was discovered under) with a
// category from the keyword table. Only the URL path and query are matched;
// the host never is. Falls back to the referring category, then "services".
func CategoryFor(rawURL, linkText, fallback string) string {
	pathPart := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		pathPart = u.Path + "?" + u.RawQuery
	}
	haystack := strings.ToLower(pathPart + " " + linkText)
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(haystack, kw) {
				return cat
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "services"
}

// IsDataFileURL reports whether the URL ends in a known data-file extension.
func IsDataFileURL(rawURL string) bool {
	_, ok := fileExtKinds[urlExt(rawURL)]
	return ok
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
