package models

import "time"

// ErrorType is the crawl error taxonomy. Values match what the coverage
// report exposes; parsing failures from any extractor share one type.
type ErrorType string

const (
	ErrorNotFound     ErrorType = "404"
	ErrorTimeout      ErrorType = "timeout"
	ErrorParsing      ErrorType = "parsing_error"
	ErrorAccessDenied ErrorType = "access_denied"
	ErrorServer       ErrorType = "server_error"
)

// CrawlError is keyed by domain|type|url; repeat occurrences bump RetryCount
// rather than creating a second record.
type CrawlError struct {
	ID         string    `json:"id"`
	Type       ErrorType `json:"type"`
	URL        string    `json:"url"`
	Message    string    `json:"message"`
	Domain     string    `json:"domain"`
	Category   string    `json:"category,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	Resolved   bool      `json:"resolved"`
}

type DomainStats struct {
	Domain             string        `json:"domain"`
	TotalRequests      int           `json:"total_requests"`
	SuccessfulRequests int           `json:"successful_requests"`
	FailedRequests     int           `json:"failed_requests"`
	SuccessRate        float64       `json:"success_rate"`
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	LastCrawled        time.Time     `json:"last_crawled"`
	CommonErrors       []string      `json:"common_errors,omitempty"`
}

type CoverageMetric struct {
	Domain             string       `json:"domain"`
	Category           string       `json:"category"`
	DataType           string       `json:"data_type"`
	ExpectedCount      int          `json:"expected_count"`
	ActualCount        int          `json:"actual_count"`
	CoveragePercentage float64      `json:"coverage_percentage"`
	LastCrawled        time.Time    `json:"last_crawled"`
	Issues             []CrawlError `json:"issues,omitempty"`
	Recommendations    []string     `json:"recommendations,omitempty"`
}

type Redirect struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CitationEdge records how a file was discovered: the page it was linked
// from and the direct file URL.
type CitationEdge struct {
	FileURL            string    `json:"file_url"`
	ParentPageURL      string    `json:"parent_page_url"`
	SuggestedType      string    `json:"suggested_type"`
	IsDirectFile       bool      `json:"is_direct_file"`
	FileType           string    `json:"file_type,omitempty"`
	Domain             string    `json:"domain"`
	IsGovernmentDomain bool      `json:"is_government_domain"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// CoverageReport is the run-end snapshot of the coverage monitor, written to
// storage as a single record.
type CoverageReport struct {
	RunID           string           `json:"run_id"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
	Partial         bool             `json:"partial"`
	DomainStats     []DomainStats    `json:"domain_stats"`
	Errors          []CrawlError     `json:"errors"`
	Coverage        []CoverageMetric `json:"coverage"`
	Recommendations []string         `json:"recommendations"`
	Redirects       []Redirect       `json:"redirects"`
}
