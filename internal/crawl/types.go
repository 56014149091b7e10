package crawl

import (
	"context"
	"time"
)

// Priority tiers for frontier ordering. Lower dequeues first.
const (
	PriorityFile     = 0 // data-file URLs and spending-keyword links
	PriorityCategory = 1 // seed extensions within a known category
	PriorityHTML     = 2 // generic same-domain HTML
	PriorityOverflow = 3 // past the per-host soft cap
)

// FrontierItem is one pending URL. Items are created by the seed registry or
// the link extractor and consumed once by a fetch worker.
type FrontierItem struct {
	URL            string
	Depth          int
	Category       string
	DiscoveredFrom string
	Priority       int
	EnqueuedAt     time.Time

	seq uint64 // FIFO tie-break, assigned on accept
}

// FetchResult is the raw outcome of one successful fetch. It is owned by the
// worker that produced it and discarded after classification.
type FetchResult struct {
	URL          string
	FinalURL     string
	Status       int
	ContentType  string
	Body         []byte
	ResponseTime time.Duration
	FetchedAt    time.Time
	Attempt      int
	Redirects    []RedirectHop
}

type RedirectHop struct {
	From string
	To   string
}

// Fetcher retrieves one frontier item politely. Implementations enforce
// per-host delay, retries, and size gates.
type Fetcher interface {
	Fetch(ctx context.Context, item FrontierItem) (*FetchResult, error)
}

// ResourceKind is the classifier's verdict on a fetched resource.
type ResourceKind string

const (
	KindHTMLPage    ResourceKind = "html-page"
	KindPDFDocument ResourceKind = "pdf-document"
	KindCSVFile     ResourceKind = "csv-file"
	KindExcelFile   ResourceKind = "excel-file"
	KindTextFile    ResourceKind = "text-file"
	KindOther       ResourceKind = "other"
)

// IsFile reports whether the kind goes through the file pipeline.
func (k ResourceKind) IsFile() bool {
	switch k {
	case KindPDFDocument, KindCSVFile, KindExcelFile, KindTextFile:
		return true
	}
	return false
}

// Link is one outbound anchor discovered on an HTML page.
type Link struct {
	URL              string
	LinkText         string
	InferredCategory string
	Priority         int
}
