package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind tags every payload handed to a storage sink so the sink can
// dispatch dedup keys without reflection.
type RecordKind string

const (
	KindPageRecord          RecordKind = "page_record"
	KindFileArtifact        RecordKind = "file_artifact"
	KindBudgetItem          RecordKind = "budget_item"
	KindSpendingRecord      RecordKind = "spending_record"
	KindStatisticalDatum    RecordKind = "statistical_datum"
	KindPlanningApplication RecordKind = "planning_application"
	KindAgendaDocument      RecordKind = "agenda_document"
	KindMinutesDocument     RecordKind = "minutes_document"
	KindCoverageReport      RecordKind = "coverage_report"
)

// Confidence grades how strongly an extraction heuristic matched.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PageRecord is a crawled HTML page as stored.
type PageRecord struct {
	URL           string    `json:"url"`
	ParentURL     string    `json:"parent_url,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	ContentLength int       `json:"content_length"`
	QualityScore  int       `json:"quality_score"`
	CrawledAt     time.Time `json:"crawled_at"`
}

// ExtractionSummary is attached to a FileArtifact after its file has been
// routed through the extractors.
type ExtractionSummary struct {
	TotalItems     int       `json:"total_items"`
	ProcessingDate time.Time `json:"processing_date"`
	DataTypes      []string  `json:"data_types"`
}

// FileArtifact is a downloaded data file. ParentPageURL records the page the
// file was discovered on; together with FileURL it forms one edge of the
// citation graph.
type FileArtifact struct {
	FileURL       string            `json:"file_url"`
	ParentPageURL string            `json:"parent_page_url"`
	FileType      string            `json:"file_type"`
	FileSize      int64             `json:"file_size"`
	Title         string            `json:"title"`
	Category      string            `json:"category"`
	Summary       ExtractionSummary `json:"summary"`
}

type BudgetItem struct {
	Department     string           `json:"department"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory,omitempty"`
	BudgetedAmount decimal.Decimal  `json:"budgeted_amount"`
	ActualAmount   *decimal.Decimal `json:"actual_amount,omitempty"`
	Currency       string           `json:"currency"`
	Year           int              `json:"year"`
	Period         string           `json:"period"`
	Description    string           `json:"description,omitempty"`
	SourceURL      string           `json:"source_url"`
	LastUpdated    time.Time        `json:"last_updated"`
}

type SpendingRecord struct {
	TransactionDate time.Time       `json:"transaction_date"`
	Supplier        string          `json:"supplier"`
	Department      string          `json:"department"`
	Description     string          `json:"description,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	InvoiceNumber   string          `json:"invoice_number,omitempty"`
	SourceURL       string          `json:"source_url"`
	ExtractedAt     time.Time       `json:"extracted_at"`
}

type StatisticalDatum struct {
	Category       string          `json:"category"`
	Subcategory    string          `json:"subcategory,omitempty"`
	Metric         string          `json:"metric"`
	Value          decimal.Decimal `json:"value"`
	Unit           string          `json:"unit"`
	Period         string          `json:"period"`
	Date           time.Time       `json:"date"`
	SourceDocument string          `json:"source_document"`
	Methodology    string          `json:"methodology,omitempty"`
	Confidence     Confidence      `json:"confidence"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// PlanningStatus is the normalized status of a planning application.
type PlanningStatus string

const (
	PlanningPending     PlanningStatus = "pending"
	PlanningUnderReview PlanningStatus = "under_review"
	PlanningApproved    PlanningStatus = "approved"
	PlanningRejected    PlanningStatus = "rejected"
	PlanningWithdrawn   PlanningStatus = "withdrawn"
)

type PlanningApplication struct {
	Reference           string         `json:"reference"`
	Domain              string         `json:"domain"`
	Address             string         `json:"address"`
	Proposal            string         `json:"proposal"`
	Status              PlanningStatus `json:"status"`
	ReceivedDate        time.Time      `json:"received_date"`
	DecisionDate        *time.Time     `json:"decision_date,omitempty"`
	ApplicantName       string         `json:"applicant_name,omitempty"`
	Coordinates         *LatLng        `json:"coordinates,omitempty"`
	DocumentURLs        []string       `json:"document_urls,omitempty"`
	SourceURL           string         `json:"source_url"`
	CaseOfficer         string         `json:"case_officer,omitempty"`
	ConsultationEndDate *time.Time     `json:"consultation_end_date,omitempty"`
	DevelopmentType     string         `json:"development_type,omitempty"`
	Parish              string         `json:"parish,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type AgendaItem struct {
	ItemNumber string     `json:"item_number"`
	Title      string     `json:"title"`
	PageNumber int        `json:"page_number"`
	Confidence Confidence `json:"confidence"`
}

type AgendaDocument struct {
	MeetingTitle string       `json:"meeting_title"`
	MeetingDate  *time.Time   `json:"meeting_date,omitempty"`
	Committee    string       `json:"committee"`
	AgendaItems  []AgendaItem `json:"agenda_items"`
	SourceURL    string       `json:"source_url"`
}

type MinuteDecision struct {
	Title      string     `json:"title"`
	PageNumber int        `json:"page_number"`
	Confidence Confidence `json:"confidence"`
}

type MinutesDocument struct {
	MeetingTitle string           `json:"meeting_title"`
	MeetingDate  *time.Time       `json:"meeting_date,omitempty"`
	Committee    string           `json:"committee"`
	Attendees    []string         `json:"attendees"`
	Decisions    []MinuteDecision `json:"decisions"`
	Actions      []string         `json:"actions"`
	SourceURL    string           `json:"source_url"`
}

// PenceIndex returns the amount as integer pence, usable as a sort key.
// The canonical stored form stays decimal GBP.
func PenceIndex(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}
