// Package db is the Postgres storage sink. Every record kind maps to one
// table; dedup happens in the database with ON CONFLICT on the kind's
// identity key.
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/civic-crawler/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Write stores one record. Writes are record-atomic; repeats of the same
// identity update in place.
func (s *Store) Write(ctx context.Context, kind models.RecordKind, record any) error {
	switch r := record.(type) {
	case models.PageRecord:
		return s.writePage(ctx, r)
	case models.FileArtifact:
		return s.writeArtifact(ctx, r)
	case models.BudgetItem:
		return s.writeBudgetItem(ctx, r)
	case models.SpendingRecord:
		return s.writeSpending(ctx, r)
	case models.StatisticalDatum:
		return s.writeStatistic(ctx, r)
	case models.PlanningApplication:
		return s.writePlanning(ctx, r)
	case models.AgendaDocument:
		return s.writeAgenda(ctx, r)
	case models.MinutesDocument:
		return s.writeMinutes(ctx, r)
	case models.CoverageReport:
		return s.writeReport(ctx, r)
	case *models.CoverageReport:
		return s.writeReport(ctx, *r)
	default:
		return fmt.Errorf("unsupported record kind %s (%T)", kind, record)
	}
}

func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) writePage(ctx context.Context, p models.PageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pages (url, parent_url, title, description, category, content_length, quality_score, crawled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			updated_at = NOW(),
			parent_url = EXCLUDED.parent_url,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			content_length = EXCLUDED.content_length,
			quality_score = EXCLUDED.quality_score,
			crawled_at = EXCLUDED.crawled_at
	`, p.URL, nullable(p.ParentURL), p.Title, nullable(p.Description), p.Category, p.ContentLength, p.QualityScore, p.CrawledAt)
	return err
}

func (s *Store) writeArtifact(ctx context.Context, a models.FileArtifact) error {
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return fmt.Errorf("encoding artifact summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO file_artifacts (file_url, parent_page_url, file_type, file_size, title, category, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (file_url) DO UPDATE SET
			updated_at = NOW(),
			parent_page_url = EXCLUDED.parent_page_url,
			file_type = EXCLUDED.file_type,
			file_size = EXCLUDED.file_size,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			summary = EXCLUDED.summary
	`, a.FileURL, a.ParentPageURL, a.FileType, a.FileSize, a.Title, a.Category, summary)
	return err
}

func (s *Store) writeBudgetItem(ctx context.Context, b models.BudgetItem) error {
	hash := contentHash(b.Department, b.Category, b.Subcategory, b.BudgetedAmount.String(), fmt.Sprint(b.Year), b.Period)
	var actual *string
	if b.ActualAmount != nil {
		v := b.ActualAmount.String()
		actual = &v
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budget_items (source_url, content_hash, department, category, subcategory,
			budgeted_amount, actual_amount, currency, year, period, description, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_url, content_hash) DO UPDATE SET
			budgeted_amount = EXCLUDED.budgeted_amount,
			actual_amount = EXCLUDED.actual_amount,
			description = EXCLUDED.description,
			last_updated = EXCLUDED.last_updated
	`, b.SourceURL, hash, b.Department, b.Category, nullable(b.Subcategory),
		b.BudgetedAmount.String(), actual, b.Currency, b.Year, nullable(b.Period), nullable(b.Description), b.LastUpdated)
	return err
}

func (s *Store) writeSpending(ctx context.Context, r models.SpendingRecord) error {
	hash := contentHash(r.TransactionDate.Format("2006-01-02"), r.Supplier, r.Department, r.Amount.String(), r.InvoiceNumber)
	var txDate any
	if !r.TransactionDate.IsZero() {
		txDate = r.TransactionDate
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO spending_records (source_url, content_hash, transaction_date, supplier, department,
			description, amount, category, invoice_number, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_url, content_hash) DO UPDATE SET
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			extracted_at = EXCLUDED.extracted_at
	`, r.SourceURL, hash, txDate, r.Supplier, r.Department,
		nullable(r.Description), r.Amount.String(), r.Category, nullable(r.InvoiceNumber), r.ExtractedAt)
	return err
}

func (s *Store) writeStatistic(ctx context.Context, d models.StatisticalDatum) error {
	hash := contentHash(d.Category, d.Metric, d.Value.String(), d.Unit, d.Period)
	var observed any
	if !d.Date.IsZero() {
		observed = d.Date
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO statistical_data (source_document, content_hash, category, subcategory, metric,
			value, unit, period, observed_on, methodology, confidence, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_document, content_hash) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			last_updated = EXCLUDED.last_updated
	`, d.SourceDocument, hash, d.Category, nullable(d.Subcategory), d.Metric,
		d.Value.String(), d.Unit, nullable(d.Period), observed, nullable(d.Methodology), string(d.Confidence), d.LastUpdated)
	return err
}

func (s *Store) writePlanning(ctx context.Context, a models.PlanningApplication) error {
	docs, err := json.Marshal(a.DocumentURLs)
	if err != nil {
		return fmt.Errorf("encoding document urls: %w", err)
	}
	var lat, lng any
	if a.Coordinates != nil {
		lat, lng = a.Coordinates.Lat, a.Coordinates.Lng
	}
	var received any
	if !a.ReceivedDate.IsZero() {
		received = a.ReceivedDate
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO planning_applications (domain, reference, address, proposal, status,
			received_date, decision_date, applicant_name, lat, lng, document_urls,
			source_url, case_officer, consultation_end_date, development_type, parish)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (domain, reference) DO UPDATE SET
			updated_at = NOW(),
			address = EXCLUDED.address,
			proposal = EXCLUDED.proposal,
			status = EXCLUDED.status,
			decision_date = EXCLUDED.decision_date,
			document_urls = EXCLUDED.document_urls,
			case_officer = EXCLUDED.case_officer,
			consultation_end_date = EXCLUDED.consultation_end_date
	`, a.Domain, a.Reference, a.Address, a.Proposal, string(a.Status),
		received, a.DecisionDate, nullable(a.ApplicantName), lat, lng, docs,
		a.SourceURL, nullable(a.CaseOfficer), a.ConsultationEndDate, nullable(a.DevelopmentType), nullable(a.Parish))
	return err
}

func (s *Store) writeAgenda(ctx context.Context, a models.AgendaDocument) error {
	items, err := json.Marshal(a.AgendaItems)
	if err != nil {
		return fmt.Errorf("encoding agenda items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agenda_documents (source_url, meeting_title, meeting_date, committee, agenda_items)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_url) DO UPDATE SET
			updated_at = NOW(),
			meeting_title = EXCLUDED.meeting_title,
			meeting_date = EXCLUDED.meeting_date,
			committee = EXCLUDED.committee,
			agenda_items = EXCLUDED.agenda_items
	`, a.SourceURL, a.MeetingTitle, a.MeetingDate, nullable(a.Committee), items)
	return err
}

func (s *Store) writeMinutes(ctx context.Context, m models.MinutesDocument) error {
	attendees, err := json.Marshal(m.Attendees)
	if err != nil {
		return fmt.Errorf("encoding attendees: %w", err)
	}
	decisions, err := json.Marshal(m.Decisions)
	if err != nil {
		return fmt.Errorf("encoding decisions: %w", err)
	}
	actions, err := json.Marshal(m.Actions)
	if err != nil {
		return fmt.Errorf("encoding actions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO minutes_documents (source_url, meeting_title, meeting_date, committee, attendees, decisions, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_url) DO UPDATE SET
			updated_at = NOW(),
			meeting_title = EXCLUDED.meeting_title,
			meeting_date = EXCLUDED.meeting_date,
			committee = EXCLUDED.committee,
			attendees = EXCLUDED.attendees,
			decisions = EXCLUDED.decisions,
			actions = EXCLUDED.actions
	`, m.SourceURL, m.MeetingTitle, m.MeetingDate, nullable(m.Committee), attendees, decisions, actions)
	return err
}

func (s *Store) writeReport(ctx context.Context, r models.CoverageReport) error {
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding coverage report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO coverage_reports (run_id, started_at, completed_at, partial, report)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			partial = EXCLUDED.partial,
			report = EXCLUDED.report
	`, r.RunID, r.StartedAt, r.CompletedAt, r.Partial, blob)
	return err
}

// contentHash fingerprints the canonical fields of a row so re-crawls of the
// same file do not duplicate records.
func contentHash(fields ...string) string {
	h := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(h[:16])
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
