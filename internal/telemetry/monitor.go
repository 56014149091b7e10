// Package telemetry tracks crawl health during a run: per-domain request
// stats, the error ledger, redirects, citation edges and coverage against the
// expected-count table. State is in-memory for the run; the report snapshot
// is what persists.
package telemetry

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"github.com/david/civic-crawler/internal/models"
)

// Monitor is the coverage monitor. One value per run, constructed in main
// and shared by every worker; all methods are safe for concurrent use.
type Monitor struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	log       zerolog.Logger
	now       func() time.Time

	stats     map[string]*domainStats
	errors    map[string]*models.CrawlError // keyed domain|type|url
	errOrder  []string
	redirects []models.Redirect

	// expected[domain][category] is the coverage target from the registry;
	// actual mirrors it with observed record counts.
	expected map[string]map[string]int
	actual   map[string]map[string]int
}

type domainStats struct {
	total       int
	successful  int
	failed      int
	avgResponse time.Duration
	lastCrawled time.Time
	errorCounts map[models.ErrorType]int
}

func NewMonitor(expected map[string]map[string]int, log zerolog.Logger) *Monitor {
	return &Monitor{
		runID:     uuid.NewString(),
		startedAt: time.Now(),
		log:       log,
		now:       time.Now,
		stats:     make(map[string]*domainStats),
		errors:    make(map[string]*models.CrawlError),
		expected:  expected,
		actual:    make(map[string]map[string]int),
	}
}

// RunID identifies this crawl run on every report and record.
func (m *Monitor) RunID() string { return m.runID }

func (m *Monitor) domain(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return "unknown"
}

func (m *Monitor) statsFor(domain string) *domainStats {
	s, ok := m.stats[domain]
	if !ok {
		s = &domainStats{errorCounts: make(map[models.ErrorType]int)}
		m.stats[domain] = s
	}
	return s
}

// LogSuccess records one successful request with a rolling-mean latency.
func (m *Monitor) LogSuccess(rawURL string, responseTime time.Duration, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.statsFor(m.domain(rawURL))
	s.total++
	s.successful++
	s.avgResponse += (responseTime - s.avgResponse) / time.Duration(s.successful)
	s.lastCrawled = m.now()
}

// LogError upserts the error ledger. Repeat failures of the same URL with
// the same type bump the retry count on the existing record instead of
// producing a new one. Request counters track HTTP requests only; parsing
// errors are row-level and go to the ledger without touching them.
func (m *Monitor) LogError(t models.ErrorType, rawURL, message, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	domain := m.domain(rawURL)
	s := m.statsFor(domain)
	if t != models.ErrorParsing {
		s.total++
		s.failed++
	}
	s.errorCounts[t]++
	s.lastCrawled = m.now()

	key := domain + "|" + string(t) + "|" + rawURL
	if existing, ok := m.errors[key]; ok {
		existing.RetryCount++
		existing.Timestamp = m.now()
		existing.Message = message
		return
	}
	m.errors[key] = &models.CrawlError{
		ID:         key,
		Type:       t,
		URL:        rawURL,
		Message:    message,
		Domain:     domain,
		Category:   category,
		Timestamp:  m.now(),
		RetryCount: 1,
	}
	m.errOrder = append(m.errOrder, key)
	m.log.Warn().Str("type", string(t)).Str("url", rawURL).Msg(message)
}

// LogRedirect appends one hop to the redirect map.
func (m *Monitor) LogRedirect(oldURL, newURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects = append(m.redirects, models.Redirect{From: oldURL, To: newURL})
}

// MarkResolved flips an error record to resolved by its ledger ID.
func (m *Monitor) MarkResolved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.errors[id]; ok {
		e.Resolved = true
		return true
	}
	return false
}

// RecordWritten counts one stored record toward coverage for its domain and
// category.
func (m *Monitor) RecordWritten(domain, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	domain = strings.ToLower(domain)
	if m.actual[domain] == nil {
		m.actual[domain] = make(map[string]int)
	}
	m.actual[domain][category]++
}

// Report snapshots the monitor. partial marks a cancelled run.
func (m *Monitor) Report(partial bool) *models.CoverageReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := &models.CoverageReport{
		RunID:       m.runID,
		StartedAt:   m.startedAt,
		CompletedAt: m.now(),
		Partial:     partial,
		Redirects:   append([]models.Redirect(nil), m.redirects...),
	}

	domains := make([]string, 0, len(m.stats))
	for d := range m.stats {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, d := range domains {
		s := m.stats[d]
		ds := models.DomainStats{
			Domain:             d,
			TotalRequests:      s.total,
			SuccessfulRequests: s.successful,
			FailedRequests:     s.failed,
			AvgResponseTime:    s.avgResponse,
			LastCrawled:        s.lastCrawled,
		}
		if s.total > 0 {
			ds.SuccessRate = float64(s.successful) / float64(s.total) * 100
		}
		for _, t := range []models.ErrorType{models.ErrorNotFound, models.ErrorTimeout, models.ErrorParsing, models.ErrorAccessDenied, models.ErrorServer} {
			if n := s.errorCounts[t]; n > 0 {
				ds.CommonErrors = append(ds.CommonErrors, fmt.Sprintf("%s (%d)", t, n))
			}
		}
		report.DomainStats = append(report.DomainStats, ds)
	}

	for _, key := range m.errOrder {
		report.Errors = append(report.Errors, *m.errors[key])
	}

	report.Coverage = m.coverageLocked()
	report.Recommendations = m.recommendationsLocked(report)
	return report
}

func (m *Monitor) coverageLocked() []models.CoverageMetric {
	var metrics []models.CoverageMetric

	domains := make([]string, 0, len(m.expected))
	for d := range m.expected {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, d := range domains {
		categories := make([]string, 0, len(m.expected[d]))
		for c := range m.expected[d] {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		for _, c := range categories {
			expected := m.expected[d][c]
			actual := 0
			if m.actual[d] != nil {
				actual = m.actual[d][c]
			}
			pct := 0.0
			if expected > 0 {
				pct = float64(actual) / float64(expected) * 100
				if pct > 100 {
					pct = 100
				}
			}
			metric := models.CoverageMetric{
				Domain:             d,
				Category:           c,
				DataType:           c,
				ExpectedCount:      expected,
				ActualCount:        actual,
				CoveragePercentage: pct,
			}
			if s, ok := m.stats[d]; ok {
				metric.LastCrawled = s.lastCrawled
			}
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

// Thresholds for the recommendation rules.
const (
	lowSuccessRate   = 60.0
	slowAvgResponse  = 10 * time.Second
	manyNotFound     = 20
	manyRedirects    = 20
	lowCoverage      = 80.0
	criticalCoverage = 50.0
)

func (m *Monitor) recommendationsLocked(report *models.CoverageReport) []string {
	var recs []string

	for _, ds := range report.DomainStats {
		if ds.TotalRequests > 0 && ds.SuccessRate < lowSuccessRate {
			recs = append(recs, fmt.Sprintf("Success rate for %s is %.0f%%: investigate politeness settings or authentication", ds.Domain, ds.SuccessRate))
		}
		if ds.AvgResponseTime > slowAvgResponse {
			recs = append(recs, fmt.Sprintf("Average response time for %s exceeds 10s: consider timeout tuning", ds.Domain))
		}
	}

	notFound := 0
	for _, e := range report.Errors {
		if e.Type == models.ErrorNotFound {
			notFound += e.RetryCount
		}
	}
	if notFound > manyNotFound {
		recs = append(recs, fmt.Sprintf("%d URLs returned 404: refresh seed URLs", notFound))
	}
	if len(report.Redirects) > manyRedirects {
		recs = append(recs, fmt.Sprintf("%d redirects recorded: update seeds to new locations", len(report.Redirects)))
	}

	for _, c := range report.Coverage {
		if c.ExpectedCount == 0 {
			continue
		}
		if c.CoveragePercentage < lowCoverage {
			recs = append(recs, fmt.Sprintf("Low coverage detected for %s on %s (%.0f%% of expected)", c.Category, c.Domain, c.CoveragePercentage))
		}
		if c.CoveragePercentage < criticalCoverage {
			recs = append(recs, fmt.Sprintf("Coverage for %s on %s is below half the expected count: expand crawl scope", c.Category, c.Domain))
		}
	}

	return recs
}

// Render writes the report as console tables.
func Render(w io.Writer, report *models.CoverageReport) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Crawl run %s", report.RunID)
	tw.AppendHeader(table.Row{"Domain", "Requests", "OK", "Failed", "Success %", "Avg RT"})
	for _, ds := range report.DomainStats {
		tw.AppendRow(table.Row{
			ds.Domain, ds.TotalRequests, ds.SuccessfulRequests, ds.FailedRequests,
			fmt.Sprintf("%.1f", ds.SuccessRate), ds.AvgResponseTime.Round(time.Millisecond),
		})
	}
	tw.Render()

	cw := table.NewWriter()
	cw.SetOutputMirror(w)
	cw.SetTitle("Coverage")
	cw.AppendHeader(table.Row{"Domain", "Category", "Expected", "Actual", "%"})
	for _, c := range report.Coverage {
		cw.AppendRow(table.Row{c.Domain, c.Category, c.ExpectedCount, c.ActualCount, fmt.Sprintf("%.0f", c.CoveragePercentage)})
	}
	cw.Render()

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(w, "Recommendations:")
		for _, r := range report.Recommendations {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
}
