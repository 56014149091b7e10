package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/david/civic-crawler/internal/models"
)

var (
	maxPlausibleAmount = decimal.New(1, 10) // 10 billion GBP
	anomalyThreshold   = decimal.New(1, 7)  // 10 million GBP
)

// ValidateBundle drops records that fail hard checks and cleans up the rest.
// Amounts above ten million pounds are kept but reported as anomalies; a
// council spends that on a capital project now and then, but it merits a
// look. Returned issues are appended to the bundle's parse errors by the
// caller.
func ValidateBundle(b *Bundle) []string {
	var issues []string

	kept := b.SpendingRecords[:0]
	for _, rec := range b.SpendingRecords {
		rec.Supplier = cleanField(rec.Supplier)
		rec.Department = cleanField(rec.Department)
		rec.Description = cleanField(rec.Description)
		if issue := checkAmount("spending", rec.Amount); issue != "" {
			if rec.Amount.IsNegative() || rec.Amount.GreaterThan(maxPlausibleAmount) {
				issues = append(issues, issue)
				continue
			}
			issues = append(issues, issue)
		}
		if !rec.TransactionDate.IsZero() {
			if issue := checkDate("spending transaction", rec.TransactionDate); issue != "" {
				issues = append(issues, issue)
				continue
			}
		}
		kept = append(kept, rec)
	}
	b.SpendingRecords = kept

	budgets := b.BudgetItems[:0]
	for _, item := range b.BudgetItems {
		item.Department = cleanField(item.Department)
		item.Description = cleanField(item.Description)
		if issue := checkAmount("budget", item.BudgetedAmount); issue != "" {
			if item.BudgetedAmount.IsNegative() || item.BudgetedAmount.GreaterThan(maxPlausibleAmount) {
				issues = append(issues, issue)
				continue
			}
			issues = append(issues, issue)
		}
		if item.Year < minYear || item.Year > maxYear {
			issues = append(issues, fmt.Sprintf("budget year %d out of range", item.Year))
			continue
		}
		budgets = append(budgets, item)
	}
	b.BudgetItems = budgets

	stats := b.StatisticalData[:0]
	for _, d := range b.StatisticalData {
		d.Metric = cleanField(d.Metric)
		if d.Metric == "" {
			continue
		}
		if !validConfidence(d.Confidence) {
			d.Confidence = models.ConfidenceLow
		}
		if !d.Date.IsZero() {
			if issue := checkDate("statistic", d.Date); issue != "" {
				issues = append(issues, issue)
				continue
			}
		}
		stats = append(stats, d)
	}
	b.StatisticalData = stats

	apps := b.Planning[:0]
	for _, app := range b.Planning {
		app.Reference = cleanField(app.Reference)
		app.Address = cleanField(app.Address)
		app.Proposal = cleanField(app.Proposal)
		if app.Reference == "" {
			issues = append(issues, "planning application without reference dropped")
			continue
		}
		app.Status = NormalizePlanningStatus(string(app.Status))
		if !app.ReceivedDate.IsZero() {
			if issue := checkDate("planning received", app.ReceivedDate); issue != "" {
				issues = append(issues, issue)
				continue
			}
		}
		apps = append(apps, app)
	}
	b.Planning = apps

	return issues
}

func checkAmount(label string, d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return fmt.Sprintf("%s amount %s is negative", label, d.String())
	case d.GreaterThan(maxPlausibleAmount):
		return fmt.Sprintf("%s amount %s exceeds plausible range", label, d.String())
	case d.GreaterThan(anomalyThreshold):
		return fmt.Sprintf("%s amount %s flagged as anomaly", label, d.String())
	}
	return ""
}

func checkDate(label string, t time.Time) string {
	if t.Year() < minYear || t.Year() > maxYear {
		return fmt.Sprintf("%s date %s out of range", label, t.Format("2006-01-02"))
	}
	return ""
}

// cleanField trims whitespace and treats placeholder values as missing.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "unknown", "n/a", "na", "-", "none", "null":
		return ""
	}
	return s
}

func validConfidence(c models.Confidence) bool {
	switch c {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
		return true
	}
	return false
}

// NormalizePlanningStatus folds the free-text status strings planning portals
// use into the fixed vocabulary.
func NormalizePlanningStatus(raw string) models.PlanningStatus {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "grant") || strings.Contains(lower, "approv") || strings.Contains(lower, "permit"):
		return models.PlanningApproved
	case strings.Contains(lower, "refus") || strings.Contains(lower, "reject"):
		return models.PlanningRejected
	case strings.Contains(lower, "withdraw"):
		return models.PlanningWithdrawn
	case strings.Contains(lower, "review") || strings.Contains(lower, "consideration") || strings.Contains(lower, "consult"):
		return models.PlanningUnderReview
	default:
		return models.PlanningPending
	}
}
