// Package extract turns downloaded files and page text into normalized civic
// records: spending rows, budget rows, statistics, agendas, minutes and
// planning applications.
package extract

import "github.com/david/civic-crawler/internal/models"

// Bundle collects everything one file yielded. A bundle is only handed to
// storage as a whole; partial extraction after a failure is discarded.
type Bundle struct {
	BudgetItems     []models.BudgetItem
	SpendingRecords []models.SpendingRecord
	StatisticalData []models.StatisticalDatum
	Agenda          *models.AgendaDocument
	Minutes         *models.MinutesDocument
	Planning        []models.PlanningApplication

	// ParseErrors lists rows or fields that failed validation; the file
	// itself still succeeds.
	ParseErrors []string
}

// TotalItems counts the records in the bundle.
func (b *Bundle) TotalItems() int {
	n := len(b.BudgetItems) + len(b.SpendingRecords) + len(b.StatisticalData) + len(b.Planning)
	if b.Agenda != nil {
		n++
	}
	if b.Minutes != nil {
		n++
	}
	return n
}

// DataTypes names the record kinds present, for the artifact summary.
func (b *Bundle) DataTypes() []string {
	var types []string
	if len(b.BudgetItems) > 0 {
		types = append(types, string(models.KindBudgetItem))
	}
	if len(b.SpendingRecords) > 0 {
		types = append(types, string(models.KindSpendingRecord))
	}
	if len(b.StatisticalData) > 0 {
		types = append(types, string(models.KindStatisticalDatum))
	}
	if len(b.Planning) > 0 {
		types = append(types, string(models.KindPlanningApplication))
	}
	if b.Agenda != nil {
		types = append(types, string(models.KindAgendaDocument))
	}
	if b.Minutes != nil {
		types = append(types, string(models.KindMinutesDocument))
	}
	return types
}

// Merge appends other's records into b.
func (b *Bundle) Merge(other *Bundle) {
	if other == nil {
		return
	}
	b.BudgetItems = append(b.BudgetItems, other.BudgetItems...)
	b.SpendingRecords = append(b.SpendingRecords, other.SpendingRecords...)
	b.StatisticalData = append(b.StatisticalData, other.StatisticalData...)
	b.Planning = append(b.Planning, other.Planning...)
	if b.Agenda == nil {
		b.Agenda = other.Agenda
	}
	if b.Minutes == nil {
		b.Minutes = other.Minutes
	}
	b.ParseErrors = append(b.ParseErrors, other.ParseErrors...)
}
