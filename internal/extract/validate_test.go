package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/david/civic-crawler/internal/models"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateBundleSpending(t *testing.T) {
	b := &Bundle{SpendingRecords: []models.SpendingRecord{
		{Supplier: "Acme", Amount: amt("500")},
		{Supplier: "Refund Co", Amount: amt("-100")},
		{Supplier: "Impossible", Amount: amt("20000000000")},
		{Supplier: "Capital Works Ltd", Amount: amt("15000000")},
		{Supplier: " unknown ", Amount: amt("42")},
	}}

	issues := ValidateBundle(b)

	if len(b.SpendingRecords) != 3 {
		t.Fatalf("kept %d records, want 3 (negative and implausible dropped)", len(b.SpendingRecords))
	}
	// 15 million is kept but flagged.
	if b.SpendingRecords[1].Supplier != "Capital Works Ltd" {
		t.Errorf("anomalous record dropped: %+v", b.SpendingRecords)
	}
	if b.SpendingRecords[2].Supplier != "" {
		t.Errorf("placeholder supplier %q not cleaned", b.SpendingRecords[2].Supplier)
	}
	if len(issues) != 3 {
		t.Errorf("got %d issues, want 3: %v", len(issues), issues)
	}
}

func TestValidateBundleDates(t *testing.T) {
	b := &Bundle{SpendingRecords: []models.SpendingRecord{
		{Supplier: "Old", Amount: amt("10"), TransactionDate: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Supplier: "Current", Amount: amt("10"), TransactionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	ValidateBundle(b)
	if len(b.SpendingRecords) != 1 || b.SpendingRecords[0].Supplier != "Current" {
		t.Errorf("out-of-range transaction date survived: %+v", b.SpendingRecords)
	}
}

func TestValidateBundleBudgetYear(t *testing.T) {
	b := &Bundle{BudgetItems: []models.BudgetItem{
		{Department: "Education", BudgetedAmount: amt("1000"), Year: 2024},
		{Department: "Relic", BudgetedAmount: amt("1000"), Year: 1997},
	}}
	ValidateBundle(b)
	if len(b.BudgetItems) != 1 || b.BudgetItems[0].Department != "Education" {
		t.Errorf("out-of-range budget year survived: %+v", b.BudgetItems)
	}
}

func TestValidateBundleStatistics(t *testing.T) {
	b := &Bundle{StatisticalData: []models.StatisticalDatum{
		{Metric: "valid", Value: amt("1"), Confidence: models.ConfidenceHigh},
		{Metric: "n/a", Value: amt("1"), Confidence: models.ConfidenceHigh},
		{Metric: "bad confidence", Value: amt("1"), Confidence: models.Confidence("certain")},
	}}
	ValidateBundle(b)
	if len(b.StatisticalData) != 2 {
		t.Fatalf("kept %d data, want 2 (empty metric dropped)", len(b.StatisticalData))
	}
	if b.StatisticalData[1].Confidence != models.ConfidenceLow {
		t.Errorf("unknown confidence = %v, want fallback to low", b.StatisticalData[1].Confidence)
	}
}

func TestValidateBundlePlanning(t *testing.T) {
	b := &Bundle{Planning: []models.PlanningApplication{
		{Reference: "24/01234/FUL", Status: models.PlanningStatus("Application Permitted")},
		{Reference: "", Address: "1 Town Hall Square"},
	}}
	issues := ValidateBundle(b)
	if len(b.Planning) != 1 {
		t.Fatalf("kept %d applications, want 1", len(b.Planning))
	}
	if b.Planning[0].Status != models.PlanningApproved {
		t.Errorf("status = %v, want approved", b.Planning[0].Status)
	}
	if len(issues) != 1 {
		t.Errorf("dropped reference-less application must be reported, got %v", issues)
	}
}

func TestNormalizePlanningStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want models.PlanningStatus
	}{
		{"Granted", models.PlanningApproved},
		{"Application Permitted", models.PlanningApproved},
		{"Approve with Conditions", models.PlanningApproved},
		{"Refused", models.PlanningRejected},
		{"REJECTED", models.PlanningRejected},
		{"Withdrawn by applicant", models.PlanningWithdrawn},
		{"Under Review", models.PlanningUnderReview},
		{"Awaiting consideration", models.PlanningUnderReview},
		{"Out for consultation", models.PlanningUnderReview},
		{"Registered", models.PlanningPending},
		{"", models.PlanningPending},
	}
	for _, tc := range cases {
		if got := NormalizePlanningStatus(tc.raw); got != tc.want {
			t.Errorf("NormalizePlanningStatus(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
