package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount strips currency symbols, thousands separators and whitespace,
// and parses the remainder as decimal GBP. Parenthesised values are treated
// as negative, as council spreadsheets commonly render credits.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = clean[1 : len(clean)-1]
	}

	replacer := strings.NewReplacer("£", "", "$", "", ",", "", " ", "", " ", "")
	clean = replacer.Replace(clean)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("no digits in amount %q", s)
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// looksNumeric reports whether a cell plausibly holds an amount; rows whose
// financial column fails this are skipped silently.
func looksNumeric(s string) bool {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return false
	}
	digits := 0
	for _, r := range clean {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '£' || r == '$' || r == ',' || r == '.' || r == '-' || r == '(' || r == ')' || r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}
