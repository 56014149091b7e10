package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/david/civic-crawler/internal/models"
)

// tableType is the inferred shape of a delimited file.
type tableType int

const (
	tableSpending tableType = iota
	tableBudget
	tableStatistical
)

// columnRole classifies a header cell so rows can be mapped to record fields.
type columnRole int

const (
	roleFinancial columnRole = iota
	roleDate
	roleSupplier
	roleDepartment
	roleCategory
	roleDescription
	roleReference
	roleText
)

var headerRolePatterns = []struct {
	role columnRole
	re   *regexp.Regexp
}{
	{roleFinancial, regexp.MustCompile(`(?i)amount|cost|budget|spend|price|value|total|net|gross|allocation|£|\$`)},
	{roleSupplier, regexp.MustCompile(`(?i)supplier|vendor|company|payee|beneficiary|merchant`)},
	{roleDate, regexp.MustCompile(`(?i)date|time|received|published|updated|created|period|month|year|quarter`)},
	{roleDepartment, regexp.MustCompile(`(?i)department|service|division|team|directorate|cost centre`)},
	{roleCategory, regexp.MustCompile(`(?i)category|type|classification`)},
	{roleReference, regexp.MustCompile(`(?i)invoice|transaction|reference|\bref\b|voucher`)},
	{roleDescription, regexp.MustCompile(`(?i)description|detail|purpose|summary|narrative`)},
}

func classifyHeader(cell string) columnRole {
	for _, p := range headerRolePatterns {
		if p.re.MatchString(cell) {
			return p.role
		}
	}
	return roleText
}

var (
	spendingHeaderRegex = regexp.MustCompile(`(?i)supplier|vendor|company|payee|transaction|invoice|payment`)
	budgetHeaderRegex   = regexp.MustCompile(`(?i)budget|allocation|forecast`)
)

// inferTableType reads the header row. Supplier-style columns mean spending,
// budget vocabulary means budget, any other table with a financial column
// defaults to spending, and the rest is treated as statistics.
func inferTableType(headers []string, roles []columnRole) tableType {
	joined := strings.Join(headers, " ")
	if spendingHeaderRegex.MatchString(joined) {
		return tableSpending
	}
	if budgetHeaderRegex.MatchString(joined) {
		return tableBudget
	}
	for _, r := range roles {
		if r == roleFinancial {
			return tableSpending
		}
	}
	return tableStatistical
}

// ExtractCSV decodes, splits and maps a delimited file into civic records.
func ExtractCSV(data []byte, sourceURL string, now time.Time) (*Bundle, error) {
	text := decodeText(data)
	rows := parseDelimited(text, detectDelimiter(text))
	return mapTable(rows, sourceURL, now)
}

// mapTable is shared by the CSV and Excel paths: rows in, records out. The
// first non-empty row is the header.
func mapTable(rows [][]string, sourceURL string, now time.Time) (*Bundle, error) {
	start := -1
	for i, row := range rows {
		if !rowEmpty(row) {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("no data rows")
	}

	headers := rows[start]
	roles := make([]columnRole, len(headers))
	for i, h := range headers {
		roles[i] = classifyHeader(h)
	}
	kind := inferTableType(headers, roles)

	bundle := &Bundle{}
	for _, row := range rows[start+1:] {
		if rowEmpty(row) {
			continue
		}
		switch kind {
		case tableSpending:
			mapSpendingRow(bundle, headers, roles, row, sourceURL, now)
		case tableBudget:
			mapBudgetRow(bundle, headers, roles, row, sourceURL, now)
		case tableStatistical:
			mapStatisticalRow(bundle, headers, roles, row, sourceURL, now)
		}
	}
	return bundle, nil
}

func mapSpendingRow(b *Bundle, headers []string, roles []columnRole, row []string, sourceURL string, now time.Time) {
	rec := models.SpendingRecord{
		Category:    "spending",
		SourceURL:   sourceURL,
		ExtractedAt: now,
	}
	haveAmount := false

	for i, cell := range row {
		if i >= len(roles) {
			break
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch roles[i] {
		case roleFinancial:
			if haveAmount {
				continue
			}
			// Rows whose financial cell is not numeric are totals or
			// section labels; skip the row without reporting.
			if !looksNumeric(cell) {
				return
			}
			amt, err := ParseAmount(cell)
			if err != nil {
				b.ParseErrors = append(b.ParseErrors, fmt.Sprintf("amount %q: %v", cell, err))
				return
			}
			rec.Amount = amt
			haveAmount = true
		case roleDate:
			if t, err := ParseDate(cell); err == nil {
				rec.TransactionDate = t
			}
		case roleSupplier:
			rec.Supplier = cell
		case roleDepartment:
			rec.Department = cell
		case roleCategory:
			rec.Category = cell
		case roleReference:
			rec.InvoiceNumber = cell
		case roleDescription:
			if rec.Description == "" {
				rec.Description = cell
			}
		}
	}

	if !haveAmount {
		return
	}
	b.SpendingRecords = append(b.SpendingRecords, rec)
}

func mapBudgetRow(b *Bundle, headers []string, roles []columnRole, row []string, sourceURL string, now time.Time) {
	item := models.BudgetItem{
		Category:    "budget",
		Currency:    "GBP",
		SourceURL:   sourceURL,
		LastUpdated: now,
	}
	haveAmount := false

	for i, cell := range row {
		if i >= len(roles) {
			break
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch roles[i] {
		case roleFinancial:
			if !looksNumeric(cell) {
				return
			}
			amt, err := ParseAmount(cell)
			if err != nil {
				b.ParseErrors = append(b.ParseErrors, fmt.Sprintf("amount %q: %v", cell, err))
				return
			}
			if !haveAmount {
				item.BudgetedAmount = amt
				haveAmount = true
			} else if item.ActualAmount == nil {
				// Second financial column is read as the actual spend.
				actual := amt
				item.ActualAmount = &actual
			}
		case roleDate:
			if y, ok := yearFromCell(cell); ok {
				item.Year = y
				item.Period = cell
			} else if t, err := ParseDate(cell); err == nil {
				item.Year = t.Year()
				item.Period = cell
			}
		case roleDepartment:
			item.Department = cell
		case roleCategory:
			item.Category = cell
		case roleDescription:
			if item.Description == "" {
				item.Description = cell
			}
		}
	}

	if !haveAmount {
		return
	}
	if item.Year == 0 {
		item.Year = now.Year()
	}
	b.BudgetItems = append(b.BudgetItems, item)
}

func mapStatisticalRow(b *Bundle, headers []string, roles []columnRole, row []string, sourceURL string, now time.Time) {
	category := "statistics"
	period := ""
	date := now
	for i, cell := range row {
		if i >= len(roles) {
			break
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		switch roles[i] {
		case roleCategory:
			category = cell
		case roleDate:
			period = cell
			if t, err := ParseDate(cell); err == nil {
				date = t
			}
		}
	}

	// Each numeric cell under a text header becomes one datum, named by its
	// column.
	for i, cell := range row {
		if i >= len(headers) {
			break
		}
		cell = strings.TrimSpace(cell)
		if cell == "" || roles[i] == roleDate || roles[i] == roleCategory {
			continue
		}
		if !looksNumeric(cell) {
			continue
		}
		val, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(cell), ",", ""))
		if err != nil {
			continue
		}
		b.StatisticalData = append(b.StatisticalData, models.StatisticalDatum{
			Category:       category,
			Metric:         strings.TrimSpace(headers[i]),
			Value:          val,
			Unit:           "count",
			Period:         period,
			Date:           date,
			SourceDocument: sourceURL,
			Confidence:     models.ConfidenceMedium,
			LastUpdated:    now,
		})
	}
}

var yearRegex = regexp.MustCompile(`^(20\d{2})(?:[/\-]\d{2,4})?$`)

// yearFromCell reads "2024" and fiscal forms like "2024/25".
func yearFromCell(cell string) (int, bool) {
	m := yearRegex.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || y < minYear || y > maxYear {
		return 0, false
	}
	return y, true
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// delimiterCandidates in preference order; ties go to the earlier candidate.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// detectDelimiter splits the first non-empty line with each candidate and
// keeps whichever yields the most columns. Equal column counts are broken by
// whichever split leaves fewer stray quote characters in its cells, so a line
// of fully quoted fields picks the delimiter that sits between the quotes.
func detectDelimiter(text string) rune {
	line := ""
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	best := ','
	bestCols := 0
	bestStray := 0
	for _, cand := range delimiterCandidates {
		cells := splitLine(line, cand)
		cols := len(cells)
		stray := 0
		for _, c := range cells {
			stray += strings.Count(c, `"`) + strings.Count(c, `'`)
		}
		if cols > bestCols || (cols == bestCols && stray < bestStray) {
			best = cand
			bestCols = cols
			bestStray = stray
		}
	}
	return best
}

// parseDelimited splits text into rows and cells. Both double and single
// quotes delimit fields; a doubled quote inside a quoted field is a literal
// quote; quoted fields may span newlines.
func parseDelimited(text string, delim rune) [][]string {
	var rows [][]string
	var row []string
	var cell strings.Builder
	var quote rune // 0 when outside quotes

	flushCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	flushRow := func() {
		flushCell()
		rows = append(rows, row)
		row = nil
	}

	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					cell.WriteRune(quote)
					i++
				} else {
					quote = 0
				}
			} else {
				cell.WriteRune(r)
			}
		case r == '"' || r == '\'':
			if cell.Len() == 0 {
				quote = r
			} else {
				cell.WriteRune(r)
			}
		case r == delim:
			flushCell()
		case r == '\n':
			flushRow()
		case r == '\r':
		default:
			cell.WriteRune(r)
		}
	}
	if cell.Len() > 0 || len(row) > 0 {
		flushRow()
	}
	return rows
}

func splitLine(line string, delim rune) []string {
	rows := parseDelimited(line, delim)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// decodeText converts raw file bytes to UTF-8, using chardet to pick the
// source charset. Unknown charsets fall back to a lossy UTF-8 read.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(data); err == nil {
		if enc := encodingFor(result.Charset); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(decoded)
			}
		}
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func encodingFor(charset string) encoding.Encoding {
	switch strings.ToUpper(charset) {
	case "ISO-8859-1", "LATIN1":
		return charmap.ISO8859_1
	case "WINDOWS-1252":
		return charmap.Windows1252
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return nil
	}
}
