package extract

import (
	"bytes"
	"fmt"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ExtractXLSX reads the first sheet of a modern Excel workbook and routes the
// rows through the same header analysis as CSV.
func ExtractXLSX(data []byte, sourceURL string, now time.Time) (*Bundle, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return mapTable(rows, sourceURL, now)
}

// ExtractXLS reads the first sheet of a legacy .xls workbook.
func ExtractXLS(data []byte, sourceURL string, now time.Time) (*Bundle, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening xls: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("xls has no sheets")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		var cells []string
		for j := row.FirstCol(); j <= row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return mapTable(rows, sourceURL, now)
}
