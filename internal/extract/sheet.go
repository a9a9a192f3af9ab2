package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractSheet extracts cell text from an XLSX workbook, one labeled section
// per sheet:
//
//	Sheet: <name>
//	<rows, cells joined with spaces>
//
// joined with blank lines between sheets. Empty sheets are omitted.
func extractSheet(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	var parts []string
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if line := strings.TrimSpace(strings.Join(cells, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, "Sheet: "+sheet+"\n"+strings.Join(lines, "\n"))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
