// =============================================================================
// FBDI Workflow - Workbook Helpers
// =============================================================================
//
// The backend does the column mapping; the client only needs to know that a
// source file is a readable workbook before uploading it, and to write the
// preview mapping table back out as a workbook for review.
//
// SOURCE WORKBOOK (first sheet):
//
//   | Row 1          | INV_NO  | CUSTOMER | AMOUNT | ...  <- headers (required)
//   | Row 2..N       | data rows (may be empty)
//
// MAPPING EXPORT ("Mappings" sheet):
//
//   | Template Column | Source Column | Status     |
//   | Invoice Number  | INV_NO        | Mapped     |
//   | Memo Line       |               | Not Mapped |
//
// =============================================================================

package sheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/fbdi-workflow/internal/types"
)

// Sheet errors.
var (
	ErrNotWorkbook = errors.New("source file must be an .xlsx workbook")
	ErrNoHeaders   = errors.New("workbook has no header row")
)

// MappingSheet is the sheet name used by ExportMappings.
const MappingSheet = "Mappings"

// =============================================================================
// SOURCE INSPECTION
// =============================================================================

// Summary describes the first sheet of a source workbook.
type Summary struct {
	Path     string   `json:"path" yaml:"path"`
	Sheet    string   `json:"sheet" yaml:"sheet"`
	Headers  []string `json:"headers" yaml:"headers"`
	DataRows int      `json:"data_rows" yaml:"data_rows"`
}

// Inspect opens the workbook at path and reads its header row.
func Inspect(path string) (*Summary, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return nil, fmt.Errorf("%w: %s", ErrNotWorkbook, filepath.Base(path))
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no sheets", ErrNoHeaders)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	// The header row is the first non-empty row.
	start := -1
	for i, row := range rows {
		if !isRowEmpty(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrNoHeaders
	}

	headers := make([]string, 0, len(rows[start]))
	for _, cell := range rows[start] {
		headers = append(headers, strings.TrimSpace(cell))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	data := 0
	for _, row := range rows[start+1:] {
		if !isRowEmpty(row) {
			data++
		}
	}

	return &Summary{Path: path, Sheet: sheetName, Headers: headers, DataRows: data}, nil
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// MAPPING EXPORT
// =============================================================================

// ExportMappings writes entries to a new workbook at path.
func ExportMappings(entries []types.MappingEntry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), MappingSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []any{"Template Column", "Source Column", "Status"}
	if err := f.SetSheetRow(MappingSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(MappingSheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, e := range entries {
		status := "Mapped"
		if !e.Mapped {
			status = types.NotMapped
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.TemplateColumn, e.SourceColumn, status}
		if err := f.SetSheetRow(MappingSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(MappingSheet, "A", "B", 32); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
