package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateName is the file name offered for the blank template.
const TemplateName = "plantilla.xlsx"

// Template builds the blank batch workbook: one header row, sized columns.
func Template() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	row := make([]any, len(Headers))
	for i, h := range Headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := FitColumns(f, sheetName); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf, nil
}
