package reconcile

import (
	"strconv"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

// Columns appended to the record columns.
const (
	ColObservations = "OBSERVACIONES"
	ColStatus       = "STATUS"
)

// Table is the record batch annotated with each row's outcome.
type Table struct {
	Header []string
	Rows   [][]any
	// Statuses mirrors the STATUS column and survives DropStatus so rows can
	// still be colored.
	Statuses []model.Status
}

// Build zips records with outcomes by index. When the counts differ only the
// overlapping prefix is annotated, the remaining records keep blank
// observation and status, and matched reports false.
func Build(records []model.Record, outcomes []model.Outcome) (t *Table, matched bool) {
	header := make([]string, 0, len(sheet.Headers)+2)
	header = append(header, sheet.Headers...)
	header = append(header, ColObservations, ColStatus)

	t = &Table{
		Header:   header,
		Rows:     make([][]any, len(records)),
		Statuses: make([]model.Status, len(records)),
	}
	for i, rec := range records {
		var out model.Outcome
		if i < len(outcomes) {
			out = outcomes[i]
		}
		t.Rows[i] = append(recordCells(rec), out.Observation, string(out.Status))
		t.Statuses[i] = out.Status
	}
	return t, len(records) == len(outcomes)
}

// recordCells echoes the uploaded cells. Whole numbers go back as numbers;
// everything else, leading zeros included, as the text that was read.
// Records built without cells fall back to their parsed values.
func recordCells(rec model.Record) []any {
	if len(rec.Cells) != len(sheet.Headers) {
		return []any{
			string(rec.DocumentType),
			rec.DocumentNumber,
			rec.FullName,
			rec.Day,
			rec.MonthText(),
			rec.Year,
		}
	}
	cells := make([]any, len(rec.Cells))
	for i, c := range rec.Cells {
		if n, err := strconv.ParseInt(c, 10, 64); err == nil && strconv.FormatInt(n, 10) == c {
			cells[i] = n
			continue
		}
		cells[i] = c
	}
	return cells
}

// StatusIndex returns the position of the STATUS column, or -1.
func (t *Table) StatusIndex() int {
	for i, h := range t.Header {
		if h == ColStatus {
			return i
		}
	}
	return -1
}

// DropStatus removes the STATUS column from the header and every row.
func (t *Table) DropStatus() {
	idx := t.StatusIndex()
	if idx < 0 {
		return
	}
	t.Header = append(t.Header[:idx:idx], t.Header[idx+1:]...)
	for i, row := range t.Rows {
		if idx < len(row) {
			t.Rows[i] = append(row[:idx:idx], row[idx+1:]...)
		}
	}
}
