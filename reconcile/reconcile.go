// Package reconcile writes the outcome of a batch back onto its records as a
// color-coded spreadsheet.
package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/fsutil"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

// Stage names one step of reconciliation.
type Stage string

const (
	StageWrite      Stage = "write"
	StageAutosize   Stage = "autosize"
	StageColor      Stage = "color"
	StageDropStatus Stage = "drop_status"
	StageRelocate   Stage = "relocate"
)

// StageError reports the step at which reconciliation stopped. Work done by
// earlier stages is left in place.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Palette is the row fill per status. Rows without a status get no fill.
var Palette = map[model.Status]string{
	model.StatusSuccess:     "00FF00",
	model.StatusAnomaly:     "FFFF00",
	model.StatusRejected:    "FF0000",
	model.StatusPageError:   "808080",
	model.StatusSpecialLink: "FFFFFF",
}

// Reconciler writes the colour-coded results workbook for a batch.
type Reconciler struct {
	workDir  string
	fileName string
	log      *slog.Logger
}

// New returns a Reconciler that builds fileName inside workDir before
// moving it to the batch destination.
func New(workDir, fileName string) *Reconciler {
	return &Reconciler{
		workDir:  workDir,
		fileName: fileName,
		log:      logger.New("reconcile"),
	}
}

// Reconcile persists the annotated table and returns the final path of the
// spreadsheet. With an empty destination the file stays in the work directory.
func (r *Reconciler) Reconcile(records []model.Record, outcomes []model.Outcome, destination string) (string, error) {
	table, matched := Build(records, outcomes)
	if !matched {
		r.log.Warn("outcome count does not match records, reconciling overlap only",
			"records", len(records), "outcomes", len(outcomes))
	}

	path := filepath.Join(r.workDir, r.fileName)

	f, err := write(table, path)
	if err != nil {
		return "", &StageError{Stage: StageWrite, Err: err}
	}
	defer f.Close()
	sheetName := f.GetSheetName(0)

	if err := sheet.FitColumns(f, sheetName); err != nil {
		return "", &StageError{Stage: StageAutosize, Err: err}
	}
	if err := f.Save(); err != nil {
		return "", &StageError{Stage: StageAutosize, Err: err}
	}

	if err := color(f, sheetName, table); err != nil {
		return "", &StageError{Stage: StageColor, Err: err}
	}
	if err := f.Save(); err != nil {
		return "", &StageError{Stage: StageColor, Err: err}
	}

	if err := dropStatus(f, sheetName, table); err != nil {
		return "", &StageError{Stage: StageDropStatus, Err: err}
	}

	final, err := relocate(path, destination)
	if err != nil {
		return "", &StageError{Stage: StageRelocate, Err: err}
	}

	counts := model.Tally(outcomes)
	r.log.Info("results reconciled", "path", final, "rows", len(records),
		"success", counts[model.StatusSuccess], "rejected", counts[model.StatusRejected],
		"page_error", counts[model.StatusPageError])
	return final, nil
}

func write(t *Table, path string) (*excelize.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SaveAs(path); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func color(f *excelize.File, sheetName string, t *Table) error {
	lastCol, err := excelize.ColumnNumberToName(len(t.Header))
	if err != nil {
		return err
	}

	styles := make(map[model.Status]int)
	for i, status := range t.Statuses {
		hex, ok := Palette[status]
		if !ok {
			continue
		}
		style, ok := styles[status]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{hex}},
			})
			if err != nil {
				return fmt.Errorf("failed to create style for %s: %w", status, err)
			}
			styles[status] = style
		}
		row := i + 2
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), style); err != nil {
			return fmt.Errorf("failed to color row %d: %w", row, err)
		}
	}
	return nil
}

func dropStatus(f *excelize.File, sheetName string, t *Table) error {
	idx := t.StatusIndex()
	if idx < 0 {
		return nil
	}
	col, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return err
	}
	if err := f.RemoveCol(sheetName, col); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return err
	}
	t.DropStatus()
	return nil
}

func relocate(path, destination string) (string, error) {
	if destination == "" {
		return path, nil
	}
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return "", err
	}
	final := filepath.Join(destination, filepath.Base(path))
	if final == path {
		return path, nil
	}
	if err := fsutil.Move(path, final); err != nil {
		return "", err
	}
	return final, nil
}
