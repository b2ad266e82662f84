package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Yair4430/CertiGranja-2.0/model"
)

func batch(numbers ...string) []model.Record {
	out := make([]model.Record, len(numbers))
	for i, n := range numbers {
		out[i] = model.Record{
			Row:            i + 2,
			DocumentType:   model.DocumentCC,
			DocumentNumber: n,
			FullName:       "PERSONA " + n,
			Day:            3,
			Month:          time.April,
			Year:           1990,
		}
	}
	return out
}

func openResult(t *testing.T, path string) (*excelize.File, string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, f.GetSheetName(0)
}

// fillOf returns the fill color of a cell as six upper-case hex digits, or
// "" when the cell has no fill.
func fillOf(t *testing.T, f *excelize.File, sheetName, cell string) string {
	t.Helper()
	id, err := f.GetCellStyle(sheetName, cell)
	require.NoError(t, err)
	if id == 0 {
		return ""
	}
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	if len(style.Fill.Color) == 0 {
		return ""
	}
	c := strings.ToUpper(strings.TrimPrefix(style.Fill.Color[0], "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	return c
}

func TestReconcileSuccessRow(t *testing.T) {
	work, dest := t.TempDir(), t.TempDir()
	outcomes := []model.Outcome{model.Success()}

	path, err := New(work, "resultados.xlsx").Reconcile(batch("1"), outcomes, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "resultados.xlsx"), path)

	_, err = os.Stat(filepath.Join(work, "resultados.xlsx"))
	assert.True(t, os.IsNotExist(err), "work copy should be relocated")

	f, sheetName := openResult(t, path)
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.NotContains(t, rows[0], ColStatus)
	assert.Equal(t, ColObservations, rows[0][len(rows[0])-1])
	assert.Equal(t, model.ObservationSuccess, rows[1][len(rows[0])-1])
	assert.Equal(t, "Abril", rows[1][4])

	assert.Equal(t, "00FF00", fillOf(t, f, sheetName, "A2"))
	assert.Equal(t, "00FF00", fillOf(t, f, sheetName, "G2"))
	assert.Equal(t, "", fillOf(t, f, sheetName, "A1"))
}

func TestReconcileMixedBatch(t *testing.T) {
	outcomes := []model.Outcome{model.Success(), model.Rejected(), model.Success()}

	path, err := New(t.TempDir(), "r.xlsx").Reconcile(batch("100", "200", "300"), outcomes, "")
	require.NoError(t, err)

	f, sheetName := openResult(t, path)
	assert.Equal(t, "00FF00", fillOf(t, f, sheetName, "A2"))
	assert.Equal(t, "FF0000", fillOf(t, f, sheetName, "A3"))
	assert.Equal(t, "00FF00", fillOf(t, f, sheetName, "A4"))

	obs, err := f.GetCellValue(sheetName, "G3")
	require.NoError(t, err)
	assert.Equal(t, model.ObservationRejected, obs)
}

func TestReconcilePalette(t *testing.T) {
	outcomes := []model.Outcome{
		model.Anomaly("Documento en trámite"),
		model.PageError(""),
		model.SpecialLink("https://portal.test"),
	}

	path, err := New(t.TempDir(), "r.xlsx").Reconcile(batch("1", "2", "3"), outcomes, "")
	require.NoError(t, err)

	f, sheetName := openResult(t, path)
	assert.Equal(t, "FFFF00", fillOf(t, f, sheetName, "B2"))
	assert.Equal(t, "808080", fillOf(t, f, sheetName, "B3"))
	assert.Equal(t, "FFFFFF", fillOf(t, f, sheetName, "B4"))

	obs, _ := f.GetCellValue(sheetName, "G2")
	assert.Equal(t, "NOVEDAD: Documento en trámite", obs)
}

func TestReconcileMismatchKeepsPrefix(t *testing.T) {
	outcomes := []model.Outcome{model.Rejected()}

	path, err := New(t.TempDir(), "r.xlsx").Reconcile(batch("1", "2"), outcomes, "")
	require.NoError(t, err)

	f, sheetName := openResult(t, path)
	assert.Equal(t, "FF0000", fillOf(t, f, sheetName, "A2"))
	assert.Equal(t, "", fillOf(t, f, sheetName, "A3"), "unmatched row should get no fill")

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestReconcileColumnWidths(t *testing.T) {
	path, err := New(t.TempDir(), "r.xlsx").Reconcile(batch("1"), []model.Outcome{model.Success()}, "")
	require.NoError(t, err)

	f, sheetName := openResult(t, path)
	width, err := f.GetColWidth(sheetName, "C")
	require.NoError(t, err)
	assert.Equal(t, float64(40), width)

	width, err = f.GetColWidth(sheetName, "G")
	require.NoError(t, err)
	assert.Equal(t, float64(len(model.ObservationSuccess)+10), width)
}

func TestReconcileRelocateFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := New(t.TempDir(), "r.xlsx").Reconcile(batch("1"), []model.Outcome{model.Success()}, filepath.Join(blocker, "dest"))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr), "expected StageError, got %v", err)
	assert.Equal(t, StageRelocate, stageErr.Stage)
}

func TestReconcileWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := New(blocker, "r.xlsx").Reconcile(batch("1"), []model.Outcome{model.Success()}, "")

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr), "expected StageError, got %v", err)
	assert.Equal(t, StageWrite, stageErr.Stage)
	assert.Contains(t, stageErr.Error(), "reconcile write")
}

func TestTableDropStatus(t *testing.T) {
	table, matched := Build(batch("1", "2"), []model.Outcome{model.Success(), model.Rejected()})
	require.True(t, matched)
	require.Equal(t, 7, table.StatusIndex())

	table.DropStatus()
	assert.Equal(t, -1, table.StatusIndex())
	assert.Len(t, table.Header, 7)
	for _, row := range table.Rows {
		assert.Len(t, row, 7)
	}
	assert.Equal(t, []model.Status{model.StatusSuccess, model.StatusRejected}, table.Statuses)
}

func TestTableEchoesUploadedCells(t *testing.T) {
	rec := model.Record{
		Row:            2,
		DocumentType:   model.DocumentCC,
		DocumentNumber: "123",
		FullName:       "ANA",
		Day:            5,
		Month:          time.September,
		Year:           2010,
		Cells:          []string{"cc", "00123", "ANA", "5", "setiembre", "2010"},
	}

	table, _ := Build([]model.Record{rec}, []model.Outcome{model.Success()})
	want := []any{"cc", "00123", "ANA", int64(5), "setiembre", int64(2010), "", string(model.StatusSuccess)}
	assert.Equal(t, want, table.Rows[0])
}
