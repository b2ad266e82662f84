// Package sheet reads and validates the batch spreadsheet and produces the
// blank template users fill in.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/xuri/excelize/v2"
)

// Column headers of the batch template, in order.
const (
	ColDocumentType   = "TIPO DE DOCUMENTO"
	ColDocumentNumber = "NUMERO DE DOCUMENTO"
	ColFullName       = "NOMBRES Y APELLIDOS"
	ColDay            = "DIA"
	ColMonth          = "MES"
	ColYear           = "AÑO"
)

// Headers is the exact header row a batch must carry.
var Headers = []string{ColDocumentType, ColDocumentNumber, ColFullName, ColDay, ColMonth, ColYear}

const (
	// MaxReported caps the violations listed in a ValidationError message.
	MaxReported = 5
	minYear     = 1900
	// nameColumnWidth is the fixed width of the names column.
	nameColumnWidth = 40
	widthPadding    = 10
)

var (
	ErrEmpty  = errors.New("el archivo no contiene datos")
	ErrHeader = errors.New("encabezados inválidos")
)

// Violation is one content problem found in a data row.
type Violation struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("fila %d, %s: %s", v.Row, v.Column, v.Message)
}

// ValidationError lists every content violation of a rejected batch.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	shown := e.Violations
	if len(shown) > MaxReported {
		shown = shown[:MaxReported]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = v.String()
	}
	msg := fmt.Sprintf("se encontraron %d errores: %s", len(e.Violations), strings.Join(parts, "; "))
	if rest := len(e.Violations) - len(shown); rest > 0 {
		msg += fmt.Sprintf(" y %d errores más", rest)
	}
	return msg
}

// Reported returns the violations included in the message.
func (e *ValidationError) Reported() []Violation {
	if len(e.Violations) > MaxReported {
		return e.Violations[:MaxReported]
	}
	return e.Violations
}

// ReadFile opens an uploaded workbook and returns its validated records.
func ReadFile(path string, now time.Time) ([]model.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, now)
}

// Read is ReadFile for an in-memory upload.
func Read(r io.Reader, now time.Time) ([]model.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, now)
}

func readWorkbook(f *excelize.File, now time.Time) ([]model.Record, error) {
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return Parse(rows, now.Year())
}

// Parse validates a header row plus data rows. Blank rows are skipped.
func Parse(rows [][]string, currentYear int) ([]model.Record, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	var (
		records    []model.Record
		violations []Violation
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec, vs := parseRow(i+2, pad(row, len(Headers)), currentYear)
		violations = append(violations, vs...)
		if len(vs) == 0 {
			records = append(records, rec)
		}
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return records, nil
}

func checkHeader(header []string) error {
	got := make([]string, 0, len(header))
	for _, h := range header {
		got = append(got, strings.TrimSpace(h))
	}
	for len(got) > 0 && got[len(got)-1] == "" {
		got = got[:len(got)-1]
	}
	if len(got) != len(Headers) {
		return fmt.Errorf("%w: se esperaban %d columnas, se encontraron %d", ErrHeader, len(Headers), len(got))
	}
	for i, want := range Headers {
		if got[i] != want {
			return fmt.Errorf("%w: columna %d debe ser %q, se encontró %q", ErrHeader, i+1, want, got[i])
		}
	}
	return nil
}

func parseRow(rowNum int, row []string, currentYear int) (model.Record, []Violation) {
	var vs []Violation
	bad := func(col, format string, args ...any) {
		vs = append(vs, Violation{Row: rowNum, Column: col, Message: fmt.Sprintf(format, args...)})
	}

	rec := model.Record{
		Row:      rowNum,
		FullName: strings.TrimSpace(row[2]),
		Cells:    append([]string(nil), row[:len(Headers)]...),
	}

	docType, ok := model.ParseDocumentType(row[0])
	if !ok {
		bad(ColDocumentType, "tipo %q no válido", strings.TrimSpace(row[0]))
	}
	rec.DocumentType = docType

	rec.DocumentNumber = normalizeNumber(row[1])
	if rec.DocumentNumber == "" {
		bad(ColDocumentNumber, "vacío")
	}

	day, ok := parseInt(row[3])
	if !ok || day < 1 || day > 31 {
		bad(ColDay, "%q fuera de rango (1-31)", strings.TrimSpace(row[3]))
	}
	rec.Day = day

	month, ok := model.ParseMonth(row[4])
	if !ok {
		bad(ColMonth, "mes %q no reconocido", strings.TrimSpace(row[4]))
	}
	rec.Month = month

	year, ok := parseInt(row[5])
	if !ok || year < minYear || year > currentYear {
		bad(ColYear, "%q fuera de rango (%d-%d)", strings.TrimSpace(row[5]), minYear, currentYear)
	}
	rec.Year = year

	return rec, vs
}

// normalizeNumber strips spaces and a trailing ".0" left by numeric cells.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	return strings.TrimSuffix(s, ".0")
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func pad(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}

// FitColumns sizes every column of the sheet to its longest cell plus
// padding. The names column gets a fixed width.
func FitColumns(f *excelize.File, sheetName string) error {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}
	widths := map[int]int{}
	names := -1
	for r, row := range rows {
		for c, cell := range row {
			if r == 0 && strings.TrimSpace(cell) == ColFullName {
				names = c
			}
			if n := utf8.RuneCountInString(cell); n > widths[c] {
				widths[c] = n
			}
		}
	}
	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		width := float64(w + widthPadding)
		if c == names {
			width = nameColumnWidth
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}
	return nil
}
