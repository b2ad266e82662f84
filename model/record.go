package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DocumentType is the identity document kind accepted by the portal.
type DocumentType string

const (
	DocumentCC  DocumentType = "CC"  // cédula de ciudadanía
	DocumentTI  DocumentType = "TI"  // tarjeta de identidad
	DocumentCE  DocumentType = "CE"  // cédula de extranjería
	DocumentPPT DocumentType = "PPT" // permiso por protección temporal
)

// DocumentTypes lists the accepted document types in template order.
var DocumentTypes = []DocumentType{DocumentCC, DocumentTI, DocumentCE, DocumentPPT}

// ParseDocumentType accepts a type code regardless of case and surrounding spaces.
func ParseDocumentType(s string) (DocumentType, bool) {
	code := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range DocumentTypes {
		if t == code {
			return t, true
		}
	}
	return "", false
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ParseMonth resolves a Spanish month name. "setiembre" is accepted as an
// alias of septiembre.
func ParseMonth(s string) (time.Month, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "setiembre" {
		return time.September, true
	}
	for i, m := range monthNames {
		if m == name {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// MonthName returns the month as the portal's drop-down spells it ("Enero").
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	name := monthNames[m-1]
	return strings.ToUpper(name[:1]) + name[1:]
}

// Record is one validated row of the input sheet. Row is the 1-based
// spreadsheet row it came from.
type Record struct {
	Row            int          `json:"row"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
	FullName       string       `json:"full_name"`
	Day            int          `json:"day"`
	Month          time.Month   `json:"month"`
	Year           int          `json:"year"`
	// Cells holds the row as uploaded, one entry per input column, so the
	// results workbook can echo it unchanged.
	Cells []string `json:"-"`
}

// DayText is the day zero-padded to two digits.
func (r Record) DayText() string {
	return fmt.Sprintf("%02d", r.Day)
}

func (r Record) MonthText() string {
	return MonthName(r.Month)
}

func (r Record) YearText() string {
	return strconv.Itoa(r.Year)
}
