package model

import "fmt"

// Status classifies how a record's submission ended.
type Status string

const (
	StatusSuccess     Status = "SUCCESS"
	StatusAnomaly     Status = "ANOMALY"
	StatusRejected    Status = "REJECTED"
	StatusPageError   Status = "PAGE_ERROR"
	StatusSpecialLink Status = "SPECIAL_LINK"
)

// Observation texts written to the results sheet.
const (
	ObservationSuccess         = "Certificado generado correctamente"
	ObservationRejected        = "Número de documento o fecha de expedición erróneas"
	ObservationPageProblem     = "Se presentó un problema en la página"
	ObservationMissingArtifact = "Certificado no se generó por Error de la pagina"
	ObservationSpecialLink     = "El portal respondió con un enlace especial"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusAnomaly, StatusRejected, StatusPageError, StatusSpecialLink:
		return true
	}
	return false
}

// Outcome is the resolved result of one record.
type Outcome struct {
	Status      Status `json:"status"`
	Observation string `json:"observation"`
}

func Success() Outcome {
	return Outcome{Status: StatusSuccess, Observation: ObservationSuccess}
}

// Anomaly carries the text the portal showed instead of a certificate.
func Anomaly(detail string) Outcome {
	return Outcome{Status: StatusAnomaly, Observation: "NOVEDAD: " + detail}
}

func Rejected() Outcome {
	return Outcome{Status: StatusRejected, Observation: ObservationRejected}
}

// PageError uses detail as the observation, or the generic page problem text
// when detail is empty.
func PageError(detail string) Outcome {
	if detail == "" {
		detail = ObservationPageProblem
	}
	return Outcome{Status: StatusPageError, Observation: detail}
}

func SpecialLink(href string) Outcome {
	if href == "" {
		return Outcome{Status: StatusSpecialLink, Observation: ObservationSpecialLink}
	}
	return Outcome{Status: StatusSpecialLink, Observation: fmt.Sprintf("%s: %s", ObservationSpecialLink, href)}
}

// NeedsArtifact reports whether the outcome is only provisional until a
// downloaded certificate confirms it.
func (o Outcome) NeedsArtifact() bool {
	return o.Status == StatusSuccess || o.Status == StatusAnomaly
}

// Tally counts outcomes per status.
func Tally(outcomes []Outcome) map[Status]int {
	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}
