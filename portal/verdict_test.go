package portal

import (
	"testing"

	"github.com/Yair4430/CertiGranja-2.0/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		label      Label
		wantStatus model.Status
		wantRetry  bool
		wantObs    string
	}{
		{
			name:       "label absent",
			label:      Label{},
			wantStatus: model.StatusSuccess,
			wantObs:    model.ObservationSuccess,
		},
		{
			name:       "label empty",
			label:      Label{Present: true, Text: "   "},
			wantStatus: model.StatusSuccess,
		},
		{
			name:       "document not found",
			label:      Label{Present: true, Text: "El número de documento no se encuentra en la base de datos"},
			wantStatus: model.StatusRejected,
			wantObs:    model.ObservationRejected,
		},
		{
			name:      "captcha",
			label:     Label{Present: true, Text: "Error validando el Captcha"},
			wantRetry: true,
		},
		{
			name:       "special link",
			label:      Label{Present: true, Text: "Consulte aquí", Href: "https://portal.test/otro"},
			wantStatus: model.StatusSpecialLink,
		},
		{
			name:       "anomaly",
			label:      Label{Present: true, Text: "Cédula cancelada por muerte"},
			wantStatus: model.StatusAnomaly,
			wantObs:    "NOVEDAD: Cédula cancelada por muerte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.label)
			if v.Retry != tt.wantRetry {
				t.Fatalf("Expected retry %v, got %v", tt.wantRetry, v.Retry)
			}
			if tt.wantRetry {
				if v.Reason != ReasonCaptcha {
					t.Errorf("Expected captcha reason, got %q", v.Reason)
				}
				return
			}
			if v.Outcome.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, v.Outcome.Status)
			}
			if tt.wantObs != "" && v.Outcome.Observation != tt.wantObs {
				t.Errorf("Expected observation %q, got %q", tt.wantObs, v.Outcome.Observation)
			}
		})
	}
}

func TestNotFoundNeverSucceeds(t *testing.T) {
	for _, text := range []string{
		"El número de documento no se encuentra en la base de datos",
		"  el número de documento NO SE ENCUENTRA EN LA BASE DE DATOS.  ",
	} {
		if got := Classify(Label{Present: true, Text: text}).Outcome.Status; got != model.StatusRejected {
			t.Errorf("Classify(%q) = %s, want REJECTED", text, got)
		}
	}
}

func TestVerdictTerminal(t *testing.T) {
	tests := []struct {
		v    Verdict
		want bool
	}{
		{retry(ReasonCaptcha), true},
		{Verdict{Outcome: model.Rejected()}, true},
		{Verdict{Outcome: model.SpecialLink("")}, true},
		{Verdict{Outcome: model.Success()}, false},
		{Verdict{Outcome: model.Anomaly("x")}, false},
	}
	for _, tt := range tests {
		if got := tt.v.terminal(); got != tt.want {
			t.Errorf("terminal(%+v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
