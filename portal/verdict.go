package portal

import (
	"strings"

	"github.com/Yair4430/CertiGranja-2.0/model"
)

// Texts the portal shows in its result label.
const (
	notFoundText = "no se encuentra en la base de datos"
	captchaText  = "CAPTCHA"
)

// Retry reasons.
const (
	ReasonCaptcha = "captcha"
	ReasonForm    = "form"
)

// Label is what the driver read from the portal's result label.
type Label struct {
	Present bool
	Text    string
	// Href is set when the label carries a hyperlink.
	Href string
}

// Verdict is the driver's classification of one submission. When Retry is
// set, Outcome is meaningless and the same record must be submitted again.
type Verdict struct {
	Outcome model.Outcome
	Retry   bool
	Reason  string
}

func retry(reason string) Verdict {
	return Verdict{Retry: true, Reason: reason}
}

// Classify maps the result label to a verdict. A missing or empty label
// means the portal raised no error.
func Classify(l Label) Verdict {
	text := strings.TrimSpace(l.Text)
	if !l.Present || text == "" {
		return Verdict{Outcome: model.Success()}
	}
	switch {
	case strings.Contains(strings.ToLower(text), notFoundText):
		return Verdict{Outcome: model.Rejected()}
	case strings.Contains(strings.ToUpper(text), captchaText):
		return retry(ReasonCaptcha)
	case l.Href != "":
		return Verdict{Outcome: model.SpecialLink(l.Href)}
	default:
		return Verdict{Outcome: model.Anomaly(text)}
	}
}

// terminal reports whether the first look at the label already settles the
// record, before the certificate download is requested.
func (v Verdict) terminal() bool {
	if v.Retry {
		return true
	}
	switch v.Outcome.Status {
	case model.StatusRejected, model.StatusSpecialLink:
		return true
	}
	return false
}
