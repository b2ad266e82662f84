package merge

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Yair4430/CertiGranja-2.0/config"
)

// PagePredicate decides something about a page from its extracted text.
type PagePredicate func(text string) bool

// KeyFunc extracts the identity key of a page, or "" when it carries none.
type KeyFunc func(text string) string

// Rules are the heuristics that tell a real certificate page from filler.
type Rules struct {
	MinTextLength   int
	RequiredMarkers []string
	MinMarkers      int
	MinContentLines int
	// MinLineChars is the trimmed length a line must exceed to count as content.
	MinLineChars  int
	KeyPattern    *regexp.Regexp
	Indicators    []string
	MinIndicators int
}

var defaultKeyPattern = regexp.MustCompile(`Cédula de Ciudadanía:\s+([\d.]+)`)

func DefaultRules() Rules {
	return Rules{
		MinTextLength: 50,
		RequiredMarkers: []string{
			"REGISTRADURÍA NACIONAL",
			"CERTIFICA",
			"Cédula de Ciudadanía",
			"Estado:",
		},
		MinMarkers:      3,
		MinContentLines: 5,
		MinLineChars:    10,
		KeyPattern:      defaultKeyPattern,
		Indicators: []string{
			"REGISTRADURÍA NACIONAL",
			"CERTIFICA",
			"documento de identificación",
			"EDISON QUIÑONES SILVA",
			"Coordinador Grupo Servicio",
			"Para verificar la autenticidad",
		},
		MinIndicators: 2,
	}
}

// RulesFromConfig overlays the configured values on DefaultRules.
func RulesFromConfig(cfg config.MergeConfig) (Rules, error) {
	r := DefaultRules()
	if cfg.MinTextLength > 0 {
		r.MinTextLength = cfg.MinTextLength
	}
	if len(cfg.RequiredMarkers) > 0 {
		r.RequiredMarkers = cfg.RequiredMarkers
	}
	if cfg.MinMarkers > 0 {
		r.MinMarkers = cfg.MinMarkers
	}
	if cfg.MinContentLines > 0 {
		r.MinContentLines = cfg.MinContentLines
	}
	if cfg.MinLineChars > 0 {
		r.MinLineChars = cfg.MinLineChars
	}
	if cfg.KeyPattern != "" {
		re, err := regexp.Compile(cfg.KeyPattern)
		if err != nil {
			return Rules{}, fmt.Errorf("invalid key pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return Rules{}, fmt.Errorf("key pattern %q has no capture group", cfg.KeyPattern)
		}
		r.KeyPattern = re
	}
	if len(cfg.Indicators) > 0 {
		r.Indicators = cfg.Indicators
	}
	if cfg.MinIndicators > 0 {
		r.MinIndicators = cfg.MinIndicators
	}
	return r, nil
}

// HasContent reports whether text is long enough, carries enough of the
// required markers and has enough substantial lines.
func (r Rules) HasContent(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < r.MinTextLength {
		return false
	}
	if countContained(trimmed, r.RequiredMarkers) < r.MinMarkers {
		return false
	}

	lines := 0
	for _, line := range strings.Split(trimmed, "\n") {
		if utf8.RuneCountInString(strings.TrimSpace(line)) > r.MinLineChars {
			lines++
		}
	}
	return lines >= r.MinContentLines
}

// Key returns the document number of the page with separators removed.
func (r Rules) Key(text string) string {
	if r.KeyPattern == nil {
		return ""
	}
	m := r.KeyPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.ReplaceAll(m[1], ".", "")
}

// LooksLikeCertificate is the fallback for pages without a key.
func (r Rules) LooksLikeCertificate(text string) bool {
	return countContained(text, r.Indicators) >= r.MinIndicators
}

func countContained(text string, needles []string) int {
	n := 0
	for _, s := range needles {
		if strings.Contains(text, s) {
			n++
		}
	}
	return n
}
