// Package merge combines the certificates of a batch into one document,
// keeping a single page per document number.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
)

// ErrNoPages is returned when no page survives filtering. Any previous
// merged document in the folder is removed and no output is written.
var ErrNoPages = errors.New("no certificate pages to merge")

// Page is one page of a collected certificate.
type Page struct {
	Source string
	Number int // 1-based
	Text   string
	Key    string
}

// TextExtractor returns the text of every page of a document, in order.
type TextExtractor interface {
	PageTexts(ctx context.Context, path string) ([]string, error)
}

// Assembler writes the given pages, in order, as a single document.
type Assembler interface {
	Assemble(ctx context.Context, pages []Page, output string) error
}

// Report summarises one merge.
type Report struct {
	Output     string   `json:"output"`
	Included   int      `json:"included"`
	UniqueKeys int      `json:"unique_keys"`
	Duplicates int      `json:"duplicates"`
	Dropped    int      `json:"dropped"`
	Unreadable []string `json:"unreadable,omitempty"`
	Pages      []Page   `json:"-"`
}

type Merger struct {
	extractor  TextExtractor
	assembler  Assembler
	outputName string

	// HasContent filters out pages with too little certificate content.
	HasContent PagePredicate
	// Key extracts the identity key used for deduplication.
	Key KeyFunc
	// Fallback admits keyless pages that still look like certificates.
	Fallback PagePredicate

	log *slog.Logger
}

func New(extractor TextExtractor, assembler Assembler, rules Rules, outputName string) *Merger {
	return &Merger{
		extractor:  extractor,
		assembler:  assembler,
		outputName: outputName,
		HasContent: rules.HasContent,
		Key:        rules.Key,
		Fallback:   rules.LooksLikeCertificate,
		log:        logger.New("merge"),
	}
}

// Merge reads every PDF in dir, in name order, and writes the surviving pages
// to dir/outputName. A previous merged file in dir is never read back.
func (m *Merger) Merge(ctx context.Context, dir string) (*Report, error) {
	sources, err := m.sources(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Output: filepath.Join(dir, m.outputName)}
	seen := make(map[string]struct{})

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		texts, err := m.extractor.PageTexts(ctx, src)
		if err != nil {
			m.log.Warn("skipping unreadable document", "file", filepath.Base(src), "error", err)
			report.Unreadable = append(report.Unreadable, filepath.Base(src))
			continue
		}

		for i, text := range texts {
			page := Page{Source: src, Number: i + 1, Text: text}

			if !m.HasContent(text) {
				m.log.Debug("page dropped for insufficient content", "file", filepath.Base(src), "page", page.Number)
				report.Dropped++
				continue
			}

			page.Key = m.Key(text)
			switch {
			case page.Key != "":
				if _, dup := seen[page.Key]; dup {
					m.log.Debug("duplicate certificate skipped", "key", page.Key)
					report.Duplicates++
					continue
				}
				seen[page.Key] = struct{}{}
			case m.Fallback(text):
				m.log.Debug("keyless certificate page kept", "file", filepath.Base(src), "page", page.Number)
			default:
				report.Dropped++
				continue
			}
			report.Pages = append(report.Pages, page)
		}
	}

	report.Included = len(report.Pages)
	report.UniqueKeys = len(seen)
	if report.Included == 0 {
		// The merged document is rebuilt on every run; never leave a stale one behind.
		if err := os.Remove(report.Output); err != nil && !os.IsNotExist(err) {
			return report, fmt.Errorf("failed to remove previous merged document: %w", err)
		}
		return report, ErrNoPages
	}

	if err := m.assembler.Assemble(ctx, report.Pages, report.Output); err != nil {
		return report, fmt.Errorf("failed to assemble merged document: %w", err)
	}

	m.log.Info("certificates merged", "output", report.Output, "included", report.Included,
		"unique", report.UniqueKeys, "duplicates", report.Duplicates, "dropped", report.Dropped)
	return report, nil
}

func (m *Merger) sources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") || name == m.outputName {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}
