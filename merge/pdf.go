package merge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PlainText extracts page text with ledongthuc/pdf, one line per baseline.
type PlainText struct{}

func (PlainText) PageTexts(ctx context.Context, path string) (texts []string, err error) {
	// The reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	n := r.NumPage()
	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, pageLines(p.Content().Text))
	}
	return texts, nil
}

// rowTolerance is how far apart, in points, two glyphs may sit vertically
// and still belong to the same line.
const rowTolerance = 2.0

// pageLines rebuilds the lines of a page from its positioned glyphs: top to
// bottom, then left to right. A text object that moves between lines with
// Td or T* still yields one line per baseline.
func pageLines(glyphs []pdf.Text) string {
	sorted := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "\n" || g.S == "" {
			continue
		}
		sorted = append(sorted, g)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	for _, g := range sorted {
		if n := len(rows); n > 0 && math.Abs(rows[n-1][0].Y-g.Y) <= rowTolerance {
			rows[n-1] = append(rows[n-1], g)
			continue
		}
		rows = append(rows, []pdf.Text{g})
	}

	var b strings.Builder
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		for i, g := range row {
			// Runs set apart on one line are joined with a space.
			if i > 0 {
				prev := row[i-1]
				if g.X-(prev.X+prev.W) > g.FontSize/4 && prev.S != " " && g.S != " " {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PDFCPU assembles pages with pdfcpu: each run of pages from the same source
// is trimmed out of it and the runs are then merged in order.
type PDFCPU struct{}

func (PDFCPU) Assemble(ctx context.Context, pages []Page, output string) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	var parts []io.ReadSeeker
	for start := 0; start < len(pages); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start
		var selected []string
		for end < len(pages) && pages[end].Source == pages[start].Source {
			selected = append(selected, strconv.Itoa(pages[end].Number))
			end++
		}

		part, err := trim(pages[start].Source, selected)
		if err != nil {
			return err
		}
		parts = append(parts, part)
		start = end
	}

	tmp := output + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if len(parts) == 1 {
		_, err = io.Copy(out, parts[0])
	} else {
		err = api.MergeRaw(parts, out, false, nil)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(output), err)
	}
	return os.Rename(tmp, output)
}

func trim(source string, pages []string) (io.ReadSeeker, error) {
	in, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := api.Trim(in, &buf, []string{strings.Join(pages, ",")}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract pages %v of %s: %w", pages, filepath.Base(source), err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
