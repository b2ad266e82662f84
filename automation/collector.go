package automation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/fsutil"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
)

// certificatePrefix starts the name the portal gives every downloaded certificate.
const certificatePrefix = "Certificado estado cedula "

// Collector waits for a record's certificate to land in the browser's
// download directory and moves it into the batch destination.
type Collector struct {
	downloadDir  string
	pollInterval time.Duration
	maxPolls     int
	log          *slog.Logger
}

// NewCollector polls downloadDir every pollInterval, at most maxPolls times per record.
func NewCollector(downloadDir string, pollInterval time.Duration, maxPolls int) *Collector {
	if maxPolls < 1 {
		maxPolls = 1
	}
	return &Collector{
		downloadDir:  downloadDir,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		log:          logger.New("collector"),
	}
}

// Pattern is the glob matching the certificate downloaded for rec. It also
// matches longer numbers sharing the prefix; ownedBy filters those out.
func Pattern(rec model.Record) string {
	return certificatePrefix + escapeGlob(rec.DocumentNumber) + "*.pdf"
}

// ownedBy reports whether the downloaded file name belongs to number and
// not to a longer document number that starts with it.
func ownedBy(name, number string) bool {
	rest, ok := strings.CutPrefix(name, certificatePrefix+number)
	if !ok {
		return false
	}
	return rest == "" || rest[0] < '0' || rest[0] > '9'
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AwaitAndRelocate polls for the certificate of rec. When it shows up it is
// moved into destination (left in place if destination is empty) and true
// is returned. Running out of polls returns false and touches nothing.
func (c *Collector) AwaitAndRelocate(ctx context.Context, rec model.Record, destination string) (bool, error) {
	pattern := filepath.Join(c.downloadDir, Pattern(rec))

	for poll := 1; poll <= c.maxPolls; poll++ {
		matches, err := c.scan(pattern, rec.DocumentNumber)
		if err != nil {
			return false, err
		}
		if len(matches) > 0 {
			for _, src := range matches {
				if destination == "" {
					continue
				}
				dst := filepath.Join(destination, filepath.Base(src))
				if err := fsutil.Move(src, dst); err != nil {
					return false, fmt.Errorf("failed to move certificate: %w", err)
				}
				c.log.Debug("certificate moved", "row", rec.Row, "to", dst)
			}
			return true, nil
		}
		if poll == c.maxPolls {
			break
		}
		if err := wait(ctx, c.pollInterval); err != nil {
			return false, err
		}
	}

	c.log.Warn("certificate did not arrive", "row", rec.Row, "document", rec.DocumentNumber, "polls", c.maxPolls)
	return false, nil
}

func (c *Collector) scan(pattern, number string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan downloads: %w", err)
	}
	owned := matches[:0]
	for _, m := range matches {
		if ownedBy(filepath.Base(m), number) {
			owned = append(owned, m)
		}
	}
	return owned, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
