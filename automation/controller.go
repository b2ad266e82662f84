// Package automation walks a batch of records through the portal one at a
// time and confirms each certificate download.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Yair4430/CertiGranja-2.0/config"
	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/Yair4430/CertiGranja-2.0/portal"
)

// ErrOutcomeMismatch means a completed run produced a different number of
// outcomes than records.
var ErrOutcomeMismatch = errors.New("outcome count does not match record count")

// Confirmer reports whether a record's certificate arrived, relocating it.
type Confirmer interface {
	AwaitAndRelocate(ctx context.Context, rec model.Record, destination string) (bool, error)
}

// Options bounds the retry loop of a Controller.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	// OnProgress is called after each record resolves.
	OnProgress func(done, total int)
}

// OptionsFromConfig copies the retry settings of the automation section.
func OptionsFromConfig(cfg config.AutomationConfig) Options {
	return Options{
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
		MaxBackoff:   cfg.MaxBackoff(),
	}
}

// Controller resolves records strictly in order against one driver.
type Controller struct {
	driver    portal.Driver
	confirmer Confirmer
	opts      Options
	log       *slog.Logger
}

// NewController wires a controller to one portal session. Every record gets
// at least one attempt.
func NewController(driver portal.Driver, confirmer Confirmer, opts Options) *Controller {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Controller{
		driver:    driver,
		confirmer: confirmer,
		opts:      opts,
		log:       logger.New("automation"),
	}
}

// Run resolves every record and returns one outcome per record, in order.
// If the session is lost midway it returns the outcomes collected so far
// together with the error.
func (c *Controller) Run(ctx context.Context, records []model.Record, destination string) ([]model.Outcome, error) {
	outcomes := make([]model.Outcome, 0, len(records))

	for i, rec := range records {
		out, err := c.resolve(ctx, rec, destination)
		if err != nil {
			c.log.Error("batch aborted", "row", rec.Row, "resolved", len(outcomes), "total", len(records), "error", err)
			return outcomes, fmt.Errorf("row %d: %w", rec.Row, err)
		}
		outcomes = append(outcomes, out)
		c.log.Info("row resolved", "row", rec.Row, "status", out.Status, "progress", fmt.Sprintf("%d/%d", i+1, len(records)))

		if c.opts.OnProgress != nil {
			c.opts.OnProgress(i+1, len(records))
		}
	}

	if len(outcomes) != len(records) {
		return outcomes, fmt.Errorf("%w: %d outcomes for %d records", ErrOutcomeMismatch, len(outcomes), len(records))
	}
	return outcomes, nil
}

// resolve is the two-phase resolution of one record: a provisional verdict
// from the portal, then confirmation of the download when one is expected.
func (c *Controller) resolve(ctx context.Context, rec model.Record, destination string) (model.Outcome, error) {
	provisional, err := c.submit(ctx, rec)
	if err != nil {
		return model.Outcome{}, err
	}
	return c.confirm(ctx, rec, provisional, destination)
}

func (c *Controller) submit(ctx context.Context, rec model.Record) (model.Outcome, error) {
	for attempt := 1; ; attempt++ {
		v, err := c.driver.Submit(ctx, rec)
		if err != nil {
			return model.Outcome{}, err
		}
		if !v.Retry {
			return v.Outcome, nil
		}
		if attempt >= c.opts.MaxAttempts {
			c.log.Warn("retries exhausted", "row", rec.Row, "reason", v.Reason, "attempts", attempt)
			return model.PageError(exhaustedObservation(v.Reason, attempt)), nil
		}

		delay := c.backoff(attempt)
		c.log.Warn("retrying row", "row", rec.Row, "reason", v.Reason, "attempt", attempt, "delay", delay)
		if err := wait(ctx, delay); err != nil {
			return model.Outcome{}, err
		}
	}
}

func (c *Controller) confirm(ctx context.Context, rec model.Record, provisional model.Outcome, destination string) (model.Outcome, error) {
	if !provisional.NeedsArtifact() || c.confirmer == nil {
		return provisional, nil
	}

	arrived, err := c.confirmer.AwaitAndRelocate(ctx, rec, destination)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Outcome{}, ctxErr
		}
		c.log.Error("certificate could not be collected", "row", rec.Row, "error", err)
		arrived = false
	}
	if !arrived {
		return model.PageError(model.ObservationMissingArtifact), nil
	}
	return provisional, nil
}

// backoff doubles the base delay per attempt, capped at MaxBackoff.
func (c *Controller) backoff(attempt int) time.Duration {
	d := c.opts.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.opts.MaxBackoff > 0 && d >= c.opts.MaxBackoff {
			return c.opts.MaxBackoff
		}
	}
	if c.opts.MaxBackoff > 0 && d > c.opts.MaxBackoff {
		return c.opts.MaxBackoff
	}
	return d
}

func exhaustedObservation(reason string, attempts int) string {
	if reason == portal.ReasonCaptcha {
		return fmt.Sprintf("CAPTCHA no superado después de %d intentos", attempts)
	}
	return fmt.Sprintf("El portal no respondió después de %d intentos", attempts)
}
