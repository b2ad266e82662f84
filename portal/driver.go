// Package portal drives the certificate portal through a single browser
// session.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yair4430/CertiGranja-2.0/config"
	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrSessionLost is returned when the browser session can no longer be used.
// The batch must stop; it is never retried.
var ErrSessionLost = errors.New("portal session lost")

// Driver submits one record at a time to the portal.
type Driver interface {
	Submit(ctx context.Context, rec model.Record) (Verdict, error)
	Close() error
}

// Opener starts a driver session. The service layer opens one per batch.
type Opener interface {
	Open(ctx context.Context, downloadDir string) (Driver, error)
}

// Page elements of the portal.
const (
	problemMarkerX = `//h3[text()='Al parecer se presentó algun problema!']`
	entryLinkX     = `//a[text()='Expedición Certificado']`
	numberField    = "#ContentPlaceHolder1_TextBox1"
	daySelect      = "#ContentPlaceHolder1_DropDownList1"
	monthSelect    = "#ContentPlaceHolder1_DropDownList2"
	yearSelect     = "#ContentPlaceHolder1_DropDownList3"
	thirdPartyID   = "#ContentPlaceHolder1_TextBox2"
	submitButton   = "#ContentPlaceHolder1_Button1"
	resultLabel    = "#ContentPlaceHolder1_Label11"
)

// Options configures a RodDriver.
type Options struct {
	URL          string
	ThirdPartyID string
	Headless     bool
	ChromeBin    string
	MarkerWait   time.Duration
	FieldWait    time.Duration
	SettleDelay  time.Duration
	LabelWait    time.Duration
	Navigation   time.Duration
}

// OptionsFromConfig copies the portal section of the configuration.
func OptionsFromConfig(cfg config.PortalConfig) Options {
	return Options{
		URL:          cfg.URL,
		ThirdPartyID: cfg.ThirdPartyID,
		Headless:     cfg.Headless,
		ChromeBin:    cfg.ChromeBin,
		MarkerWait:   cfg.MarkerWait(),
		FieldWait:    cfg.FieldWait(),
		SettleDelay:  cfg.SettleDelay(),
		LabelWait:    cfg.LabelWait(),
		Navigation:   cfg.Navigation(),
	}
}

// RodOpener launches Chrome through go-rod.
type RodOpener struct {
	Options Options
}

// Open starts a new browser session whose downloads land in downloadDir.
func (o RodOpener) Open(ctx context.Context, downloadDir string) (Driver, error) {
	d, err := Open(ctx, o.Options, downloadDir)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RodDriver owns one Chrome instance and one page.
type RodDriver struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	log      *slog.Logger
}

// Open launches Chrome, routes its downloads to downloadDir and opens a page.
func Open(ctx context.Context, opts Options, downloadDir string) (*RodDriver, error) {
	if opts.URL == "" {
		return nil, errors.New("portal url is not configured")
	}

	l := launcher.New().Headless(opts.Headless)
	if opts.ChromeBin != "" {
		l = l.Bin(opts.ChromeBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	d := &RodDriver{opts: opts, launcher: l, browser: browser, log: logger.New("portal")}

	err = proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: downloadDir,
	}.Call(browser)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to set download directory: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	d.page = page

	d.log.Info("portal session opened", "url", opts.URL, "download_dir", downloadDir, "headless", opts.Headless)
	return d, nil
}

// Close shuts the page and the browser down. It is safe to call twice.
func (d *RodDriver) Close() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
	d.log.Info("portal session closed")
	return err
}

// Submit runs the form protocol for one record.
func (d *RodDriver) Submit(ctx context.Context, rec model.Record) (Verdict, error) {
	if d.page == nil {
		return Verdict{}, fmt.Errorf("%w: driver is closed", ErrSessionLost)
	}
	page := d.page.Context(ctx)

	if err := page.Timeout(d.opts.Navigation).Navigate(d.opts.URL); err != nil {
		return Verdict{}, d.fatal(ctx, "navigate", err)
	}
	if err := page.Timeout(d.opts.Navigation).WaitLoad(); err != nil {
		return Verdict{}, d.fatal(ctx, "wait load", err)
	}

	_, found, err := d.lookup(ctx, d.opts.MarkerWait, problemMarkerX, true)
	if err != nil {
		return Verdict{}, d.fatal(ctx, "problem marker", err)
	}
	if found {
		d.log.Warn("portal reported a page problem", "row", rec.Row)
		return Verdict{Outcome: model.PageError("")}, nil
	}

	if err := d.fill(ctx, rec); err != nil {
		if d.transient(ctx, err) {
			return retry(ReasonForm), nil
		}
		return Verdict{}, d.fatal(ctx, "fill form", err)
	}

	if err := sleep(ctx, d.opts.SettleDelay); err != nil {
		return Verdict{}, err
	}

	label, err := d.readLabel(ctx, false)
	if err != nil {
		return Verdict{}, d.fatal(ctx, "read label", err)
	}
	if v := Classify(label); v.terminal() {
		return v, nil
	}

	// A second press on the generate button triggers the download.
	if err := d.click(ctx, submitButton, false); err != nil {
		if d.transient(ctx, err) {
			return retry(ReasonForm), nil
		}
		return Verdict{}, d.fatal(ctx, "request download", err)
	}

	label, err = d.readLabel(ctx, true)
	if err != nil {
		return Verdict{}, d.fatal(ctx, "read label", err)
	}
	return Classify(label), nil
}

func (d *RodDriver) fill(ctx context.Context, rec model.Record) error {
	if err := d.click(ctx, entryLinkX, true); err != nil {
		return err
	}
	if err := d.input(ctx, numberField, rec.DocumentNumber); err != nil {
		return err
	}
	if err := d.choose(ctx, daySelect, rec.DayText()); err != nil {
		return err
	}
	if err := d.choose(ctx, monthSelect, rec.MonthText()); err != nil {
		return err
	}
	if err := d.choose(ctx, yearSelect, rec.YearText()); err != nil {
		return err
	}
	if err := d.input(ctx, thirdPartyID, d.opts.ThirdPartyID); err != nil {
		return err
	}
	return d.click(ctx, submitButton, false)
}

// lookup waits up to wait for the element. Not finding it is not an error.
func (d *RodDriver) lookup(ctx context.Context, wait time.Duration, selector string, xpath bool) (*rod.Element, bool, error) {
	el, err := d.element(ctx, wait, selector, xpath)
	if err != nil {
		if d.transient(ctx, err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return el, true, nil
}

func (d *RodDriver) element(ctx context.Context, wait time.Duration, selector string, xpath bool) (*rod.Element, error) {
	p := d.page.Context(ctx).Timeout(wait)
	var (
		el  *rod.Element
		err error
	)
	if xpath {
		el, err = p.ElementX(selector)
	} else {
		el, err = p.Element(selector)
	}
	if err != nil {
		return nil, err
	}
	return el.Context(ctx), nil
}

func (d *RodDriver) click(ctx context.Context, selector string, xpath bool) error {
	el, err := d.element(ctx, d.opts.FieldWait, selector, xpath)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) input(ctx context.Context, selector, text string) error {
	el, err := d.element(ctx, d.opts.FieldWait, selector, false)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (d *RodDriver) choose(ctx context.Context, selector, text string) error {
	el, err := d.element(ctx, d.opts.FieldWait, selector, false)
	if err != nil {
		return err
	}
	return el.Select([]string{text}, true, rod.SelectorTypeText)
}

// readLabel reads the result label. With visibleOnly, a hidden label counts
// as absent.
func (d *RodDriver) readLabel(ctx context.Context, visibleOnly bool) (Label, error) {
	el, found, err := d.lookup(ctx, d.opts.LabelWait, resultLabel, false)
	if err != nil || !found {
		return Label{}, err
	}
	if visibleOnly {
		visible, err := el.Visible()
		if err != nil {
			return Label{}, err
		}
		if !visible {
			return Label{}, nil
		}
	}
	text, err := el.Text()
	if err != nil {
		return Label{}, err
	}
	label := Label{Present: true, Text: strings.TrimSpace(text)}
	if links, err := el.Elements("a"); err == nil && len(links) > 0 {
		if href, err := links.First().Attribute("href"); err == nil && href != nil {
			label.Href = *href
		}
	}
	return label, nil
}

// transient reports whether err is an element wait running out rather than
// a broken session or a cancelled run.
func (d *RodDriver) transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var notFound *rod.ElementNotFoundError
	return errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound)
}

func (d *RodDriver) fatal(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	d.log.Error("portal session failed", "step", step, "error", err)
	return fmt.Errorf("%w: %s: %w", ErrSessionLost, step, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
