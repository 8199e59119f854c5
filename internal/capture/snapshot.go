// Package capture renders the /week page to a PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"blockplan/internal/fsutil"
	appLog "blockplan/internal/log"
)

// Defaults sized for a seven-column week at the default grid geometry.
const (
	DefaultWidth   = 1400
	DefaultHeight  = 1500
	DefaultTimeout = 30 * time.Second
	DefaultSettle  = 300 * time.Millisecond
)

// readySelector is set on <body> once the week template has rendered.
const readySelector = `[data-ready="true"]`

var (
	ErrNoURL    = errors.New("capture: URL is required")
	ErrNoOutput = errors.New("capture: OutputPath is required")
)

// Options defines one snapshot.
type Options struct {
	// BaseURL of a running server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Week is any day of the week to render; zero means the server's today.
	Week time.Time

	OutputPath string

	// Width and Height of the viewport in pixels.
	Width  int
	Height int

	Timeout time.Duration
	// Settle is an extra delay after the ready marker for final paints.
	Settle time.Duration
}

// normalize fills defaults and validates required fields.
func (o Options) normalize() (Options, error) {
	if o.BaseURL == "" {
		return o, ErrNoURL
	}
	if o.OutputPath == "" {
		return o, ErrNoOutput
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	} else if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	return o, nil
}

// PageURL returns the /week URL for the options.
func (o Options) PageURL() (string, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("capture: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("capture: base URL %q needs scheme and host", o.BaseURL)
	}
	u = u.JoinPath("week")
	if !o.Week.IsZero() {
		u.RawQuery = url.Values{"start": {o.Week.Format("2006-01-02")}}.Encode()
	}
	return u.String(), nil
}

// WeekPNG navigates headless Chromium to the /week page, waits for the
// ready marker and writes a full-page screenshot to opts.OutputPath.
func WeekPNG(parent context.Context, opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}
	target, err := opts.PageURL()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := fsutil.WriteFileAtomic(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("week snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
