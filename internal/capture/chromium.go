package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "entcal/internal/log"
)

// Default capture parameters for the month page.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30
)

// ReadySelector matches the month page root once it has rendered.
const ReadySelector = `[data-ready="true"]`

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar/venue/<id>".
	URL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration

	// Username and Password, when set, are sent as HTTP Basic Auth.
	Username string
	Password string
}

func (o *CaptureOptions) applyDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
}

// CaptureMonthPNG launches a headless Chromium instance via chromedp,
// navigates to opts.URL, waits for the page to signal that rendering is
// complete, and returns a full-page PNG screenshot.
//
// Rendering-complete condition:
//   - The month page root element exposes a data-ready attribute:
//     <main data-ready="true" ...>
//   - This function will wait until ReadySelector is visible before
//     taking the screenshot.
func CaptureMonthPNG(parentCtx context.Context, opts CaptureOptions) ([]byte, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("capture: URL is required")
	}
	opts.applyDefaults()

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire capture sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if opts.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}),
		)
	}
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(250*time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	appLog.Debug("capture: month page captured", "url", opts.URL, "bytes", len(png), "duration", time.Since(start))
	return png, nil
}

// CaptureMonthToFile captures opts.URL and writes the PNG to path.
func CaptureMonthToFile(ctx context.Context, opts CaptureOptions, path string) error {
	if path == "" {
		return fmt.Errorf("capture: output path is required")
	}
	png, err := CaptureMonthPNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}

// Chromium captures pages with fixed options; it satisfies the web
// package's Capturer.
type Chromium struct {
	Options CaptureOptions
}

// Capture renders url with c.Options.
func (c Chromium) Capture(ctx context.Context, url string) ([]byte, error) {
	opts := c.Options
	opts.URL = url
	return CaptureMonthPNG(ctx, opts)
}
