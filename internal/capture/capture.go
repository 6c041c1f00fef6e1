// Package capture renders the /calendar page in headless Chromium and
// saves it as a PNG preview.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"cyclical/internal/atomicfile"
	"cyclical/internal/calendar"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 600
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the page root once the grid is rendered.
	ReadySelector = `[data-ready="true"]`
)

// Options defines parameters for a capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?month=2026-03".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Width and Height are the viewport size in pixels. Zero uses the
	// defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Username and Password are sent as Basic Auth when both are set.
	Username string
	Password string
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
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
	return o, nil
}

// tasks builds the chromedp action list. buf receives the screenshot.
func (o Options) tasks(buf *[]byte) chromedp.Tasks {
	var tasks chromedp.Tasks
	if o.Username != "" && o.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}),
		)
	}
	return append(tasks,
		chromedp.EmulateViewport(int64(o.Width), int64(o.Height)),
		chromedp.Navigate(o.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(buf, 100),
	)
}

// CapturePNG navigates to opts.URL, waits for ReadySelector and writes a
// full-page screenshot to opts.OutputPath.
func CapturePNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	if err := chromedp.Run(ctx, opts.tasks(&png)); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if len(png) == 0 {
		return errors.New("capture: empty screenshot")
	}
	if err := atomicfile.Write(opts.OutputPath, png, ".cyclical-preview-*.tmp"); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}

// PageURL returns the /calendar URL for a server listening on listen.
// Wildcard hosts are replaced by loopback. A zero month leaves the page on
// its default month.
func PageURL(listen string, month calendar.Day) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		host, port = listen, ""
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}

	u := url.URL{Scheme: "http", Host: host, Path: "/calendar"}
	if !month.IsZero() {
		u.RawQuery = url.Values{"month": {fmt.Sprintf("%04d-%02d", month.Year, int(month.Month))}}.Encode()
	}
	return u.String()
}
