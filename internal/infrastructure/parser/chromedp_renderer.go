package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

const (
	navigateTimeout = 20 * time.Second
	markerTimeout   = 10 * time.Second
	tabTimeout      = 5 * time.Second
	tableTimeout    = 10 * time.Second
	tabSettleDelay  = 2 * time.Second

	contentMarker = "div.card"
	resultsTable  = "div.card.-mx-content"
)

// BrowserOptions configures the headless browser sessions.
type BrowserOptions struct {
	ExecPath    string
	UserAgent   string
	MaxSessions int
}

// ChromeRenderer runs every page in its own headless Chrome process.
type ChromeRenderer struct {
	opts     BrowserOptions
	sessions *semaphore.Weighted
	logger   *slog.Logger
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer limits concurrent browser processes to MaxSessions (default 1).
func NewChromeRenderer(opts BrowserOptions, log *slog.Logger) *ChromeRenderer {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = userAgent
	}
	return &ChromeRenderer{
		opts:     opts,
		sessions: semaphore.NewWeighted(int64(opts.MaxSessions)),
		logger:   log,
	}
}

// Render loads pageURL, tries to click the tabText tab and returns the resulting DOM.
// Every wait is bounded; a missed wait is reported through Page, not as an error.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL, tabText string) (Page, error) {
	if err := r.sessions.Acquire(ctx, 1); err != nil {
		return Page{}, fmt.Errorf("acquire browser session: %w", err)
	}
	defer r.sessions.Release(1)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// The first Run owns the browser lifetime, so it must not carry a timeout.
	if err := chromedp.Run(browserCtx); err != nil {
		return Page{}, fmt.Errorf("start browser: %w", err)
	}

	var page Page
	if err := runWithTimeout(browserCtx, navigateTimeout,
		chromedp.Navigate(pageURL),
		chromedp.Title(&page.Title),
	); err != nil {
		return Page{}, fmt.Errorf("navigate: %w", err)
	}

	if err := runWithTimeout(browserCtx, markerTimeout, chromedp.WaitReady(contentMarker, chromedp.ByQuery)); err != nil {
		r.debug("content marker absent", "url", pageURL, "marker", contentMarker, "error", err)
	}

	tabSelector := fmt.Sprintf("//a[span[text()='%s']]", tabText)
	if err := runWithTimeout(browserCtx, tabTimeout, chromedp.Click(tabSelector, chromedp.BySearch, chromedp.NodeVisible)); err == nil {
		page.TabClicked = true
		_ = chromedp.Run(browserCtx, chromedp.Sleep(tabSettleDelay))
	} else {
		r.debug("tab absent", "url", pageURL, "tab", tabText, "error", err)
	}

	if err := runWithTimeout(browserCtx, tableTimeout, chromedp.WaitReady(resultsTable, chromedp.ByQuery)); err != nil {
		r.debug("results table absent", "url", pageURL, "error", err)
	}

	if err := runWithTimeout(browserCtx, markerTimeout,
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	); err != nil {
		return Page{}, fmt.Errorf("capture document: %w", err)
	}

	return page, nil
}

func (r *ChromeRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	return opts
}

func runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := chromedp.Run(tctx, actions...)
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

func (r *ChromeRenderer) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
