package willhaben

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"rental-scraper/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session is one browser instance. Every page loaded through it shares
// cookies, so the consent banner is only accepted once.
type Session interface {
	// Load navigates to url, dismisses the consent banner if shown, scrolls
	// the page once to the bottom and returns the rendered markup after
	// readySelector is present.
	Load(ctx context.Context, url, readySelector string) (string, error)
	Close() error
}

// Browser starts sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// ChromeOptions configures ChromeBrowser.
type ChromeOptions struct {
	Headless     bool
	ChromeBin    string
	WaitTimeout  time.Duration
	ScrollPause  time.Duration
	CookieButton string
}

// ChromeBrowser launches a fresh headless Chrome per session via chromedp.
type ChromeBrowser struct {
	opts      ChromeOptions
	bin       string
	allocOpts []chromedp.ExecAllocatorOption
	logger    *utils.Logger
}

// NewChromeBrowser resolves the Chrome binary and prepares allocator flags.
func NewChromeBrowser(opts ChromeOptions, logger *utils.Logger) *ChromeBrowser {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Debug("[browser] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	for name, value := range chromeFlags(opts.Headless) {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	return &ChromeBrowser{opts: opts, bin: chromeBin, allocOpts: allocOpts, logger: logger}
}

// chromeFlags are the command-line switches for every launched browser.
func chromeFlags(headless bool) map[string]interface{} {
	return map[string]interface{}{
		"headless":               headless,
		"disable-gpu":            true,
		"no-sandbox":             true,
		"disable-dev-shm-usage":  true,
		"disable-setuid-sandbox": true,
	}
}

// NewSession starts a new browser process. The caller must Close it.
func (b *ChromeBrowser) NewSession(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocOpts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	return &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		opts:   b.opts,
		logger: b.logger,
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ChromeOptions
	logger *utils.Logger

	consentGiven bool
}

func (s *chromeSession) Load(ctx context.Context, url, readySelector string) (string, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", url, err)
	}

	if !s.consentGiven && s.acceptCookies(runCtx) {
		s.consentGiven = true
		s.logger.Debug("[browser] Cookie banner accepted on %s", url)
	}

	if err := s.scrollToBottom(runCtx); err != nil {
		return "", fmt.Errorf("browser: scroll %s: %w", url, err)
	}

	waitCtx, cancelWait := context.WithTimeout(runCtx, s.opts.WaitTimeout)
	defer cancelWait()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(readySelector, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: wait for %q on %s: %w", readySelector, url, err)
	}

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read markup of %s: %w", url, err)
	}
	return html, nil
}

// acceptCookies clicks the consent button if it becomes visible within the
// wait timeout. A missing banner is not an error.
func (s *chromeSession) acceptCookies(ctx context.Context) bool {
	if s.opts.CookieButton == "" {
		return false
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.WaitTimeout)
	defer cancel()

	err := chromedp.Run(waitCtx,
		chromedp.WaitVisible(s.opts.CookieButton, chromedp.ByQuery),
		chromedp.Click(s.opts.CookieButton, chromedp.ByQuery),
	)
	return err == nil
}

// scrollToBottom scrolls one viewport at a time so lazily rendered content loads.
func (s *chromeSession) scrollToBottom(ctx context.Context) error {
	var viewport, total int64
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(`window.innerHeight`, &viewport),
		chromedp.Evaluate(`document.body.scrollHeight`, &total),
	); err != nil {
		return err
	}
	if viewport <= 0 {
		return nil
	}

	for i := int64(0); i < total/viewport; i++ {
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, i*viewport), nil),
			chromedp.Sleep(s.opts.ScrollPause),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}

// findChromeBinary locates a Chrome/Chromium binary when CHROME_BIN is unset.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
