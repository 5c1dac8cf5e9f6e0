package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrElementNotFound is returned when a selector matches nothing on the page.
var ErrElementNotFound = errors.New("element not found")

// Driver is one live browser session with a single open page.
type Driver interface {
	Navigate(url string) error
	IsVisible(selector string) (bool, error)
	Text(selector string) (string, error)
	Content() (string, error)
	ScrollToBottom() error
	ClickScript(selector string) error
	CurrentURL() string
	Close() error
}

const clickScript = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) return false;
	el.click();
	return true;
}`

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	ScriptTimeout     time.Duration
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
	TimezoneID        string
	ProxyServer       string
	ExtraHeaders      map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		NavigationTimeout: 60 * time.Second,
		ScriptTimeout:     60 * time.Second,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		Locale:            "en-IN",
		TimezoneID:        "Asia/Kolkata",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

// New starts playwright, launches Chromium and opens one page.
func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--log-level=3",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}
	if opts.Locale != "" {
		contextOpts.Locale = &opts.Locale
	}
	if opts.TimezoneID != "" {
		contextOpts.TimezoneId = &opts.TimezoneID
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultNavigationTimeout(float64(opts.NavigationTimeout.Milliseconds()))
	page.SetDefaultTimeout(float64(opts.ScriptTimeout.Milliseconds()))

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

func (b *Browser) Navigate(url string) error {
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(b.opts.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (b *Browser) IsVisible(selector string) (bool, error) {
	return b.page.Locator(selector).First().IsVisible()
}

// Text returns the rendered text of the first element matching selector.
func (b *Browser) Text(selector string) (string, error) {
	loc := b.page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil {
		return "", fmt.Errorf("failed to count %q: %w", selector, err)
	}
	if count == 0 {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return loc.InnerText()
}

func (b *Browser) Content() (string, error) {
	html, err := b.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (b *Browser) ScrollToBottom() error {
	if _, err := b.page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

// ClickScript clicks the first match from page script, bypassing overlays
// that would intercept a pointer click.
func (b *Browser) ClickScript(selector string) error {
	res, err := b.page.Evaluate(clickScript, selector)
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	if clicked, _ := res.(bool); !clicked {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (b *Browser) CurrentURL() string {
	return b.page.URL()
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %w", errors.Join(errs...))
	}

	return nil
}
