package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNotAuthenticated is returned when the mailbox redirects to a sign-in
// surface instead of the inbox. The interactive channel treats this as
// fatal; it never attempts to acquire credentials itself.
var ErrNotAuthenticated = errors.New("browser session is not authenticated; supply a logged-in storage state or cookies")

// BrowserOptions configures the interactive channel's browser session.
type BrowserOptions struct {
	Headless         bool
	Channel          string // browser channel, e.g. "chrome"
	StorageStatePath string
	Cookies          []playwright.OptionalCookie
	DefaultTimeout   time.Duration
}

// Browser owns the playwright runtime and the single page every strategy
// shares. Strategies run strictly sequentially on it.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *log.Logger
	verbose bool
}

// Launch starts playwright and opens one authenticated-capable page.
func Launch(opts BrowserOptions, logger *log.Logger, verbose bool) (*Browser, error) {
	if logger == nil {
		logger = log.Default()
	}
	if os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		// Retry once after an explicit driver install; version drift between
		// the module and the driver image shows up here.
		_ = playwright.Install()
		pw, err = playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright after retry: %w", err)
		}
	}

	b := &Browser{pw: pw, logger: logger, verbose: verbose}
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Channel != "" {
		launchOpts.Channel = playwright.String(opts.Channel)
	}
	b.browser, err = pw.Chromium.Launch(launchOpts)
	if err != nil && opts.Channel != "" {
		// The named channel may not be installed; fall back to bundled
		// chromium.
		launchOpts.Channel = nil
		b.browser, err = pw.Chromium.Launch(launchOpts)
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	b.context, err = b.browser.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	if opts.StorageStatePath == "" && len(opts.Cookies) > 0 {
		if verbose {
			logger.Printf("[session] injecting %d cookies into browser context", len(opts.Cookies))
		}
		if err := b.context.AddCookies(opts.Cookies); err != nil {
			b.Close()
			return nil, fmt.Errorf("could not inject cookies: %w", err)
		}
	}

	b.page, err = b.context.NewPage()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if opts.DefaultTimeout > 0 {
		b.page.SetDefaultTimeout(ms(opts.DefaultTimeout))
	}
	return b, nil
}

// OpenMailbox navigates to the mailbox inbox and verifies the session is
// authenticated.
func (b *Browser) OpenMailbox(mailbox string) error {
	inboxURL := fmt.Sprintf("https://mail.google.com/mail/u/%s/#inbox", mailbox)
	if _, err := b.page.Goto(inboxURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(60000),
	}); err != nil {
		return fmt.Errorf("could not open mailbox: %w", err)
	}
	b.page.WaitForTimeout(1200)
	if strings.Contains(b.page.URL(), "accounts.google.com") {
		return ErrNotAuthenticated
	}
	return nil
}

// Surface exposes the page through the scanner's capability interface.
func (b *Browser) Surface() Surface {
	return NewSurface(b.page)
}

// Close tears the whole session down. Safe on partially-initialized
// browsers.
func (b *Browser) Close() {
	if b.page != nil {
		_ = b.page.Close()
	}
	if b.context != nil {
		_ = b.context.Close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.pw != nil {
		_ = b.pw.Stop()
	}
}
