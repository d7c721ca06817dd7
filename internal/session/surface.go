// Package session implements the interactive channel: browser bootstrap,
// render-state probing, hydration waits, navigation validation, candidate
// extraction, and the per-strategy scanner state machine. The scanner
// drives the mailbox UI through the narrow Surface capability interface
// rather than a specific automation product.
package session

import (
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/mailseek/internal/models"
)

// Surface is the automation capability the scanner depends on. All
// operations are individually time-bounded and tolerate missing elements
// by returning zero values.
type Surface interface {
	// Goto navigates the main view and waits for DOM content.
	Goto(url string, timeout time.Duration) error
	// CurrentURL returns the main view's current URL.
	CurrentURL() string
	// Count returns how many nodes the selector matches right now.
	Count(selector string) int
	// Text returns the trimmed inner text of the first selector match.
	Text(selector string, timeout time.Duration) string
	// Attr returns the trimmed attribute value of the first selector match.
	Attr(selector, name string, timeout time.Duration) string
	// Click clicks the first selector match.
	Click(selector string, timeout time.Duration, force bool) error
	// JSClick dispatches a synthetic click on the nearest clickable
	// ancestor, as a last resort when real clicks are intercepted.
	JSClick(selector string) error
	// ScrollIntoView best-effort scrolls the first match into view.
	ScrollIntoView(selector string, timeout time.Duration)
	// Fill replaces the value of the first selector match.
	Fill(selector, value string, timeout time.Duration) error
	// Press sends a key to the first selector match.
	Press(selector, key string, timeout time.Duration) error
	// PressGlobal sends a key to the page keyboard.
	PressGlobal(key string) error
	// WaitAttached waits until the selector has an attached match.
	WaitAttached(selector string, timeout time.Duration) error
	// WaitNetworkIdle waits for a network-quiet window.
	WaitNetworkIdle(timeout time.Duration) error
	// Back navigates history back to the previous view.
	Back(timeout time.Duration) error
	// Sleep pauses the driving flow.
	Sleep(d time.Duration)
	// Links collects href/text pairs for up to max selector matches.
	Links(selector string, max int) []models.LinkDetail
	// OpenAux opens an auxiliary view on the same session.
	OpenAux(url string, timeout time.Duration) (AuxSurface, error)
}

// AuxSurface is a short-lived auxiliary view (the clipped-message webview).
type AuxSurface interface {
	CurrentURL() string
	WaitAttached(selector string, timeout time.Duration) error
	Text(selector string, timeout time.Duration) string
	Links(selector string, max int) []models.LinkDetail
	Close()
}

func ms(d time.Duration) float64 { return float64(d.Milliseconds()) }

// pageSurface adapts a playwright page to the Surface capability set.
type pageSurface struct {
	page playwright.Page
}

// NewSurface wraps a playwright page.
func NewSurface(page playwright.Page) Surface {
	return &pageSurface{page: page}
}

func (s *pageSurface) Goto(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(timeout)),
	})
	return err
}

func (s *pageSurface) CurrentURL() string {
	return s.page.URL()
}

func (s *pageSurface) Count(selector string) int {
	count, err := s.page.Locator(selector).Count()
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (s *pageSurface) Text(selector string, timeout time.Duration) string {
	text, err := s.page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (s *pageSurface) Attr(selector, name string, timeout time.Duration) string {
	value, err := s.page.Locator(selector).First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (s *pageSurface) Click(selector string, timeout time.Duration, force bool) error {
	return s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(ms(timeout)),
		Force:   playwright.Bool(force),
	})
}

func (s *pageSurface) JSClick(selector string) error {
	_, err := s.page.Locator(selector).First().Evaluate(
		`el => { const target = el.closest('button,[role="button"],div') || el; target.click(); }`, nil)
	return err
}

func (s *pageSurface) ScrollIntoView(selector string, timeout time.Duration) {
	_ = s.page.Locator(selector).First().ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *pageSurface) Fill(selector, value string, timeout time.Duration) error {
	return s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *pageSurface) Press(selector, key string, timeout time.Duration) error {
	return s.page.Locator(selector).First().Press(key, playwright.LocatorPressOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *pageSurface) PressGlobal(key string) error {
	return s.page.Keyboard().Press(key)
}

func (s *pageSurface) WaitAttached(selector string, timeout time.Duration) error {
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *pageSurface) WaitNetworkIdle(timeout time.Duration) error {
	return s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *pageSurface) Back(timeout time.Duration) error {
	_, err := s.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(timeout)),
	})
	return err
}

func (s *pageSurface) Sleep(d time.Duration) {
	s.page.WaitForTimeout(ms(d))
}

func collectLinks(locator playwright.Locator, max int) []models.LinkDetail {
	count, err := locator.Count()
	if err != nil {
		return nil
	}
	if count > max {
		count = max
	}
	var details []models.LinkDetail
	for i := 0; i < count; i++ {
		node := locator.Nth(i)
		href, err := node.GetAttribute("href", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(2000),
		})
		if err != nil || strings.TrimSpace(href) == "" {
			continue
		}
		text, err := node.InnerText(playwright.LocatorInnerTextOptions{
			Timeout: playwright.Float(2000),
		})
		if err != nil {
			text = ""
		}
		details = append(details, models.LinkDetail{
			Href: strings.TrimSpace(href),
			Text: strings.TrimSpace(text),
		})
	}
	return details
}

func (s *pageSurface) Links(selector string, max int) []models.LinkDetail {
	return collectLinks(s.page.Locator(selector), max)
}

func (s *pageSurface) OpenAux(url string, timeout time.Duration) (AuxSurface, error) {
	popup, err := s.page.Context().NewPage()
	if err != nil {
		return nil, err
	}
	if _, err := popup.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(timeout)),
	}); err != nil {
		_ = popup.Close()
		return nil, err
	}
	popup.WaitForTimeout(800)
	return &auxSurface{page: popup}, nil
}

type auxSurface struct {
	page playwright.Page
}

func (s *auxSurface) CurrentURL() string {
	return s.page.URL()
}

func (s *auxSurface) WaitAttached(selector string, timeout time.Duration) error {
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(ms(timeout)),
	})
}

func (s *auxSurface) Text(selector string, timeout time.Duration) string {
	text, err := s.page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(ms(timeout)),
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (s *auxSurface) Links(selector string, max int) []models.LinkDetail {
	return collectLinks(s.page.Locator(selector), max)
}

func (s *auxSurface) Close() {
	_ = s.page.Close()
}
