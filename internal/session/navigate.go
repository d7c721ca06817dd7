package session

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gotrs-io/mailseek/internal/ladder"
	"github.com/gotrs-io/mailseek/internal/models"
)

// readySelector is the union of surfaces that indicate the mailbox UI has
// produced something usable: list rows, an open message header, or the
// search chrome.
const readySelector = `tr.zA, h2.hP, input[aria-label="Search mail"], input[name="q"]`

var olderButtonSelectors = []string{
	`button[aria-label="Older"]`,
	`button[aria-label*="Older"]`,
	`[role="button"][aria-label="Older"]`,
	`[role="button"][aria-label*="Older"]`,
	`[aria-label="Older"]`,
	`[data-tooltip="Older"]`,
	`[title="Older"]`,
}

// escapeFragment percent-encodes a search query for the hash fragment,
// leaving nothing unescaped.
func escapeFragment(query string) string {
	return strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

// ViewURL builds the mailbox view URL a strategy starts from.
func ViewURL(mailbox string, strategy models.SearchStrategy) (string, error) {
	base := fmt.Sprintf("https://mail.google.com/mail/u/%s", mailbox)
	switch strategy.Mode {
	case models.ModeSearch:
		if strategy.Query == "" {
			return "", fmt.Errorf("strategy %s: missing query for search mode", strategy.Name)
		}
		return base + "/#search/" + escapeFragment(strategy.Query), nil
	case models.ModeSearchInput:
		return base + "/#inbox", nil
	case models.ModeBrowse:
		if strings.EqualFold(strategy.Folder, ladder.FolderAllMail) {
			return base + "/#all", nil
		}
		return base + "/#inbox", nil
	}
	return "", fmt.Errorf("strategy %s: unsupported view mode %q", strategy.Name, strategy.Mode)
}

// IsInboxLike reports whether a URL points at the unfiltered inbox rather
// than a search result view. A query-mode strategy landing here means the
// query was silently dropped.
func IsInboxLike(current string) bool {
	return !strings.Contains(current, "#search/") && strings.Contains(current, "#inbox")
}

// NavOutcome records where a strategy's view transition actually landed.
type NavOutcome struct {
	TargetURL     string
	CurrentURL    string
	SearchApplied bool
	InboxLike     bool
}

// waitForSurfaceReady waits for a concrete UI surface. Network-idle is an
// unreliable primary readiness signal here because the mailbox keeps
// background requests alive, so it is only a fallback.
func (sc *Scanner) waitForSurfaceReady(phase string) {
	if err := sc.surface.WaitAttached(readySelector, 6*time.Second); err == nil {
		sc.surface.Sleep(400 * time.Millisecond)
		return
	}
	sc.logf("surface selectors not ready after %s; trying short networkidle fallback", phase)

	if err := sc.surface.WaitNetworkIdle(5 * time.Second); err != nil {
		sc.logf("networkidle timeout after %s; continuing with selector retry", phase)
	}
	if err := sc.surface.WaitAttached(readySelector, 3*time.Second); err != nil {
		sc.logf("surface selectors still not ready after fallback (%s); continuing", phase)
	}
	sc.surface.Sleep(500 * time.Millisecond)
}

// gotoView issues a strategy's view transition and reports whether the
// intended constraint was actually applied.
func (sc *Scanner) gotoView(strategy models.SearchStrategy) (*NavOutcome, error) {
	targetURL, err := ViewURL(sc.mailbox, strategy)
	if err != nil {
		return nil, err
	}
	if err := sc.surface.Goto(targetURL, 60*time.Second); err != nil {
		return nil, fmt.Errorf("strategy %s: navigation failed: %w", strategy.Name, err)
	}
	sc.waitForSurfaceReady("navigation")

	outcome := &NavOutcome{
		TargetURL:  targetURL,
		CurrentURL: sc.surface.CurrentURL(),
	}
	switch strategy.Mode {
	case models.ModeSearchInput:
		if strategy.Query == "" {
			return nil, fmt.Errorf("strategy %s: missing query for search_input mode", strategy.Name)
		}
		if sc.surface.Count(selSearchInputs) == 0 {
			return nil, fmt.Errorf("strategy %s: could not find mailbox search input", strategy.Name)
		}
		if err := sc.surface.Click(selSearchInputs, 10*time.Second, false); err != nil {
			return nil, fmt.Errorf("strategy %s: could not focus search input: %w", strategy.Name, err)
		}
		if err := sc.surface.Fill(selSearchInputs, strategy.Query, 10*time.Second); err != nil {
			return nil, fmt.Errorf("strategy %s: could not fill search input: %w", strategy.Name, err)
		}
		if err := sc.surface.Press(selSearchInputs, "Enter", 10*time.Second); err != nil {
			return nil, fmt.Errorf("strategy %s: could not submit search input: %w", strategy.Name, err)
		}
		sc.waitForSurfaceReady("input search")
		current := sc.surface.CurrentURL()
		outcome.CurrentURL = current
		outcome.SearchApplied = strings.Contains(current, "#search/") || strings.Contains(current, "?q=")
		outcome.InboxLike = IsInboxLike(current) && !strings.Contains(current, "?q=")
	case models.ModeSearch:
		outcome.SearchApplied = strings.Contains(outcome.CurrentURL, "#search/")
		outcome.InboxLike = IsInboxLike(outcome.CurrentURL)
	}
	return outcome, nil
}

// firstRowSignature fingerprints the top list row so pagination can detect
// an actual page change.
func (sc *Scanner) firstRowSignature() string {
	pick := SelectListRows(sc.surface)
	if pick.Count <= 0 {
		return ""
	}
	first := pick.Selector + " >> nth=0"
	subject := sc.surface.Text(first+" >> "+selRowSubject, quickTimeout)
	sender := sc.surface.Text(first+" >> "+selRowSender, quickTimeout)
	when := sc.surface.Attr(first+" >> "+selRowTime, "title", quickTimeout)
	if when == "" {
		when = sc.surface.Text(first+" >> "+selRowTime, quickTimeout)
	}
	return strings.TrimSpace(subject + " | " + sender + " | " + when)
}

func (sc *Scanner) waitForListChange(before string, timeout time.Duration) bool {
	deadline := sc.now().Add(timeout)
	for sc.now().Before(deadline) {
		sc.surface.Sleep(250 * time.Millisecond)
		current := sc.firstRowSignature()
		if current != "" && current != before {
			return true
		}
	}
	return false
}

// nextPage advances the list via the durable "Older" control. Returns
// false when no usable control exists or the page never changes, which
// ends the strategy, not the run.
func (sc *Scanner) nextPage() bool {
	before := sc.firstRowSignature()
	for _, selector := range olderButtonSelectors {
		count := sc.surface.Count(selector)
		if count > 4 {
			count = 4
		}
		for idx := 0; idx < count; idx++ {
			button := fmt.Sprintf("%s >> nth=%d", selector, idx)

			ariaDisabled := strings.ToLower(sc.surface.Attr(button, "aria-disabled", quickTimeout))
			disabledAttr := strings.ToLower(sc.surface.Attr(button, "disabled", quickTimeout))
			class := sc.surface.Attr(button, "class", quickTimeout)
			if ariaDisabled == "true" || disabledAttr == "true" || disabledAttr == "disabled" ||
				strings.Contains(class, "aqj") {
				continue
			}

			sc.surface.ScrollIntoView(button, quickTimeout)
			clicks := []func() error{
				func() error { return sc.surface.Click(button, 5*time.Second, false) },
				func() error { return sc.surface.Click(button, 5*time.Second, true) },
				func() error { return sc.surface.JSClick(button) },
			}
			for _, click := range clicks {
				if err := click(); err != nil {
					continue
				}
				if sc.waitForListChange(before, 7*time.Second) {
					return true
				}
				sc.surface.Sleep(500 * time.Millisecond)
			}
		}
	}
	sc.logf("no usable Older control found; stopping pagination")
	return false
}

// returnToList leaves an open message and restores the list view. The "u"
// shortcut is preferred; history back is the fallback.
func (sc *Scanner) returnToList() {
	if err := sc.surface.PressGlobal("u"); err == nil {
		sc.surface.Sleep(900 * time.Millisecond)
		return
	}
	if err := sc.surface.Back(20 * time.Second); err != nil {
		sc.logf("failed to return to list view after opening message")
		return
	}
	sc.surface.Sleep(900 * time.Millisecond)
}
