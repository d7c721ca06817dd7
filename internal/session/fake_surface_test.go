package session

import (
	"errors"
	"strings"
	"time"

	"github.com/gotrs-io/mailseek/internal/models"
)

// fakeSurface is a scripted Surface for scanner tests. It models two
// render states, the result list and an open message, and flips between
// them on row clicks and list-return keystrokes. Sleep advances the fake
// clock so hydration deadlines elapse deterministically.
type fakeSurface struct {
	clock time.Time

	state   string // "list" or "open"
	current string
	openURL string
	// redirect overrides the post-navigation URL, simulating the mailbox
	// ignoring a search fragment.
	redirect string

	counts map[string]map[string]int
	texts  map[string]map[string]string
	attrs  map[string]map[string]string
	links  map[string][]models.LinkDetail
	// openRows maps row selectors whose click opens the message view.
	openRows map[string]bool

	// nextCounts/nextTexts/nextAttrs, when set, replace the list page on
	// an "Older" click, modeling pagination.
	nextCounts map[string]int
	nextTexts  map[string]string
	nextAttrs  map[string]string

	// onSleep runs after every Sleep, letting tests script late
	// hydration.
	onSleep func()

	gotoURLs []string
	filled   []string
	pressed  []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		clock:    time.Date(2026, 1, 27, 9, 0, 0, 0, time.UTC),
		state:    "list",
		counts:   map[string]map[string]int{"list": {}, "open": {}},
		texts:    map[string]map[string]string{"list": {}, "open": {}},
		attrs:    map[string]map[string]string{"list": {}, "open": {}},
		links:    map[string][]models.LinkDetail{},
		openRows: map[string]bool{},
	}
}

func (f *fakeSurface) now() time.Time { return f.clock }

func (f *fakeSurface) Goto(url string, timeout time.Duration) error {
	f.gotoURLs = append(f.gotoURLs, url)
	f.state = "list"
	if f.redirect != "" {
		f.current = f.redirect
	} else {
		f.current = url
	}
	return nil
}

func (f *fakeSurface) CurrentURL() string {
	if f.state == "open" && f.openURL != "" {
		return f.openURL
	}
	return f.current
}

func (f *fakeSurface) Count(selector string) int {
	return f.counts[f.state][selector]
}

func (f *fakeSurface) Text(selector string, timeout time.Duration) string {
	return f.texts[f.state][selector]
}

func (f *fakeSurface) Attr(selector, name string, timeout time.Duration) string {
	return f.attrs[f.state][selector+"|"+name]
}

func (f *fakeSurface) Click(selector string, timeout time.Duration, force bool) error {
	if f.openRows[selector] {
		f.state = "open"
		return nil
	}
	if strings.Contains(selector, `aria-label="Older"`) && f.nextCounts != nil {
		f.counts["list"] = f.nextCounts
		f.texts["list"] = f.nextTexts
		f.attrs["list"] = f.nextAttrs
		f.nextCounts, f.nextTexts, f.nextAttrs = nil, nil, nil
	}
	return nil
}

func (f *fakeSurface) JSClick(selector string) error { return nil }

func (f *fakeSurface) ScrollIntoView(selector string, timeout time.Duration) {}

func (f *fakeSurface) Fill(selector, value string, timeout time.Duration) error {
	f.filled = append(f.filled, value)
	return nil
}

func (f *fakeSurface) Press(selector, key string, timeout time.Duration) error {
	f.pressed = append(f.pressed, key)
	return nil
}

func (f *fakeSurface) PressGlobal(key string) error {
	if key == "u" {
		f.state = "list"
	}
	return nil
}

func (f *fakeSurface) WaitAttached(selector string, timeout time.Duration) error { return nil }

func (f *fakeSurface) WaitNetworkIdle(timeout time.Duration) error { return nil }

func (f *fakeSurface) Back(timeout time.Duration) error {
	f.state = "list"
	return nil
}

func (f *fakeSurface) Sleep(d time.Duration) {
	f.clock = f.clock.Add(d)
	if f.onSleep != nil {
		f.onSleep()
	}
}

func (f *fakeSurface) Links(selector string, max int) []models.LinkDetail {
	found := f.links[f.state+"|"+selector]
	if len(found) > max {
		found = found[:max]
	}
	return found
}

func (f *fakeSurface) OpenAux(url string, timeout time.Duration) (AuxSurface, error) {
	return nil, errors.New("no auxiliary pages in this fake")
}
