// Package cookies parses supplied session-cookie material (raw Cookie
// headers, Netscape cookies.txt exports) into the shapes the feed channel
// and the browser session consume. It never acquires credentials itself.
package cookies

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/net/publicsuffix"
)

// Cookie is the neutral representation shared by both channels.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  float64 // unix seconds; 0 means session cookie
}

// ParseHeader splits a raw Cookie header into mailbox-scoped cookies.
func ParseHeader(header string) []Cookie {
	var parsed []Cookie
	for _, segment := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		parsed = append(parsed, Cookie{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: ".mail.google.com",
			Path:   "/",
			Secure: true,
		})
	}
	return parsed
}

// LoadNetscapeFile reads a Netscape/Mozilla cookies.txt export. Comment
// lines are skipped except for the #HttpOnly_ convention, which marks an
// HTTP-only cookie.
func LoadNetscapeFile(path string) ([]Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer file.Close()

	var parsed []Cookie
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = strings.TrimPrefix(line, "#HttpOnly_")
		} else if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		expires, _ := strconv.ParseFloat(fields[4], 64)
		parsed = append(parsed, Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Expires:  expires,
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	return parsed, nil
}

// GoogleOnly keeps the cookies relevant to the mailbox domains.
func GoogleOnly(all []Cookie) []Cookie {
	var kept []Cookie
	for _, c := range all {
		if strings.Contains(c.Domain, "google.com") || strings.Contains(c.Domain, "gmail.com") {
			kept = append(kept, c)
		}
	}
	return kept
}

// Jar builds an HTTP cookie jar for the feed channel.
func Jar(all []Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	byDomain := make(map[string][]*http.Cookie)
	for _, c := range all {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		byDomain[host] = append(byDomain[host], &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
			Secure: c.Secure,
		})
	}
	for host, group := range byDomain {
		u, err := url.Parse("https://" + host + "/")
		if err != nil {
			continue
		}
		jar.SetCookies(u, group)
	}
	return jar, nil
}

// Playwright converts cookies into the browser context injection shape.
func Playwright(all []Cookie) []playwright.OptionalCookie {
	converted := make([]playwright.OptionalCookie, 0, len(all))
	for _, c := range all {
		item := playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: playwright.String(c.Domain),
			Path:   playwright.String(orDefault(c.Path, "/")),
			Secure: playwright.Bool(c.Secure),
		}
		if c.Expires > 0 {
			item.Expires = playwright.Float(c.Expires)
		}
		if c.HTTPOnly {
			item.HttpOnly = playwright.Bool(true)
		}
		converted = append(converted, item)
	}
	return converted
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
