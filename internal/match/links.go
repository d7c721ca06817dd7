package match

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/gotrs-io/mailseek/internal/models"
)

// Block reasons surfaced on filtered links.
const (
	ReasonUnsubscribe       = "alert_unsubscribe_link"
	ReasonManagePreferences = "alert_management_preferences_link"
	ReasonUnsupportedScheme = "unsupported_url_scheme"
	ReasonWebviewLink       = "gmail_message_webview_link"
)

var (
	managementHrefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`unsubscribe`),
		regexp.MustCompile(`removealert`),
		regexp.MustCompile(`manage[-_/]?alerts?`),
		regexp.MustCompile(`alert[-_/]?preferences?`),
		regexp.MustCompile(`email[-_/]?(notification[-_/]?)?preferences?`),
		regexp.MustCompile(`notification[-_/]?preferences?`),
	}
	unsubscribeHref = regexp.MustCompile(`unsubscribe|removealert`)

	managementTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bunsubscribe\b`),
		regexp.MustCompile(`\bmanage\s+(my\s+)?alerts?\b`),
		regexp.MustCompile(`\b(alert|email|notification)\s+preferences?\b`),
		regexp.MustCompile(`\bmanage\s+preferences?\b`),
	}
	unsubscribeText = regexp.MustCompile(`\bunsubscribe\b`)

	schemePrefix = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*):`)
)

// NormalizeHref trims a scraped href and upgrades protocol-relative links
// to https.
func NormalizeHref(value string) string {
	href := strings.TrimSpace(value)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func normalizeLinkText(value string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " ")))
}

func managementLinkReason(href, text string) string {
	hrefNorm := strings.ToLower(strings.TrimSpace(href))
	textNorm := normalizeLinkText(text)
	if hrefNorm == "" && textNorm == "" {
		return ""
	}
	for _, pattern := range managementHrefPatterns {
		if pattern.MatchString(hrefNorm) {
			if unsubscribeHref.MatchString(hrefNorm) {
				return ReasonUnsubscribe
			}
			return ReasonManagePreferences
		}
	}
	for _, pattern := range managementTextPatterns {
		if pattern.MatchString(textNorm) {
			if unsubscribeText.MatchString(textNorm) {
				return ReasonUnsubscribe
			}
			return ReasonManagePreferences
		}
	}
	return ""
}

func unsupportedSchemeReason(href string) string {
	raw := strings.TrimSpace(href)
	if raw == "" || strings.HasPrefix(raw, "//") {
		return ""
	}
	m := schemePrefix.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	switch strings.ToLower(m[1]) {
	case "http", "https":
		return ""
	}
	return ReasonUnsupportedScheme
}

// IsWebviewLink reports whether the href is the mailbox's own full-message
// webview rendering of the current message.
func IsWebviewLink(href string) bool {
	normalized := NormalizeHref(href)
	if normalized == "" {
		return false
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if !strings.Contains(strings.ToLower(parsed.Host), "mail.google.com") {
		return false
	}
	query := parsed.Query()
	view := strings.ToLower(query.Get("view"))
	return view == "lg" && strings.TrimSpace(query.Get("permmsgid")) != ""
}

// BlockReason classifies a link as unsafe-to-surface. Empty means the link
// may be exposed in the candidate output.
func BlockReason(href, text string) string {
	if IsWebviewLink(href) {
		return ReasonWebviewLink
	}
	if reason := managementLinkReason(href, text); reason != "" {
		return reason
	}
	return unsupportedSchemeReason(href)
}

// MergeLinkDetails concatenates link groups, normalizing hrefs and
// dropping duplicates by (href, text).
func MergeLinkDetails(groups ...[]models.LinkDetail) []models.LinkDetail {
	type key struct{ href, text string }
	seen := make(map[key]struct{})
	var merged []models.LinkDetail
	for _, group := range groups {
		for _, item := range group {
			href := NormalizeHref(item.Href)
			if href == "" {
				continue
			}
			text := strings.TrimSpace(item.Text)
			k := key{href, text}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, models.LinkDetail{Href: href, Text: text})
		}
	}
	return merged
}

// PartitionLinks splits link details into surfaceable and blocked sets,
// stamping the block reason on the latter.
func PartitionLinks(details []models.LinkDetail) (safe, blocked []models.LinkDetail) {
	for _, item := range details {
		href := NormalizeHref(item.Href)
		if href == "" {
			continue
		}
		text := strings.TrimSpace(item.Text)
		if reason := BlockReason(href, text); reason != "" {
			blocked = append(blocked, models.LinkDetail{Href: href, Text: text, Reason: reason})
			continue
		}
		safe = append(safe, models.LinkDetail{Href: href, Text: text})
	}
	return safe, blocked
}
