package match

import (
	"net/mail"
	"strings"
)

func normalizeSenderText(value string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " ")))
}

// parseExpectedSender splits a sender filter into an address part and a
// display-name token. The address is only trusted when it looks like an
// actual email address.
func parseExpectedSender(expected string) (address, token string) {
	if addr, err := mail.ParseAddress(expected); err == nil {
		if strings.Contains(addr.Address, "@") {
			address = normalizeSenderText(addr.Address)
		}
		token = normalizeSenderText(addr.Name)
	}
	if token == "" {
		token = normalizeSenderText(expected)
	}
	return address, token
}

// SenderMatches reports whether an observed sender satisfies the filter.
// An empty filter is trivially true. A filter that parses to an email
// address must equal the observed address or be contained in it (alias
// suffixing); otherwise the display-name token must appear in either the
// observed name or address.
func SenderMatches(expected, senderName, senderEmail string) bool {
	if strings.TrimSpace(expected) == "" {
		return true
	}
	nameNorm := normalizeSenderText(senderName)
	emailNorm := normalizeSenderText(senderEmail)

	address, token := parseExpectedSender(expected)
	if address != "" {
		if emailNorm == address {
			return true
		}
		return strings.Contains(emailNorm, address)
	}
	if token == "" {
		return true
	}
	return strings.Contains(nameNorm, token) || strings.Contains(emailNorm, token)
}

// SenderQueryToken reduces a sender filter to the token used inside a
// from: query clause: the parsed address when present, otherwise the raw
// filter with surrounding quotes removed. Empty when no filter is set.
func SenderQueryToken(sender string) string {
	trimmed := strings.TrimSpace(sender)
	if trimmed == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(trimmed); err == nil && strings.Contains(addr.Address, "@") {
		return addr.Address
	}
	return strings.Trim(trimmed, `"`)
}
