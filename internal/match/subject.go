// Package match holds the pure matching primitives of the resolution
// engine: subject normalization, sender filters, calendar-field time
// comparison, and link classification. Nothing in this package performs
// I/O.
package match

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun       = regexp.MustCompile(`\s+`)
	trailingPunctuation = regexp.MustCompile(`[\s.!?。！？…]+$`)

	// Alert digests render as "<journal>: Alert 19 January" or with a
	// trailing year; the stem drops the date suffix.
	stemPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.*?:\s*Alert)\s+\d{1,2}\s+[A-Za-z]+$`),
		regexp.MustCompile(`(?i)^(.*?:\s*Alert)\s+\d{1,2}\s+[A-Za-z]+\s+\d{4}$`),
	}
)

// NormalizeSubject collapses whitespace runs (including the non-breaking
// and narrow no-break spaces the mailbox UI injects) and trims the result.
func NormalizeSubject(value string) string {
	replaced := strings.NewReplacer(" ", " ", " ", " ").Replace(value)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(replaced, " "))
}

// StripTrailingPunctuation removes terminal sentence punctuation and the
// whitespace around it.
func StripTrailingPunctuation(value string) string {
	return strings.TrimSpace(trailingPunctuation.ReplaceAllString(value, ""))
}

// SubjectMatches reports whether an observed subject line is the requested
// one. Whitespace runs and case are normalized, and a difference confined
// to trailing punctuation is tolerated; partial matches are not.
func SubjectMatches(observed, requested string) bool {
	observedNorm := strings.ToLower(NormalizeSubject(observed))
	requestedNorm := strings.ToLower(NormalizeSubject(requested))
	if observedNorm == "" || requestedNorm == "" {
		return false
	}
	if observedNorm == requestedNorm {
		return true
	}
	return StripTrailingPunctuation(observedNorm) == StripTrailingPunctuation(requestedNorm)
}

// SubjectStem returns the alert-style subject with its rendered date
// suffix removed, or the normalized subject unchanged when no suffix is
// recognized.
func SubjectStem(subject string) string {
	normalized := NormalizeSubject(subject)
	for _, pattern := range stemPatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return normalized
}

// ProbePhrase derives the broad containment probe for a subject: the text
// before the first colon, or the whole subject when there is none.
func ProbePhrase(subject string) string {
	normalized := strings.ToLower(NormalizeSubject(subject))
	if head, _, ok := strings.Cut(normalized, ":"); ok {
		if trimmed := strings.TrimSpace(head); trimmed != "" {
			return trimmed
		}
	}
	return normalized
}

// ProbeMatches evaluates a row subject against the requested subject and
// returns the exact-match and broad containment outcomes.
func ProbeMatches(observed, requested string) (exact, broad bool) {
	exact = SubjectMatches(observed, requested)
	observedNorm := strings.ToLower(NormalizeSubject(observed))
	probe := ProbePhrase(requested)
	broad = observedNorm != "" && probe != "" && strings.Contains(observedNorm, probe)
	return exact, broad
}
