package feed

import (
	"time"

	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
)

// StrategyName tags candidates produced by the feed channel.
const StrategyName = "feed"

func candidateFromEntry(entry Entry, target models.MatchTarget) models.Candidate {
	candidate := models.Candidate{
		Strategy:      StrategyName,
		Subject:       entry.Title,
		SenderName:    entry.AuthorName,
		SenderEmail:   entry.AuthorEmail,
		RowTimeHint:   entry.Issued,
		URL:           entry.ID,
		TimeMatchMode: target.TimeMatchMode(),
	}
	for _, raw := range []string{entry.Issued, entry.Modified} {
		if raw != "" {
			candidate.Timestamps = append(candidate.Timestamps, raw)
		}
	}

	issued, ok := match.ParseFeedTime(entry.Issued)
	if !ok {
		issued, ok = match.ParseFeedTime(entry.Modified)
	}
	if ok {
		candidate.TimestampsLocal = []string{issued.In(target.Zone).Format(time.RFC3339)}
		candidate.MinuteMatch = match.SameMinute(issued, target.Instant, target.Zone)
		candidate.DateMatch = match.SameLocalDate(issued, target.Date, target.Zone)
	}
	candidate.SenderMatch = match.SenderMatches(target.Sender, entry.AuthorName, entry.AuthorEmail)
	return candidate
}

// Select walks the entries in feed order (recency order) and returns the
// first one satisfying subject, time, and sender together. Every
// subject-matching entry is retained as a candidate regardless of its
// time/sender outcome, to aid diagnostics on a miss.
func Select(entries []Entry, target models.MatchTarget) (*models.Candidate, []models.Candidate) {
	var candidates []models.Candidate
	for _, entry := range entries {
		if !match.SubjectMatches(entry.Title, target.Subject) {
			continue
		}
		candidate := candidateFromEntry(entry, target)
		candidates = append(candidates, candidate)

		timeHit := candidate.MinuteMatch
		if target.DateOnly() {
			timeHit = candidate.DateMatch
		}
		if timeHit && candidate.SenderMatch {
			return &candidate, candidates
		}
	}
	return nil, candidates
}
