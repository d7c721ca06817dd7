package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/mailseek/internal/ladder"
	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
)

const testSubject = "Journal X: Alert 19 January"

func scannerTarget(t *testing.T) models.MatchTarget {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return models.MatchTarget{
		Subject:     testSubject,
		Instant:     time.Date(2026, 1, 19, 17, 18, 0, 0, loc),
		Date:        time.Date(2026, 1, 19, 0, 0, 0, 0, loc),
		Zone:        loc,
		Granularity: models.GranularityMinute,
	}
}

// populateResultList scripts a two-row result view with the match on the
// second row.
func populateResultList(fs *fakeSurface) {
	fs.counts["list"][selRowPrimary] = 2
	fs.counts["list"][selRowSubject] = 2
	fs.counts["list"][selSearchInputs] = 1
	fs.counts["list"][selMainRegion] = 1

	fs.texts["list"]["tr.zA >> nth=0 >> span.bog"] = "Receipt for your order"
	fs.texts["list"]["tr.zA >> nth=0 >> span.zF, span.yP"] = "Store"
	fs.texts["list"]["tr.zA >> nth=0 >> td.xW span"] = "3:01 PM"

	fs.texts["list"]["tr.zA >> nth=1 >> span.bog"] = testSubject
	fs.texts["list"]["tr.zA >> nth=1 >> span.zF, span.yP"] = "Journal Alerts"
	fs.attrs["list"]["tr.zA >> nth=1 >> td.xW span|title"] = "Mon, Jan 19, 2026, 5:18 PM"

	fs.openRows["tr.zA >> nth=1"] = true
	fs.openURL = "https://mail.google.com/mail/u/0/#search/q/FMfcgzQbdrXv"

	fs.counts["open"][selSearchInputs] = 1
	fs.counts["open"][selMainRegion] = 1
	fs.counts["open"][selMsgHeader] = 1
	fs.texts["open"][selMsgHeader] = testSubject
	fs.attrs["open"]["span.gD|email"] = "alerts@example.com"
	fs.attrs["open"]["span.gD|name"] = "Journal Alerts"
	fs.counts["open"][selMsgTimestamps] = 1
	fs.attrs["open"]["span.g3 >> nth=0|title"] = "Mon, Jan 19, 2026, 5:18 PM"
	fs.texts["open"]["span.g3 >> nth=0"] = "5:18 PM (8 days ago)"
	fs.links["open|"+selMsgBodyLinks] = []models.LinkDetail{
		{Href: "https://journal.example.com/article/42", Text: "Read the article"},
		{Href: "https://journal.example.com/unsubscribe", Text: "Unsubscribe"},
	}
}

func exactStrategy() models.SearchStrategy {
	return models.SearchStrategy{
		Name:  ladder.NameExactSubjectOnly,
		Mode:  models.ModeSearch,
		Query: `subject:"` + testSubject + `"`,
	}
}

func newTestScanner(fs *fakeSurface, policy ScanPolicy) *Scanner {
	return NewScanner(fs, "0", policy, WithClock(fs.now))
}

func TestScannerRunMatch(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	sc := newTestScanner(fs, DefaultScanPolicy())

	var phases []string
	progress := func(phase string, extra map[string]any) { phases = append(phases, phase) }

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), progress)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.True(t, attempt.Found)
	assert.Empty(t, attempt.Error)
	require.NotNil(t, attempt.SearchApplied)
	assert.True(t, *attempt.SearchApplied)
	assert.Equal(t, 1, attempt.PagesScanned)
	assert.Equal(t, 2, attempt.RowsScanned)
	assert.Equal(t, 1, attempt.CandidateCount)
	require.NotNil(t, attempt.RowProbe)
	assert.Equal(t, 2, attempt.RowProbe.Page1Rows)
	assert.Equal(t, 1, attempt.RowProbe.Page1ExactSubjectHits)
	require.NotNil(t, attempt.Validation)
	assert.Equal(t, "valid", attempt.Validation.Mode)
	assert.Len(t, attempt.SampleRows, 2)

	candidate := outcome.Match
	assert.Equal(t, testSubject, candidate.Subject)
	assert.Equal(t, "alerts@example.com", candidate.SenderEmail)
	assert.True(t, candidate.MinuteMatch)
	assert.True(t, candidate.DateMatch)
	assert.True(t, candidate.SenderMatch)
	assert.Equal(t, fs.openURL, candidate.URL)
	require.Len(t, candidate.Links, 1)
	assert.Equal(t, "https://journal.example.com/article/42", candidate.Links[0])
	require.Len(t, candidate.BlockedLinkDetails, 1)
	assert.Equal(t, match.ReasonUnsubscribe, candidate.BlockedLinkDetails[0].Reason)

	assert.Contains(t, phases, "list_hydration_probe")
	assert.Contains(t, phases, "candidate_row_match")
	assert.Contains(t, phases, "candidate_opened")
	assert.Contains(t, phases, "candidate_extracted")

	// The scanner must leave the surface back on the list view.
	assert.Equal(t, "list", fs.state)
}

func TestScannerRunSearchNotApplied(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	fs.redirect = "https://mail.google.com/mail/u/0/#inbox"
	sc := newTestScanner(fs, DefaultScanPolicy())

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), nil)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Match)
	assert.Equal(t, "attempt_search_not_applied", outcome.Attempt.Error)
	require.NotNil(t, outcome.Attempt.SearchApplied)
	assert.False(t, *outcome.Attempt.SearchApplied)
	assert.Zero(t, outcome.Attempt.RowsScanned)
	assert.NotEmpty(t, outcome.Warnings)
}

func TestScannerRunContentMismatch(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	// Neither row carries the requested subject.
	fs.texts["list"]["tr.zA >> nth=1 >> span.bog"] = "Completely unrelated"
	sc := newTestScanner(fs, DefaultScanPolicy())

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), nil)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.False(t, attempt.Found)
	assert.True(t, attempt.ContentMismatch)
	assert.Zero(t, attempt.CandidateCount)
	require.NotNil(t, attempt.Validation)
	assert.Equal(t, "invalid_content_mismatch", attempt.Validation.Mode)
	assert.NotEmpty(t, attempt.Validation.Reason)
	require.NotNil(t, attempt.SearchApplied)
	assert.False(t, *attempt.SearchApplied)
}

func TestScannerRunWindowStrategyContentMismatch(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	// The windowed full-subject query still demands an exact hit somewhere
	// on page 1.
	fs.texts["list"]["tr.zA >> nth=1 >> span.bog"] = "Completely unrelated"
	sc := newTestScanner(fs, DefaultScanPolicy())

	strategy := models.SearchStrategy{
		Name:  ladder.NameSubjectWindowNoSender,
		Mode:  models.ModeSearch,
		Query: `subject:"` + testSubject + `" after:2026/1/18 before:2026/1/21`,
	}
	outcome := sc.Run(context.Background(), strategy, scannerTarget(t), nil)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.True(t, attempt.ContentMismatch)
	assert.Zero(t, attempt.CandidateCount)
	require.NotNil(t, attempt.Validation)
	assert.Equal(t, "invalid_content_mismatch", attempt.Validation.Mode)
	require.NotNil(t, attempt.SearchApplied)
	assert.False(t, *attempt.SearchApplied)
}

func TestScannerRunRowCapBoundsPagesNotScan(t *testing.T) {
	fs := newFakeSurface()
	// Page 1: two rows, the exact subject on the second, beyond a one-row
	// cap. The match sits on page 2.
	fs.counts["list"][selRowPrimary] = 2
	fs.counts["list"][selRowSubject] = 2
	fs.counts["list"][selSearchInputs] = 1
	fs.counts["list"][selMainRegion] = 1
	fs.counts["list"][`button[aria-label="Older"]`] = 1
	fs.texts["list"]["tr.zA >> nth=0 >> span.bog"] = "Receipt for your order"
	fs.texts["list"]["tr.zA >> nth=1 >> span.bog"] = testSubject

	fs.nextCounts = map[string]int{
		selRowPrimary:   1,
		selRowSubject:   1,
		selSearchInputs: 1,
		selMainRegion:   1,
	}
	fs.nextTexts = map[string]string{
		"tr.zA >> nth=0 >> span.bog":         testSubject,
		"tr.zA >> nth=0 >> span.zF, span.yP": "Journal Alerts",
	}
	fs.nextAttrs = map[string]string{
		"tr.zA >> nth=0 >> td.xW span|title": "Mon, Jan 19, 2026, 5:18 PM",
	}
	fs.openRows["tr.zA >> nth=0"] = true
	fs.openURL = "https://mail.google.com/mail/u/0/#search/q/FMfcgzQbdrXv"

	fs.counts["open"][selSearchInputs] = 1
	fs.counts["open"][selMainRegion] = 1
	fs.counts["open"][selMsgHeader] = 1
	fs.texts["open"][selMsgHeader] = testSubject
	fs.attrs["open"]["span.gD|email"] = "alerts@example.com"
	fs.attrs["open"]["span.gD|name"] = "Journal Alerts"
	fs.counts["open"][selMsgTimestamps] = 1
	fs.attrs["open"]["span.g3 >> nth=0|title"] = "Mon, Jan 19, 2026, 5:18 PM"

	policy := DefaultScanPolicy()
	policy.MaxRows = 1
	policy.MaxPages = 2
	sc := newTestScanner(fs, policy)

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), nil)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.True(t, attempt.Found)
	assert.Equal(t, 2, attempt.PagesScanned)
	assert.Equal(t, 2, attempt.RowsScanned)
	assert.Equal(t, testSubject, outcome.Match.Subject)

	truncated := false
	for _, w := range attempt.Warnings {
		if strings.Contains(w, "scanning the first") {
			truncated = true
		}
	}
	assert.True(t, truncated, "expected a page-truncation warning")
}

func TestScannerRunHydrationRecovery(t *testing.T) {
	fs := newFakeSurface()
	// Shell chrome present, rows arriving only after the initial
	// hydration window has expired.
	fs.counts["list"][selSearchInputs] = 1
	fs.counts["list"][selMainRegion] = 1
	start := fs.clock
	fs.onSleep = func() {
		if fs.clock.Sub(start) >= 2*time.Second {
			populateResultList(fs)
		}
	}

	policy := DefaultScanPolicy()
	policy.HydrationTimeout = 1 * time.Second
	policy.ZeroRowRetries = 2
	sc := newTestScanner(fs, policy)

	var phases []string
	progress := func(phase string, extra map[string]any) { phases = append(phases, phase) }

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), progress)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.True(t, attempt.Found)
	require.NotNil(t, attempt.Hydration)
	require.NotNil(t, attempt.Hydration.Page1)
	assert.True(t, attempt.Hydration.Page1.Recovered)
	assert.Equal(t, 1, attempt.Hydration.Page1.RetryCount)
	assert.False(t, attempt.Hydration.Page1.ZeroRowAmbiguous)
	require.NotNil(t, attempt.RowProbe)
	assert.Equal(t, 2, attempt.RowProbe.Page1Rows)
	require.NotNil(t, attempt.Validation)
	assert.Equal(t, "valid", attempt.Validation.Mode)
	assert.Contains(t, phases, "list_hydration_recovered")

	// Recovery happened on a retry wait, never a re-navigation.
	assert.Len(t, fs.gotoURLs, 1)
}

func TestScannerRunZeroRowAmbiguous(t *testing.T) {
	fs := newFakeSurface()
	// Shell chrome present, no rows, ever.
	fs.counts["list"][selSearchInputs] = 1
	fs.counts["list"][selMainRegion] = 1

	policy := DefaultScanPolicy()
	policy.HydrationTimeout = 1 * time.Second
	policy.ZeroRowRetries = 1
	policy.ZeroRowRefreshes = 1
	sc := newTestScanner(fs, policy)

	var phases []string
	progress := func(phase string, extra map[string]any) { phases = append(phases, phase) }

	outcome := sc.Run(context.Background(), exactStrategy(), scannerTarget(t), progress)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Match)

	attempt := outcome.Attempt
	assert.False(t, attempt.Found)
	require.NotNil(t, attempt.Validation)
	assert.Equal(t, "inconclusive_zero_row_ui", attempt.Validation.Mode)
	require.NotNil(t, attempt.Hydration)
	require.NotNil(t, attempt.Hydration.Page1)
	assert.True(t, attempt.Hydration.Page1.ZeroRowAmbiguous)
	assert.Equal(t, 1, attempt.Hydration.Page1.RetryCount)
	assert.True(t, attempt.Hydration.Page1.RefreshAttempted)
	assert.False(t, attempt.Hydration.Page1.RefreshRecovered)
	require.NotNil(t, attempt.SearchApplied)
	assert.False(t, *attempt.SearchApplied)
	assert.Contains(t, phases, "list_hydration_failed")

	// The refresh re-navigated the same view.
	assert.Len(t, fs.gotoURLs, 2)
	assert.Equal(t, fs.gotoURLs[0], fs.gotoURLs[1])
}

func TestScannerRunBrowseStrategySkipsValidation(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	sc := newTestScanner(fs, DefaultScanPolicy())

	strategy := models.SearchStrategy{
		Name:   ladder.NameBrowseInbox,
		Mode:   models.ModeBrowse,
		Folder: ladder.FolderInbox,
	}
	outcome := sc.Run(context.Background(), strategy, scannerTarget(t), nil)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Match)
	assert.Nil(t, outcome.Attempt.SearchApplied)
	assert.Nil(t, outcome.Attempt.Validation)
	assert.Equal(t, ladder.NameBrowseInbox, outcome.Match.Strategy)
}

func TestScannerRunCanceledContext(t *testing.T) {
	fs := newFakeSurface()
	populateResultList(fs)
	sc := newTestScanner(fs, DefaultScanPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := sc.Run(ctx, exactStrategy(), scannerTarget(t), nil)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Match)
	assert.NotEmpty(t, outcome.Attempt.Error)
}
