package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gotrs-io/mailseek/internal/ladder"
	"github.com/gotrs-io/mailseek/internal/match"
	"github.com/gotrs-io/mailseek/internal/models"
)

// quickTimeout bounds the cheap per-node reads (row cells, attribute
// peeks) so one stale locator cannot stall a whole scan.
const quickTimeout = 2 * time.Second

const (
	rowOpenTimeout  = 12 * time.Second
	rowSettleWait   = 700 * time.Millisecond
	maxSampleRows   = 30
	openViewWaitFor = selMsgHeader + ", " + selMsgBody
)

// ScanPolicy bounds one strategy's traversal of the mailbox list.
type ScanPolicy struct {
	MaxRows          int
	MaxPages         int
	HydrationTimeout time.Duration
	ZeroRowRetries   int
	ZeroRowRefreshes int
	IncludeBody      bool
}

// DefaultScanPolicy returns the scan bounds used when configuration does
// not override them.
func DefaultScanPolicy() ScanPolicy {
	return ScanPolicy{
		MaxRows:          40,
		MaxPages:         6,
		HydrationTimeout: 7 * time.Second,
		ZeroRowRetries:   2,
		ZeroRowRefreshes: 1,
	}
}

// Scanner runs one strategy at a time against a mailbox surface. It holds
// no cross-strategy state; every Run starts from a fresh navigation.
type Scanner struct {
	surface Surface
	mailbox string
	policy  ScanPolicy
	logger  *log.Logger
	verbose bool
	now     func() time.Time
}

// ScannerOption customizes a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the scanner's logger.
func WithLogger(logger *log.Logger) ScannerOption {
	return func(sc *Scanner) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// WithVerbose enables per-step scan logging.
func WithVerbose(verbose bool) ScannerOption {
	return func(sc *Scanner) { sc.verbose = verbose }
}

// WithClock overrides the scanner's time source for tests.
func WithClock(now func() time.Time) ScannerOption {
	return func(sc *Scanner) {
		if now != nil {
			sc.now = now
		}
	}
}

// NewScanner builds a scanner over an already-authenticated surface.
func NewScanner(surface Surface, mailbox string, policy ScanPolicy, opts ...ScannerOption) *Scanner {
	if policy.MaxRows <= 0 {
		policy.MaxRows = DefaultScanPolicy().MaxRows
	}
	if policy.MaxPages <= 0 {
		policy.MaxPages = DefaultScanPolicy().MaxPages
	}
	if policy.HydrationTimeout <= 0 {
		policy.HydrationTimeout = DefaultScanPolicy().HydrationTimeout
	}
	sc := &Scanner{
		surface: surface,
		mailbox: mailbox,
		policy:  policy,
		logger:  log.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

func (sc *Scanner) logf(format string, args ...any) {
	if sc.verbose {
		sc.logger.Printf("[scan] "+format, args...)
	}
}

// scanResult is the internal outcome of one traversal round.
type scanResult struct {
	candidates []models.Candidate
	match      *models.Candidate
	probe      models.RowProbe
	hydration  *models.PageHydration
	pages      int
	rows       int
	samples    []models.RowSample
	warnings   []string
	mismatch   bool
	gateReason string
}

// Run executes one strategy end to end and returns its outcome. A nil
// match with no error is a legitimate miss.
func (sc *Scanner) Run(ctx context.Context, strategy models.SearchStrategy, target models.MatchTarget, progress models.ProgressFunc) *models.StrategyOutcome {
	outcome := &models.StrategyOutcome{
		Attempt: models.Attempt{
			Name:   strategy.Name,
			Mode:   strategy.Mode,
			Query:  strategy.Query,
			Folder: strategy.Folder,
		},
	}
	attempt := &outcome.Attempt

	if err := ctx.Err(); err != nil {
		attempt.Error = err.Error()
		return outcome
	}
	nav, err := sc.gotoView(strategy)
	if err != nil {
		attempt.Error = err.Error()
		return outcome
	}
	sc.recordNav(attempt, strategy, nav)
	if strategy.QueryBased() && (!nav.SearchApplied || nav.InboxLike) {
		attempt.Error = "attempt_search_not_applied"
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("strategy %s: search view did not apply the query; skipping scan", strategy.Name))
		attempt.FinalURL = sc.surface.CurrentURL()
		return outcome
	}

	result := sc.scanView(ctx, strategy, target, progress)

	// One refresh when page 1 stayed ambiguously empty: the view may have
	// hydrated everything except the row list.
	if result.match == nil && result.probe.Page1Rows == 0 &&
		result.probe.Page1ZeroRowAmbiguous && sc.policy.ZeroRowRefreshes > 0 {
		sc.logf("strategy %s: ambiguous empty page 1; refreshing view once", strategy.Name)
		if progress != nil {
			progress("attempt_zero_row_refresh", map[string]any{"strategy": strategy.Name})
		}
		refreshNav, err := sc.gotoView(strategy)
		if err == nil && (!strategy.QueryBased() || (refreshNav.SearchApplied && !refreshNav.InboxLike)) {
			refreshed := sc.scanView(ctx, strategy, target, progress)
			refreshed.warnings = append(result.warnings, refreshed.warnings...)
			if refreshed.hydration != nil {
				refreshed.hydration.RefreshAttempted = true
				refreshed.hydration.RefreshRecovered = refreshed.probe.Page1Rows > 0
			}
			result = refreshed
		} else {
			result.warnings = append(result.warnings,
				fmt.Sprintf("strategy %s: zero-row refresh navigation failed", strategy.Name))
		}
	}

	sc.recordScan(attempt, outcome, strategy, result)
	return outcome
}

func (sc *Scanner) recordNav(attempt *models.Attempt, strategy models.SearchStrategy, nav *NavOutcome) {
	attempt.TargetURL = nav.TargetURL
	attempt.InitialURL = nav.CurrentURL
	if strategy.QueryBased() {
		attempt.SearchApplied = models.BoolPtr(nav.SearchApplied)
		attempt.InboxLike = models.BoolPtr(nav.InboxLike)
	}
}

func (sc *Scanner) recordScan(attempt *models.Attempt, outcome *models.StrategyOutcome, strategy models.SearchStrategy, result scanResult) {
	attempt.FinalURL = sc.surface.CurrentURL()
	attempt.PagesScanned = result.pages
	attempt.RowsScanned = result.rows
	attempt.SampleRows = result.samples
	attempt.CandidateCount = len(result.candidates)
	attempt.ContentMismatch = result.mismatch
	probe := result.probe
	attempt.RowProbe = &probe
	attempt.Hydration = &models.HydrationReport{Page1: result.hydration}
	attempt.Warnings = result.warnings
	attempt.Validation = sc.validate(strategy, result)
	// A view that failed validation never applied the query, whatever the
	// URL claimed.
	if attempt.Validation != nil && attempt.Validation.Mode != "valid" {
		attempt.SearchApplied = models.BoolPtr(false)
	}
	attempt.Found = result.match != nil

	outcome.Candidates = result.candidates
	outcome.Match = result.match
	outcome.Warnings = append(outcome.Warnings, result.warnings...)
}

// validate classifies a query-mode attempt's result view. Browse
// strategies carry no query to validate.
func (sc *Scanner) validate(strategy models.SearchStrategy, result scanResult) *models.SearchValidation {
	if !strategy.QueryBased() {
		return nil
	}
	probe := result.probe
	validation := &models.SearchValidation{Mode: "valid", Probe: &probe}
	switch {
	case result.mismatch:
		validation.Mode = "invalid_content_mismatch"
		validation.Reason = result.gateReason
	case probe.Page1Rows == 0 && probe.Page1ZeroRowAmbiguous:
		validation.Mode = "inconclusive_zero_row_ui"
		validation.Reason = "page 1 rendered zero rows while the mailbox shell was present"
	}
	return validation
}

// contentGate checks that page-1 content is consistent with the query the
// view claims to have applied. An exact-subject query whose first page
// contains no exact subject hit means the UI silently showed something
// else.
func contentGate(strategy models.SearchStrategy, probe models.RowProbe) (bool, string) {
	if !strategy.QueryBased() || probe.Page1Rows == 0 {
		return true, ""
	}
	switch strategy.Name {
	case ladder.NameStrictExactSubject, ladder.NameExactSubjectOnly, ladder.NameSubjectWindowNoSender:
		if probe.Page1ExactSubjectHits == 0 {
			return false, fmt.Sprintf("%d rows on page 1 without a single exact subject hit", probe.Page1Rows)
		}
	case ladder.NameSenderBroadWindow:
		if probe.Page1BroadSubjectHits == 0 {
			return false, fmt.Sprintf("%d rows on page 1 without any broad subject hit", probe.Page1Rows)
		}
	}
	return true, ""
}

// scanView walks the current result view page by page, opening rows whose
// subject matches and extracting them, until a full match, the row budget,
// or the page budget ends the traversal.
func (sc *Scanner) scanView(ctx context.Context, strategy models.SearchStrategy, target models.MatchTarget, progress models.ProgressFunc) scanResult {
	var result scanResult

	pick, hydration := sc.waitForListHydration(strategy.Name, 1, progress)
	result.hydration = hydration
	result.probe = models.RowProbe{
		Page1Rows:             pick.Count,
		Page1Hydrated:         hydration.Hydrated,
		Page1ZeroRowAmbiguous: hydration.ZeroRowAmbiguous,
	}

	for page := 1; page <= sc.policy.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			result.warnings = append(result.warnings,
				fmt.Sprintf("strategy %s: canceled on page %d: %v", strategy.Name, page, err))
			return result
		}
		result.pages = page
		// The row cap bounds each page, not the whole traversal; a page
		// larger than the cap is truncated and the scan moves on.
		rowCount := pick.Count
		if rowCount > sc.policy.MaxRows {
			rowCount = sc.policy.MaxRows
			result.warnings = append(result.warnings,
				fmt.Sprintf("strategy %s: page %d holds %d rows; scanning the first %d", strategy.Name, page, pick.Count, sc.policy.MaxRows))
		}

		// Page 1 is probed in full before any row is opened so the
		// content gate can reject a mislabeled view cheaply.
		if page == 1 {
			for i := 0; i < pick.Count; i++ {
				subject := sc.rowSubject(pick, i)
				exact, broad := match.ProbeMatches(subject, target.Subject)
				if exact {
					result.probe.Page1ExactSubjectHits++
				}
				if broad {
					result.probe.Page1BroadSubjectHits++
				}
			}
			if ok, reason := contentGate(strategy, result.probe); !ok {
				result.mismatch = true
				result.gateReason = reason
				result.warnings = append(result.warnings,
					fmt.Sprintf("strategy %s: result view content does not reflect the query (%s)", strategy.Name, reason))
				return result
			}
		}

		for i := 0; i < rowCount; i++ {
			result.rows++

			subject := sc.rowSubject(pick, i)
			sender := sc.rowSender(pick, i)
			timeHint := sc.rowTimeHint(pick, i)
			if len(result.samples) < maxSampleRows {
				result.samples = append(result.samples, models.RowSample{
					Page: page, Row: i, Subject: subject, Sender: sender, TimeHint: timeHint,
				})
			}
			if !match.SubjectMatches(subject, target.Subject) {
				continue
			}
			if progress != nil {
				progress("candidate_row_match", map[string]any{
					"strategy": strategy.Name, "page": page, "row": i, "subject": subject,
				})
			}

			candidate, err := sc.openAndExtract(strategy, target, pick, i, subject, sender, timeHint, progress)
			if err != nil {
				result.warnings = append(result.warnings,
					fmt.Sprintf("strategy %s: page %d row %d: %v", strategy.Name, page, i, err))
				pick = SelectListRows(sc.surface)
				continue
			}
			result.candidates = append(result.candidates, *candidate)
			if CandidateMatches(candidate, target) {
				result.match = candidate
				return result
			}
			// Opening a message rerenders the list; reselect rows before
			// touching further indexes.
			pick = SelectListRows(sc.surface)
		}

		if page == sc.policy.MaxPages {
			if rowCount > 0 {
				result.warnings = append(result.warnings,
					fmt.Sprintf("strategy %s: page budget %d reached; scan truncated", strategy.Name, sc.policy.MaxPages))
			}
			return result
		}
		if !sc.nextPage() {
			return result
		}
		pick, _ = sc.waitForListHydration(strategy.Name, page+1, progress)
		if pick.Count == 0 {
			return result
		}
	}
	return result
}

func (sc *Scanner) rowSubject(pick RowPick, idx int) string {
	return sc.surface.Text(fmt.Sprintf("%s >> nth=%d >> %s", pick.Selector, idx, selRowSubject), quickTimeout)
}

func (sc *Scanner) rowSender(pick RowPick, idx int) string {
	row := fmt.Sprintf("%s >> nth=%d", pick.Selector, idx)
	if email := sc.surface.Attr(row+" >> "+selRowSender, "email", quickTimeout); email != "" {
		return email
	}
	return sc.surface.Text(row+" >> "+selRowSender, quickTimeout)
}

func (sc *Scanner) rowTimeHint(pick RowPick, idx int) string {
	row := fmt.Sprintf("%s >> nth=%d", pick.Selector, idx)
	if title := sc.surface.Attr(row+" >> "+selRowTime, "title", quickTimeout); title != "" {
		return title
	}
	return sc.surface.Text(row+" >> "+selRowTime, quickTimeout)
}

// openAndExtract clicks a matched row, extracts the open message, and
// always attempts to restore the list view before returning.
func (sc *Scanner) openAndExtract(strategy models.SearchStrategy, target models.MatchTarget, pick RowPick, idx int, rowSubject, rowSender, timeHint string, progress models.ProgressFunc) (*models.Candidate, error) {
	row := fmt.Sprintf("%s >> nth=%d", pick.Selector, idx)
	if err := sc.surface.Click(row, rowOpenTimeout, false); err != nil {
		if err := sc.surface.Click(row, rowOpenTimeout, true); err != nil {
			return nil, fmt.Errorf("could not open row: %w", err)
		}
	}
	sc.surface.Sleep(rowSettleWait)
	if err := sc.surface.WaitAttached(openViewWaitFor, 6*time.Second); err != nil {
		sc.waitForSurfaceReady("row open")
	}
	if progress != nil {
		progress("candidate_opened", map[string]any{
			"strategy": strategy.Name, "row": idx, "url": sc.surface.CurrentURL(),
		})
	}

	defer sc.returnToList()

	candidate := sc.extractCandidate(strategy.Name, target, rowSubject, rowSender, timeHint)
	if strings.TrimSpace(candidate.Subject) == "" {
		return nil, fmt.Errorf("opened view exposed no subject")
	}
	if progress != nil {
		progress("candidate_extracted", map[string]any{
			"strategy":     strategy.Name,
			"subject":      candidate.Subject,
			"minute_match": candidate.MinuteMatch,
			"date_match":   candidate.DateMatch,
			"sender_match": candidate.SenderMatch,
		})
	}
	return candidate, nil
}
