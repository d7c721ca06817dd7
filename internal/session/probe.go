package session

import (
	"github.com/gotrs-io/mailseek/internal/models"
)

// Structural selectors for the mailbox list surface. Row selectors are
// ordered by specificity; the prober takes the first one that yields rows.
const (
	selRowPrimary   = "tr.zA"
	selRowByRole    = `tr[role="row"]:has(span.bog)`
	selRowInMain    = `[role="main"] tr:has(span.bog)`
	selRowSubject   = "span.bog"
	selRowSender    = "span.zF, span.yP"
	selRowTime      = "td.xW span"
	selSearchInputs = `input[aria-label="Search mail"], input[name="q"]`
	selMainRegion   = `[role="main"]`
	selMsgHeader    = "h2.hP"
)

var rowSelectors = []string{selRowPrimary, selRowByRole, selRowInMain}

var spinnerSelectors = []string{
	`div[role="progressbar"]`,
	`[aria-label*="Loading"]`,
	`[aria-label*="loading"]`,
	".v2",
	".aAk",
}

// RowPick is the row-selection outcome of one probe: the selector that
// produced rows (or the primary selector as fallback) and per-selector
// counts for diagnostics.
type RowPick struct {
	Selector   string
	Count      int
	Candidates []models.SelectorCount
}

// SelectListRows tries each row-selection strategy in specificity order
// and returns the first that finds rows.
func SelectListRows(s Surface) RowPick {
	pick := RowPick{Selector: selRowPrimary}
	for _, selector := range rowSelectors {
		count := s.Count(selector)
		pick.Candidates = append(pick.Candidates, models.SelectorCount{Selector: selector, Count: count})
		if count > 0 {
			pick.Selector = selector
			pick.Count = count
			return pick
		}
	}
	return pick
}

// ProbeList takes a structural snapshot of the live list surface. The
// snapshot is ephemeral: it is recomputed on every poll and kept only as
// attempt diagnostics.
func ProbeList(s Surface) *models.UIProbe {
	var spinners []models.SelectorCount
	for _, selector := range spinnerSelectors {
		if count := s.Count(selector); count > 0 {
			spinners = append(spinners, models.SelectorCount{Selector: selector, Count: count})
		}
	}
	pick := SelectListRows(s)
	probe := &models.UIProbe{
		URL:              s.CurrentURL(),
		RowCandidates:    pick.Candidates,
		SelectedSelector: pick.Selector,
		SelectedRowCount: pick.Count,
		SubjectNodes:     s.Count(selRowSubject),
		SearchInputs:     s.Count(selSearchInputs),
		MainRegions:      s.Count(selMainRegion),
		MessageHeaders:   s.Count(selMsgHeader),
		Spinners:         spinners,
	}
	probe.ShellPresent = probe.SearchInputs > 0 || probe.MainRegions > 0 || probe.MessageHeaders > 0
	return probe
}

// ZeroRowAmbiguous classifies a zero-row render. A view with rows is never
// ambiguous; a zero-row view is ambiguous exactly when the surrounding
// shell chrome is present, because the list may still be hydrating.
// Trusting a single zero-row read without this check produces false
// negatives under asynchronous rendering.
func ZeroRowAmbiguous(probe *models.UIProbe) bool {
	if probe == nil {
		return false
	}
	if probe.SelectedRowCount > 0 || probe.SubjectNodes > 0 {
		return false
	}
	return probe.ShellPresent
}
