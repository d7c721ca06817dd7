package session

import (
	"time"

	"github.com/gotrs-io/mailseek/internal/models"
)

const (
	hydrationPollInterval = 400 * time.Millisecond
	zeroRowRetryWait      = 900 * time.Millisecond
)

// waitForListHydration polls the list surface until rows appear or the
// zero-row state stops being ambiguous. When the initial window expires on
// an ambiguous empty view, up to policy.ZeroRowRetries extra waits are
// spent before giving up.
func (sc *Scanner) waitForListHydration(strategy string, page int, progress models.ProgressFunc) (RowPick, *models.PageHydration) {
	report := &models.PageHydration{
		Strategy:  strategy,
		Page:      page,
		TimeoutMS: int(sc.policy.HydrationTimeout.Milliseconds()),
	}
	finish := func(phase string, probe *models.UIProbe) (RowPick, *models.PageHydration) {
		pick := SelectListRows(sc.surface)
		report.Selector = pick.Selector
		report.RowCount = pick.Count
		report.Hydrated = pick.Count > 0
		report.ZeroRowAmbiguous = ZeroRowAmbiguous(probe)
		report.Probe = probe
		if progress != nil {
			progress(phase, map[string]any{
				"strategy":      strategy,
				"page":          page,
				"rows":          report.RowCount,
				"shell_present": probe.ShellPresent,
				"retry_count":   report.RetryCount,
			})
		}
		return pick, report
	}

	deadline := sc.now().Add(sc.policy.HydrationTimeout)
	var probe *models.UIProbe
	for {
		probe = ProbeList(sc.surface)
		if probe.SelectedRowCount > 0 || !ZeroRowAmbiguous(probe) {
			return finish("list_hydration_probe", probe)
		}
		if !sc.now().Before(deadline) {
			break
		}
		sc.surface.Sleep(hydrationPollInterval)
	}

	// The window expired with the shell present and no rows. The list may
	// simply be slow; spend the retry budget before treating the view as
	// genuinely empty.
	for retry := 0; retry < sc.policy.ZeroRowRetries; retry++ {
		report.RetryCount = retry + 1
		sc.logf("zero-row ambiguous view on page %d; hydration retry %d/%d",
			page, retry+1, sc.policy.ZeroRowRetries)
		sc.surface.Sleep(zeroRowRetryWait)
		probe = ProbeList(sc.surface)
		if probe.SelectedRowCount > 0 {
			report.Recovered = true
			return finish("list_hydration_recovered", probe)
		}
		if !ZeroRowAmbiguous(probe) {
			return finish("list_hydration_probe", probe)
		}
	}

	return finish("list_hydration_failed", probe)
}
