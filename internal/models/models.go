// Package models defines the typed records shared across the resolution
// engine: the immutable match target, planned search strategies, extracted
// message candidates, per-strategy attempt records, and the final result.
package models

import "time"

// Granularity selects how precisely the target receipt time must match.
type Granularity string

const (
	// GranularityMinute requires year/month/day/hour/minute equality in the
	// target timezone.
	GranularityMinute Granularity = "minute"
	// GranularityDay requires only local calendar-date equality.
	GranularityDay Granularity = "day"
)

// MatchTarget describes the one message the engine is asked to locate.
// It is constructed once per run and never mutated by strategies.
type MatchTarget struct {
	Subject     string
	Sender      string // optional filter: email address or display name
	Instant     time.Time
	Date        time.Time // local midnight of the target date in Zone
	Zone        *time.Location
	Granularity Granularity
}

// DateOnly reports whether the target matches on calendar date rather than
// minute.
func (t MatchTarget) DateOnly() bool {
	return t.Granularity == GranularityDay
}

// TimeMatchMode is the wire spelling of the granularity used in JSON output.
func (t MatchTarget) TimeMatchMode() string {
	if t.DateOnly() {
		return "date"
	}
	return "minute"
}

// StrategyMode discriminates how a search strategy reaches its result view.
type StrategyMode string

const (
	// ModeSearch navigates directly to a hash-fragment search URL.
	ModeSearch StrategyMode = "search"
	// ModeSearchInput types the query into the mailbox search field.
	ModeSearchInput StrategyMode = "search_input"
	// ModeBrowse opens a folder without any query constraint.
	ModeBrowse StrategyMode = "browse"
)

// SearchStrategy is one rung of the search ladder. Strategies are immutable
// and produced in a deterministic priority order.
type SearchStrategy struct {
	Name   string       `json:"name"`
	Mode   StrategyMode `json:"mode"`
	Query  string       `json:"query,omitempty"`
	Folder string       `json:"folder,omitempty"`
}

// QueryBased reports whether the strategy's result view is supposed to
// reflect an applied query (and therefore must be validated).
func (s SearchStrategy) QueryBased() bool {
	return s.Mode == ModeSearch || s.Mode == ModeSearchInput
}

// LinkDetail is one outbound link found on a message view. Reason is set
// only on blocked links.
type LinkDetail struct {
	Href   string `json:"href"`
	Text   string `json:"text"`
	Reason string `json:"reason,omitempty"`
}

// WebviewExpansion records the one-shot expansion of a clipped message via
// its full-view link.
type WebviewExpansion struct {
	Attempted        bool   `json:"attempted"`
	Expanded         bool   `json:"expanded"`
	WebviewURL       string `json:"webview_url"`
	FinalURL         string `json:"final_url"`
	Error            string `json:"error,omitempty"`
	BaseLinkCount    int    `json:"base_link_count"`
	WebviewLinkCount int    `json:"webview_link_count"`
	MergedLinkCount  int    `json:"merged_link_count"`
	AddedLinkCount   int    `json:"added_link_count"`
	BodyTextLength   int    `json:"body_text_length,omitempty"`
	BodyTextUsed     bool   `json:"body_text_used,omitempty"`
}

// Candidate is an extracted message summary. Match flags are derived by the
// engine during extraction and read-only afterward.
type Candidate struct {
	Strategy           string            `json:"strategy"`
	Subject            string            `json:"subject"`
	SenderName         string            `json:"sender_name"`
	SenderEmail        string            `json:"sender_email"`
	SenderMatch        bool              `json:"sender_match"`
	RowTimeHint        string            `json:"row_time_hint,omitempty"`
	Timestamps         []string          `json:"timestamps"`
	TimestampsLocal    []string          `json:"timestamps_local"`
	MinuteMatch        bool              `json:"minute_match"`
	DateMatch          bool              `json:"date_match"`
	URL                string            `json:"url"`
	Links              []string          `json:"links"`
	LinkDetails        []LinkDetail      `json:"link_details"`
	AllLinks           []string          `json:"all_links,omitempty"`
	AllLinkDetails     []LinkDetail      `json:"all_link_details,omitempty"`
	BlockedLinks       []string          `json:"blocked_links"`
	BlockedLinkDetails []LinkDetail      `json:"blocked_link_details,omitempty"`
	BodyText           string            `json:"body_text,omitempty"`
	BodyTextSource     string            `json:"body_text_source,omitempty"`
	Webview            *WebviewExpansion `json:"webview_expansion,omitempty"`
	TimeMatchMode      string            `json:"time_match_mode"`
}

// CandidateKey is the deduplication identity of a candidate.
type CandidateKey struct {
	Strategy string
	Subject  string
	TimeHint string
	URL      string
}

// Key returns the deduplication identity for this candidate.
func (c Candidate) Key() CandidateKey {
	return CandidateKey{
		Strategy: c.Strategy,
		Subject:  c.Subject,
		TimeHint: c.RowTimeHint,
		URL:      c.URL,
	}
}

// RowSample is a lightweight diagnostic record of one scanned list row.
type RowSample struct {
	Page     int    `json:"page"`
	Row      int    `json:"row"`
	Subject  string `json:"subject"`
	Sender   string `json:"sender"`
	TimeHint string `json:"row_time_hint"`
}

// RowProbe summarizes the first result page of a query-mode strategy for
// the content-validity gate.
type RowProbe struct {
	Page1Rows             int  `json:"page1_rows"`
	Page1ExactSubjectHits int  `json:"page1_exact_subject_hits"`
	Page1BroadSubjectHits int  `json:"page1_broad_subject_hits"`
	Page1Hydrated         bool `json:"page1_hydrated"`
	Page1ZeroRowAmbiguous bool `json:"page1_zero_row_ambiguous"`
}

// SearchValidation records whether a query-mode view's content was
// consistent with the query that was supposedly applied.
type SearchValidation struct {
	Mode   string    `json:"mode"` // valid | invalid_content_mismatch | inconclusive_zero_row_ui
	Reason string    `json:"reason,omitempty"`
	Probe  *RowProbe `json:"probe,omitempty"`
}

// SelectorCount pairs a structural selector with the number of nodes it
// matched at probe time.
type SelectorCount struct {
	Selector string `json:"selector"`
	Count    int    `json:"count"`
}

// UIProbe is a structural snapshot of the live list surface. It is
// recomputed on every poll and kept only as attempt diagnostics.
type UIProbe struct {
	URL              string          `json:"url"`
	RowCandidates    []SelectorCount `json:"row_candidates"`
	SelectedSelector string          `json:"selected_row_selector"`
	SelectedRowCount int             `json:"selected_row_count"`
	SubjectNodes     int             `json:"subject_nodes"`
	SearchInputs     int             `json:"search_inputs"`
	MainRegions      int             `json:"main_regions"`
	MessageHeaders   int             `json:"message_headers"`
	Spinners         []SelectorCount `json:"spinners,omitempty"`
	ShellPresent     bool            `json:"shell_present"`
}

// PageHydration records the hydration outcome of one list page.
type PageHydration struct {
	Strategy         string   `json:"strategy"`
	Page             int      `json:"page"`
	Selector         string   `json:"selected_row_selector"`
	RowCount         int      `json:"selected_row_count"`
	Hydrated         bool     `json:"hydrated"`
	Recovered        bool     `json:"recovered_from_zero_rows"`
	ZeroRowAmbiguous bool     `json:"zero_row_ambiguous"`
	RetryCount       int      `json:"retry_count"`
	TimeoutMS        int      `json:"timeout_ms"`
	RefreshAttempted bool     `json:"refresh_attempted"`
	RefreshRecovered bool     `json:"refresh_recovered"`
	Probe            *UIProbe `json:"ui_probe,omitempty"`
}

// HydrationReport keeps the page-1 hydration diagnostics of an attempt.
type HydrationReport struct {
	Page1 *PageHydration `json:"page1,omitempty"`
}

// Attempt is the append-only execution record of one strategy.
type Attempt struct {
	Name            string            `json:"name"`
	Mode            StrategyMode      `json:"mode"`
	Query           string            `json:"query,omitempty"`
	Folder          string            `json:"folder,omitempty"`
	TargetURL       string            `json:"target_url,omitempty"`
	InitialURL      string            `json:"initial_url,omitempty"`
	FinalURL        string            `json:"final_url,omitempty"`
	SearchApplied   *bool             `json:"search_applied,omitempty"`
	InboxLike       *bool             `json:"inbox_like,omitempty"`
	ContentMismatch bool              `json:"content_mismatch"`
	PagesScanned    int               `json:"pages_scanned"`
	RowsScanned     int               `json:"rows_scanned"`
	SampleRows      []RowSample       `json:"sample_rows,omitempty"`
	CandidateCount  int               `json:"candidate_count"`
	RowProbe        *RowProbe         `json:"search_row_probe,omitempty"`
	Validation      *SearchValidation `json:"search_validation,omitempty"`
	Hydration       *HydrationReport  `json:"list_hydration,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	Found           bool              `json:"found"`
	Error           string            `json:"error,omitempty"`
}

// FeedReport summarizes the feed channel's participation in a run.
type FeedReport struct {
	Attempted         bool   `json:"attempted"`
	Skipped           bool   `json:"skipped,omitempty"`
	Insecure          bool   `json:"insecure,omitempty"`
	Entries           int    `json:"entries,omitempty"`
	SubjectCandidates int    `json:"subject_candidates,omitempty"`
	Error             string `json:"error,omitempty"`
}

// ResolutionResult is the engine's sole output. found=false is a valid
// terminal state, not an error.
type ResolutionResult struct {
	Found                 bool             `json:"found"`
	Method                string           `json:"method,omitempty"` // feed | interactive
	Strategy              string           `json:"strategy,omitempty"`
	Subject               string           `json:"subject"`
	SenderFilter          string           `json:"sender_filter,omitempty"`
	TargetReceivedAtLocal string           `json:"target_received_at_local"`
	TargetReceivedOnLocal string           `json:"target_received_on_local"`
	TimeMatchMode         string           `json:"time_match_mode"`
	SearchQuery           string           `json:"search_query"`
	SearchLadder          []SearchStrategy `json:"search_ladder"`
	Match                 *Candidate       `json:"match,omitempty"`
	Candidates            []Candidate      `json:"candidates"`
	Attempts              []Attempt        `json:"attempts"`
	Feed                  *FeedReport      `json:"feed,omitempty"`
	Warnings              []string         `json:"warnings"`
	Errors                []string         `json:"errors"`
}

// BoolPtr is a small helper for the tri-state attempt fields.
func BoolPtr(v bool) *bool { return &v }
