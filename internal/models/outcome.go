package models

// ProgressFunc receives fine-grained progress events from a strategy run
// so the orchestrator can checkpoint them. Implementations must be cheap
// and must not fail the run.
type ProgressFunc func(phase string, extra map[string]any)

// StrategyOutcome is everything one strategy run hands back to the
// orchestrator.
type StrategyOutcome struct {
	Attempt    Attempt
	Candidates []Candidate
	Match      *Candidate
	Warnings   []string
}
