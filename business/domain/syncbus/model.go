package syncbus

import "github.com/google/uuid"

// Result carries the structured outcome of a sync or reconciliation run.
// The per-kind counters and the error counter are the authoritative signal;
// Success reports only whether the run got as far as per-team work, so a
// run with per-team failures can still be "successful".
type Result struct {
	Teams       int
	Initiatives int
	Projects    int
	Issues      int
	Comments    int
	Errors      int
	Success     bool
}

// HubResult is one hub's view of a bulk run. The bulk path reports per hub
// only; there is no combined outcome, and no boolean summarizes the run.
type HubResult struct {
	HubID uuid.UUID
	Result
}

func (r *Result) add(other Result) {
	r.Teams += other.Teams
	r.Initiatives += other.Initiatives
	r.Projects += other.Projects
	r.Issues += other.Issues
	r.Comments += other.Comments
	r.Errors += other.Errors
}
