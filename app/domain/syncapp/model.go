package syncapp

import (
	"encoding/json"

	"github.com/dcapri/hubmirror/business/domain/syncbus"
)

// Result reports the outcome of a sync or reconciliation run. The counters
// are authoritative; success only says the run reached per-team work.
type Result struct {
	Teams       int  `json:"teams"`
	Initiatives int  `json:"initiatives"`
	Projects    int  `json:"projects"`
	Issues      int  `json:"issues"`
	Comments    int  `json:"comments"`
	Errors      int  `json:"errors"`
	Success     bool `json:"success"`
}

// Encode implements the web.Encoder interface.
func (app Result) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppResult(bus syncbus.Result) Result {
	return Result{
		Teams:       bus.Teams,
		Initiatives: bus.Initiatives,
		Projects:    bus.Projects,
		Issues:      bus.Issues,
		Comments:    bus.Comments,
		Errors:      bus.Errors,
		Success:     bus.Success,
	}
}
