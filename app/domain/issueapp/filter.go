package issueapp

import (
	"net/http"

	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
)

type queryParams struct {
	Page      string
	Rows      string
	OrderBy   string
	TeamID    string
	ProjectID string
	StateType string
}

func parseQueryParams(r *http.Request) queryParams {
	values := r.URL.Query()

	return queryParams{
		Page:      values.Get("page"),
		Rows:      values.Get("rows"),
		OrderBy:   values.Get("orderBy"),
		TeamID:    values.Get("team_id"),
		ProjectID: values.Get("project_id"),
		StateType: values.Get("state_type"),
	}
}

func parseFilter(qp queryParams) mirrorbus.QueryFilter {
	var filter mirrorbus.QueryFilter

	if qp.TeamID != "" {
		filter.TeamID = &qp.TeamID
	}

	if qp.ProjectID != "" {
		filter.ProjectID = &qp.ProjectID
	}

	if qp.StateType != "" {
		filter.StateType = &qp.StateType
	}

	return filter
}

var defaultOrderBy = order.NewBy("updated_at", order.DESC)

var orderByFields = map[string]string{
	"updated_at": "updated_at",
	"created_at": "created_at",
	"priority":   "priority",
	"identifier": "identifier",
}
