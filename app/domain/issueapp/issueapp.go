// Package issueapp maintains the hub-facing read surface over the mirror.
package issueapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/app/sdk/query"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/page"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

type app struct {
	mirrorBus  *mirrorbus.Core
	mappingBus *mappingbus.Core
	workspace  string
}

func newApp(mirrorBus *mirrorbus.Core, mappingBus *mappingbus.Core, workspace string) *app {
	return &app{
		mirrorBus:  mirrorBus,
		mappingBus: mappingBus,
		workspace:  workspace,
	}
}

// scope resolves the hub's active mappings into a visibility scope. This
// runs fresh on every request; the mapping store underneath is the cached
// one, so mutation-time invalidation is what keeps this honest.
func (a *app) scope(ctx context.Context) (mirrorbus.Scope, error) {
	hub, err := mid.GetHub(ctx)
	if err != nil {
		return mirrorbus.Scope{}, err
	}

	tms, err := a.mappingBus.QueryActiveByHub(ctx, hub.ID)
	if err != nil {
		return mirrorbus.Scope{}, err
	}

	return mirrorbus.NewScope(a.workspace, tms), nil
}

// queryIssues returns the hub's visible issues with paging.
func (a *app) queryIssues(ctx context.Context, r *http.Request) web.Encoder {
	qp := parseQueryParams(r)

	pg, err := page.Parse(qp.Page, qp.Rows)
	if err != nil {
		return errs.NewFieldErrors("page", err)
	}

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, defaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	issues, total, err := a.mirrorBus.QueryIssues(ctx, scope, parseFilter(qp), orderBy, pg)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %s", err)
	}

	return query.NewResult(toAppIssues(issues), total, pg)
}

// queryIssueByID returns one visible issue.
func (a *app) queryIssueByID(ctx context.Context, r *http.Request) web.Encoder {
	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	iss, err := a.mirrorBus.QueryIssueByID(ctx, scope, web.Param(r, "issue_id"))
	if err != nil {
		if errors.Is(err, mirrorbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: %s", err)
	}

	return toAppIssue(iss)
}

// queryComments returns the comments of a visible issue.
func (a *app) queryComments(ctx context.Context, r *http.Request) web.Encoder {
	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	comments, err := a.mirrorBus.QueryComments(ctx, scope, web.Param(r, "issue_id"))
	if err != nil {
		if errors.Is(err, mirrorbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query comments: %s", err)
	}

	return Comments(toAppComments(comments))
}

// queryTeams returns the hub's mapped teams.
func (a *app) queryTeams(ctx context.Context, _ *http.Request) web.Encoder {
	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	teams, err := a.mirrorBus.QueryTeams(ctx, scope)
	if err != nil {
		return errs.Errorf(errs.Internal, "query teams: %s", err)
	}

	return toAppTeams(teams)
}

// queryProjects returns the hub's visible projects.
func (a *app) queryProjects(ctx context.Context, _ *http.Request) web.Encoder {
	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	projects, err := a.mirrorBus.QueryProjects(ctx, scope)
	if err != nil {
		return errs.Errorf(errs.Internal, "query projects: %s", err)
	}

	return toAppProjects(projects)
}

// queryInitiatives returns the hub's visible initiatives.
func (a *app) queryInitiatives(ctx context.Context, _ *http.Request) web.Encoder {
	scope, err := a.scope(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "scope: %s", err)
	}

	initiatives, err := a.mirrorBus.QueryInitiatives(ctx, scope)
	if err != nil {
		return errs.Errorf(errs.Internal, "query initiatives: %s", err)
	}

	return toAppInitiatives(initiatives)
}
