// Package syncbus orchestrates full and incremental synchronization of the
// upstream workspace into the shared mirror.
package syncbus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/google/uuid"
)

// overlapWindow is subtracted from the watermark so a reconciliation run
// re-covers the tail of the previous one. Overlap is safe; the write path
// is an idempotent upsert.
const overlapWindow = 60 * time.Second

// defaultLookback bounds the first reconciliation of a workspace that has
// never completed a sync.
const defaultLookback = 10 * time.Minute

// Client defines the upstream operations the orchestrator needs. The
// production implementation is the tracker client.
type Client interface {
	Teams(ctx context.Context) ([]tracker.Team, error)
	Initiatives(ctx context.Context) ([]tracker.Initiative, error)
	Projects(ctx context.Context, teamID string) ([]tracker.Project, error)
	ProjectsSince(ctx context.Context, teamID string, since time.Time) ([]tracker.Project, error)
	Issues(ctx context.Context, teamID string) ([]tracker.Issue, error)
	IssuesSince(ctx context.Context, teamID string, since time.Time) ([]tracker.Issue, error)
	Comments(ctx context.Context, issueID string) ([]tracker.Comment, error)
}

// Core manages the sync orchestration APIs.
type Core struct {
	log       *logger.Logger
	client    Client
	mirror    *mirrorbus.Core
	mapping   *mappingbus.Core
	workspace string
}

// NewCore constructs a core for sync orchestration.
func NewCore(log *logger.Logger, client Client, mirror *mirrorbus.Core, mapping *mappingbus.Core, workspace string) *Core {
	return &Core{
		log:       log,
		client:    client,
		mirror:    mirror,
		mapping:   mapping,
		workspace: workspace,
	}
}

// SyncHub performs a full sync for one hub's mapped teams.
func (c *Core) SyncHub(ctx context.Context, hubID uuid.UUID) (Result, error) {
	ctx, span := otel.AddSpan(ctx, "business.syncbus.syncHub")
	defer span.End()

	tms, err := c.mapping.QueryActiveByHub(ctx, hubID)
	if err != nil {
		return Result{}, fmt.Errorf("query active by hub: %w", err)
	}

	return c.fullSync(ctx, distinctTeams(tms))
}

// SyncAll performs a full sync across every hub's mapped teams. The
// workspace and each distinct team are fetched once no matter how many hubs
// reference them, and the outcome is reported per hub: shared workspace
// counters and each team's counters are attributed to every hub that maps
// them. There is no combined result for the bulk path.
func (c *Core) SyncAll(ctx context.Context) ([]HubResult, error) {
	ctx, span := otel.AddSpan(ctx, "business.syncbus.syncAll")
	defer span.End()

	tms, err := c.mapping.QueryAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("query all active: %w", err)
	}

	base, outcomes, err := c.syncWorkspace(ctx, distinctTeams(tms))
	if err != nil {
		return nil, err
	}

	hubTeams := make(map[uuid.UUID][]string)
	for _, tm := range tms {
		hubTeams[tm.HubID] = append(hubTeams[tm.HubID], tm.TeamID)
	}

	results := make([]HubResult, 0, len(hubTeams))
	for hubID, teamIDs := range hubTeams {
		res := base
		for _, teamID := range teamIDs {
			o := outcomes[teamID]
			res.add(o.res)
			if o.err != nil {
				res.Errors++
			}
		}
		results = append(results, HubResult{HubID: hubID, Result: res})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].HubID.String() < results[j].HubID.String()
	})

	c.log.Info(ctx, "sync: bulk complete", "hubs", len(results),
		"teams", base.Teams, "initiatives", base.Initiatives)

	return results, nil
}

// teamOutcome pairs one team's counters with its pipeline error, if any.
type teamOutcome struct {
	res Result
	err error
}

// syncWorkspace runs the workspace-level fetches and then the per-team
// pipeline. Failures before the per-team loop abort the run with Success
// false; failures inside the loop are recorded per team and the loop moves
// to the next team.
func (c *Core) syncWorkspace(ctx context.Context, teamIDs []string) (Result, map[string]teamOutcome, error) {
	var base Result

	teams, err := c.client.Teams(ctx)
	if err != nil {
		return base, nil, fmt.Errorf("fetch teams: %w", err)
	}

	base.Teams, err = c.mirror.UpsertTeams(ctx, c.workspace, teams)
	if err != nil {
		return base, nil, fmt.Errorf("upsert teams: %w", err)
	}

	// Initiatives can require broader credential scope than the workspace
	// connection has. Failure here is logged and the run continues.
	if err := c.syncInitiatives(ctx, &base); err != nil {
		c.log.Warn(ctx, "sync: initiatives skipped", "err", err)
		base.Errors++
	}

	base.Success = true

	outcomes := make(map[string]teamOutcome, len(teamIDs))
	for _, teamID := range teamIDs {
		res, err := c.syncTeam(ctx, teamID)
		if err != nil {
			c.log.Error(ctx, "sync: team failed", "team_id", teamID, "err", err)
		}
		outcomes[teamID] = teamOutcome{res: res, err: err}
	}

	return base, outcomes, nil
}

// fullSync aggregates one workspace run into a single result for the
// single-hub path.
func (c *Core) fullSync(ctx context.Context, teamIDs []string) (Result, error) {
	res, outcomes, err := c.syncWorkspace(ctx, teamIDs)
	if err != nil {
		return res, err
	}

	for _, teamID := range teamIDs {
		o := outcomes[teamID]
		res.add(o.res)
		if o.err != nil {
			res.Errors++
		}
	}

	c.log.Info(ctx, "sync: complete",
		"teams", res.Teams, "initiatives", res.Initiatives, "projects", res.Projects,
		"issues", res.Issues, "comments", res.Comments, "errors", res.Errors)

	return res, nil
}

func (c *Core) syncInitiatives(ctx context.Context, res *Result) error {
	initiatives, err := c.client.Initiatives(ctx)
	if err != nil {
		return fmt.Errorf("fetch initiatives: %w", err)
	}

	n, err := c.mirror.UpsertInitiatives(ctx, c.workspace, initiatives)
	res.Initiatives += n
	if err != nil {
		return fmt.Errorf("upsert initiatives: %w", err)
	}

	return nil
}

func (c *Core) syncTeam(ctx context.Context, teamID string) (Result, error) {
	var res Result

	projects, err := c.client.Projects(ctx, teamID)
	if err != nil {
		return res, fmt.Errorf("fetch projects: %w", err)
	}

	res.Projects, err = c.mirror.UpsertProjects(ctx, c.workspace, projects)
	if err != nil {
		return res, fmt.Errorf("upsert projects: %w", err)
	}

	issues, err := c.client.Issues(ctx, teamID)
	if err != nil {
		return res, fmt.Errorf("fetch issues: %w", err)
	}

	res.Issues, err = c.mirror.UpsertIssues(ctx, c.workspace, issues)
	if err != nil {
		return res, fmt.Errorf("upsert issues: %w", err)
	}

	for _, iss := range issues {
		comments, err := c.client.Comments(ctx, iss.ID)
		if err != nil {
			return res, fmt.Errorf("fetch comments: issueID[%s]: %w", iss.ID, err)
		}

		n, err := c.mirror.UpsertComments(ctx, c.workspace, comments)
		res.Comments += n
		if err != nil {
			return res, fmt.Errorf("upsert comments: issueID[%s]: %w", iss.ID, err)
		}
	}

	return res, nil
}

// =============================================================================

// Reconcile performs a watermark-bounded incremental sync across every
// active team. The watermark is the newest synced_at minus the overlap
// window, or a fixed lookback when the workspace has never synced.
func (c *Core) Reconcile(ctx context.Context) (Result, error) {
	ctx, span := otel.AddSpan(ctx, "business.syncbus.reconcile")
	defer span.End()

	tms, err := c.mapping.QueryAllActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("query all active: %w", err)
	}

	since, err := c.watermark(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.Success = true

	for _, teamID := range distinctTeams(tms) {
		teamRes, err := c.reconcileTeam(ctx, teamID, since)
		res.add(teamRes)

		if err != nil {
			c.log.Error(ctx, "reconcile: team failed", "team_id", teamID, "err", err)
			res.Errors++
		}
	}

	c.log.Info(ctx, "reconcile: complete", "since", since,
		"projects", res.Projects, "issues", res.Issues, "comments", res.Comments, "errors", res.Errors)

	return res, nil
}

func (c *Core) watermark(ctx context.Context) (time.Time, error) {
	last, err := c.mirror.MaxSyncedAt(ctx, c.workspace)
	if err != nil {
		return time.Time{}, fmt.Errorf("max synced at: %w", err)
	}

	if last.IsZero() {
		return time.Now().Add(-defaultLookback), nil
	}

	return last.Add(-overlapWindow), nil
}

func (c *Core) reconcileTeam(ctx context.Context, teamID string, since time.Time) (Result, error) {
	var res Result

	projects, err := c.client.ProjectsSince(ctx, teamID, since)
	if err != nil {
		return res, fmt.Errorf("fetch projects since: %w", err)
	}

	res.Projects, err = c.mirror.UpsertProjects(ctx, c.workspace, projects)
	if err != nil {
		return res, fmt.Errorf("upsert projects: %w", err)
	}

	issues, err := c.client.IssuesSince(ctx, teamID, since)
	if err != nil {
		return res, fmt.Errorf("fetch issues since: %w", err)
	}

	res.Issues, err = c.mirror.UpsertIssues(ctx, c.workspace, issues)
	if err != nil {
		return res, fmt.Errorf("upsert issues: %w", err)
	}

	for _, iss := range issues {
		comments, err := c.client.Comments(ctx, iss.ID)
		if err != nil {
			return res, fmt.Errorf("fetch comments: issueID[%s]: %w", iss.ID, err)
		}

		n, err := c.mirror.UpsertComments(ctx, c.workspace, comments)
		res.Comments += n
		if err != nil {
			return res, fmt.Errorf("upsert comments: issueID[%s]: %w", iss.ID, err)
		}
	}

	return res, nil
}

// distinctTeams dedupes team ids across mappings so a team referenced by
// several hubs is fetched once per run. Sorted for deterministic order.
func distinctTeams(tms []mappingbus.TeamMapping) []string {
	seen := make(map[string]struct{}, len(tms))
	var ids []string

	for _, tm := range tms {
		if _, exists := seen[tm.TeamID]; exists {
			continue
		}
		seen[tm.TeamID] = struct{}{}
		ids = append(ids, tm.TeamID)
	}

	sort.Strings(ids)

	return ids
}
