// Package mirrorbus provides business access to the shared mirror of the
// upstream workspace. Writes are idempotent upserts by natural key; reads
// are always filtered through a hub's visibility scope.
package mirrorbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/page"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/dcapri/hubmirror/foundation/tracker"
)

// ErrNotFound is returned when an entity does not exist or is outside the
// caller's scope. The two cases are indistinguishable on purpose.
var ErrNotFound = errors.New("entity not found")

// batchSize is the number of rows persisted per upsert statement. Each batch
// is atomic; the batch sequence is not, so a failed batch leaves earlier
// batches committed and aborts the rest.
const batchSize = 50

// Storer defines the behavior required by the mirrorbus to interact with
// the database. Upsert methods receive at most batchSize rows and must
// persist them in a single statement.
type Storer interface {
	UpsertTeams(ctx context.Context, rows []TeamRow) error
	UpsertProjects(ctx context.Context, rows []ProjectRow) error
	UpsertInitiatives(ctx context.Context, rows []InitiativeRow) error
	UpsertIssues(ctx context.Context, rows []IssueRow) error
	UpsertComments(ctx context.Context, rows []CommentRow) error

	DeleteTeam(ctx context.Context, workspace string, teamID string) error
	DeleteProject(ctx context.Context, workspace string, projectID string) error
	DeleteInitiative(ctx context.Context, workspace string, initiativeID string) error
	DeleteIssue(ctx context.Context, workspace string, issueID string) error
	DeleteComment(ctx context.Context, workspace string, commentID string) error

	QueryIssues(ctx context.Context, workspace string, teamIDs []string, filter QueryFilter, orderBy order.By) ([]IssueRow, error)
	QueryIssueByID(ctx context.Context, workspace string, issueID string) (IssueRow, error)
	QueryCommentsByIssue(ctx context.Context, workspace string, issueID string) ([]CommentRow, error)
	QueryTeams(ctx context.Context, workspace string, teamIDs []string) ([]TeamRow, error)
	QueryProjectsByTeams(ctx context.Context, workspace string, teamIDs []string) ([]ProjectRow, error)
	QueryInitiatives(ctx context.Context, workspace string) ([]InitiativeRow, error)

	MaxSyncedAt(ctx context.Context, workspace string) (time.Time, error)
}

// QueryFilter holds the optional filters for an issue query. TeamID is
// validated against the scope before it reaches the store.
type QueryFilter struct {
	TeamID    *string
	ProjectID *string
	StateType *string
}

// Core manages the set of APIs for mirror access.
type Core struct {
	storer Storer
	log    *logger.Logger
}

// NewCore constructs a core for mirror api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		storer: storer,
		log:    log,
	}
}

// =============================================================================
// Write path

// UpsertTeams maps and persists upstream teams, returning the row count.
func (c *Core) UpsertTeams(ctx context.Context, workspace string, teams []tracker.Team) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.upsertTeams")
	defer span.End()

	syncedAt := time.Now()

	rows := make([]TeamRow, len(teams))
	for i, t := range teams {
		rows[i] = ToTeamRow(workspace, t, syncedAt)
	}

	return upsertBatched(ctx, rows, c.storer.UpsertTeams)
}

// UpsertProjects maps and persists upstream projects, returning the row count.
func (c *Core) UpsertProjects(ctx context.Context, workspace string, projects []tracker.Project) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.upsertProjects")
	defer span.End()

	syncedAt := time.Now()

	rows := make([]ProjectRow, len(projects))
	for i, p := range projects {
		rows[i] = ToProjectRow(workspace, p, syncedAt)
	}

	return upsertBatched(ctx, rows, c.storer.UpsertProjects)
}

// UpsertInitiatives maps and persists upstream initiatives, returning the
// row count.
func (c *Core) UpsertInitiatives(ctx context.Context, workspace string, initiatives []tracker.Initiative) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.upsertInitiatives")
	defer span.End()

	syncedAt := time.Now()

	rows := make([]InitiativeRow, len(initiatives))
	for i, ini := range initiatives {
		rows[i] = ToInitiativeRow(workspace, ini, syncedAt)
	}

	return upsertBatched(ctx, rows, c.storer.UpsertInitiatives)
}

// UpsertIssues maps and persists upstream issues, returning the row count.
func (c *Core) UpsertIssues(ctx context.Context, workspace string, issues []tracker.Issue) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.upsertIssues")
	defer span.End()

	syncedAt := time.Now()

	rows := make([]IssueRow, len(issues))
	for i, iss := range issues {
		rows[i] = ToIssueRow(workspace, iss, syncedAt)
	}

	return upsertBatched(ctx, rows, c.storer.UpsertIssues)
}

// UpsertComments maps and persists upstream comments, returning the row count.
func (c *Core) UpsertComments(ctx context.Context, workspace string, comments []tracker.Comment) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.upsertComments")
	defer span.End()

	syncedAt := time.Now()

	rows := make([]CommentRow, len(comments))
	for i, cm := range comments {
		rows[i] = ToCommentRow(workspace, cm, syncedAt)
	}

	return upsertBatched(ctx, rows, c.storer.UpsertComments)
}

func upsertBatched[T any](ctx context.Context, rows []T, upsert func(context.Context, []T) error) (int, error) {
	var count int

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))

		if err := upsert(ctx, rows[start:end]); err != nil {
			return count, fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}

		count += end - start
	}

	return count, nil
}

// Delete removes one mirror row by kind and natural key. Missing rows are
// not an error; deletes must be idempotent under webhook redelivery.
func (c *Core) DeleteTeam(ctx context.Context, workspace string, teamID string) error {
	return c.storer.DeleteTeam(ctx, workspace, teamID)
}

func (c *Core) DeleteProject(ctx context.Context, workspace string, projectID string) error {
	return c.storer.DeleteProject(ctx, workspace, projectID)
}

func (c *Core) DeleteInitiative(ctx context.Context, workspace string, initiativeID string) error {
	return c.storer.DeleteInitiative(ctx, workspace, initiativeID)
}

func (c *Core) DeleteIssue(ctx context.Context, workspace string, issueID string) error {
	return c.storer.DeleteIssue(ctx, workspace, issueID)
}

func (c *Core) DeleteComment(ctx context.Context, workspace string, commentID string) error {
	return c.storer.DeleteComment(ctx, workspace, commentID)
}

// =============================================================================
// Read path. Every query is restricted to the scope's team set in SQL; the
// per-mapping allow-lists are applied here before anything leaves the core.

// QueryIssues returns the hub-visible issues matching the filter.
func (c *Core) QueryIssues(ctx context.Context, scope Scope, filter QueryFilter, orderBy order.By, pg page.Page) ([]Issue, int, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryIssues")
	defer span.End()

	if filter.TeamID != nil && !scope.HasTeam(*filter.TeamID) {
		return []Issue{}, 0, nil
	}

	teamIDs := scope.TeamIDs()
	if len(teamIDs) == 0 {
		return []Issue{}, 0, nil
	}

	rows, err := c.storer.QueryIssues(ctx, scope.Workspace, teamIDs, filter, orderBy)
	if err != nil {
		return nil, 0, fmt.Errorf("query issues: %w", err)
	}

	visible := rows[:0:0]
	for _, row := range rows {
		if scope.AllowsIssue(row) {
			visible = append(visible, row)
		}
	}

	total := len(visible)

	start := (pg.Number() - 1) * pg.RowsPerPage()
	if start > total {
		start = total
	}
	end := min(start+pg.RowsPerPage(), total)

	issues := make([]Issue, 0, end-start)
	for _, row := range visible[start:end] {
		issues = append(issues, toIssue(row))
	}

	return issues, total, nil
}

// QueryIssueByID returns one hub-visible issue. An issue outside the scope
// reports ErrNotFound, the same as an absent one.
func (c *Core) QueryIssueByID(ctx context.Context, scope Scope, issueID string) (Issue, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryIssueByID")
	defer span.End()

	row, err := c.storer.QueryIssueByID(ctx, scope.Workspace, issueID)
	if err != nil {
		return Issue{}, fmt.Errorf("query: issueID[%s]: %w", issueID, err)
	}

	if !scope.AllowsIssue(row) {
		return Issue{}, ErrNotFound
	}

	return toIssue(row), nil
}

// QueryComments returns the comments of a hub-visible issue.
func (c *Core) QueryComments(ctx context.Context, scope Scope, issueID string) ([]Comment, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryComments")
	defer span.End()

	if _, err := c.QueryIssueByID(ctx, scope, issueID); err != nil {
		return nil, err
	}

	rows, err := c.storer.QueryCommentsByIssue(ctx, scope.Workspace, issueID)
	if err != nil {
		return nil, fmt.Errorf("query comments: issueID[%s]: %w", issueID, err)
	}

	comments := make([]Comment, len(rows))
	for i, row := range rows {
		comments[i] = toComment(row)
	}

	return comments, nil
}

// QueryTeams returns the hub's mapped teams.
func (c *Core) QueryTeams(ctx context.Context, scope Scope) ([]Team, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryTeams")
	defer span.End()

	teamIDs := scope.TeamIDs()
	if len(teamIDs) == 0 {
		return []Team{}, nil
	}

	rows, err := c.storer.QueryTeams(ctx, scope.Workspace, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}

	teams := make([]Team, len(rows))
	for i, row := range rows {
		teams[i] = Team{
			TeamID: row.TeamID,
			Name:   row.Name,
			Key:    row.Key,
		}
	}

	return teams, nil
}

// QueryProjects returns the hub-visible projects.
func (c *Core) QueryProjects(ctx context.Context, scope Scope) ([]Project, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryProjects")
	defer span.End()

	teamIDs := scope.TeamIDs()
	if len(teamIDs) == 0 {
		return []Project{}, nil
	}

	rows, err := c.storer.QueryProjectsByTeams(ctx, scope.Workspace, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}

	projects := make([]Project, 0, len(rows))
	for _, row := range rows {
		if !scope.AllowsProject(row) {
			continue
		}
		projects = append(projects, Project{
			ProjectID: row.ProjectID,
			TeamID:    row.TeamID,
			Name:      row.Name,
			State:     row.State,
		})
	}

	return projects, nil
}

// QueryInitiatives returns the hub-visible initiatives using the union rule
// across the scope's mappings.
func (c *Core) QueryInitiatives(ctx context.Context, scope Scope) ([]Initiative, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.queryInitiatives")
	defer span.End()

	if len(scope.TeamIDs()) == 0 {
		return []Initiative{}, nil
	}

	rows, err := c.storer.QueryInitiatives(ctx, scope.Workspace)
	if err != nil {
		return nil, fmt.Errorf("query initiatives: %w", err)
	}

	initiatives := make([]Initiative, 0, len(rows))
	for _, row := range rows {
		if !scope.AllowsInitiative(row.InitiativeID) {
			continue
		}
		initiatives = append(initiatives, Initiative{
			InitiativeID: row.InitiativeID,
			Name:         row.Name,
			Status:       row.Status,
		})
	}

	return initiatives, nil
}

// MaxSyncedAt returns the newest synced_at stamp across the workspace's
// mirror rows. The zero time means the workspace has never been synced.
func (c *Core) MaxSyncedAt(ctx context.Context, workspace string) (time.Time, error) {
	ctx, span := otel.AddSpan(ctx, "business.mirrorbus.maxSyncedAt")
	defer span.End()

	ts, err := c.storer.MaxSyncedAt(ctx, workspace)
	if err != nil {
		return time.Time{}, fmt.Errorf("max synced at: %w", err)
	}

	return ts, nil
}
