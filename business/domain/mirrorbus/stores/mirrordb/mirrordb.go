// Package mirrordb contains mirror table access. All writes are
// INSERT ... ON CONFLICT upserts by the (workspace, natural id) key with
// last-write-wins semantics, so every write path is safe to replay.
package mirrordb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for mirror database access.
type Store struct {
	log *logger.Logger
	db  sqlx.ExtContext
}

// NewStore constructs the api for data access.
func NewStore(log *logger.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

// =============================================================================
// Upserts. The named exec receives the full batch slice so each batch lands
// in one atomic statement.

// UpsertTeams persists a batch of team rows.
func (s *Store) UpsertTeams(ctx context.Context, rows []mirrorbus.TeamRow) error {
	const q = `
	INSERT INTO "public"."mirror_teams"
		(workspace, team_id, name, key, raw, synced_at)
	VALUES
		(:workspace, :team_id, :name, :key, :raw, :synced_at)
	ON CONFLICT (workspace, team_id) DO UPDATE SET
		name = EXCLUDED.name,
		key = EXCLUDED.key,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

	dbRows := make([]teamDB, len(rows))
	for i, row := range rows {
		dbRows[i] = toDBTeam(row)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbRows); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// UpsertProjects persists a batch of project rows.
func (s *Store) UpsertProjects(ctx context.Context, rows []mirrorbus.ProjectRow) error {
	const q = `
	INSERT INTO "public"."mirror_projects"
		(workspace, project_id, team_id, name, state, updated_at, raw, synced_at)
	VALUES
		(:workspace, :project_id, :team_id, :name, :state, :updated_at, :raw, :synced_at)
	ON CONFLICT (workspace, project_id) DO UPDATE SET
		team_id = EXCLUDED.team_id,
		name = EXCLUDED.name,
		state = EXCLUDED.state,
		updated_at = EXCLUDED.updated_at,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

	dbRows := make([]projectDB, len(rows))
	for i, row := range rows {
		dbRows[i] = toDBProject(row)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbRows); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// UpsertInitiatives persists a batch of initiative rows.
func (s *Store) UpsertInitiatives(ctx context.Context, rows []mirrorbus.InitiativeRow) error {
	const q = `
	INSERT INTO "public"."mirror_initiatives"
		(workspace, initiative_id, name, status, updated_at, raw, synced_at)
	VALUES
		(:workspace, :initiative_id, :name, :status, :updated_at, :raw, :synced_at)
	ON CONFLICT (workspace, initiative_id) DO UPDATE SET
		name = EXCLUDED.name,
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

	dbRows := make([]initiativeDB, len(rows))
	for i, row := range rows {
		dbRows[i] = toDBInitiative(row)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbRows); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// UpsertIssues persists a batch of issue rows.
func (s *Store) UpsertIssues(ctx context.Context, rows []mirrorbus.IssueRow) error {
	const q = `
	INSERT INTO "public"."mirror_issues"
		(workspace, issue_id, team_id, project_id, identifier, title, state_name, state_type, priority, assignee_name, label_ids, label_names, created_at, updated_at, raw, synced_at)
	VALUES
		(:workspace, :issue_id, :team_id, :project_id, :identifier, :title, :state_name, :state_type, :priority, :assignee_name, :label_ids, :label_names, :created_at, :updated_at, :raw, :synced_at)
	ON CONFLICT (workspace, issue_id) DO UPDATE SET
		team_id = EXCLUDED.team_id,
		project_id = EXCLUDED.project_id,
		identifier = EXCLUDED.identifier,
		title = EXCLUDED.title,
		state_name = EXCLUDED.state_name,
		state_type = EXCLUDED.state_type,
		priority = EXCLUDED.priority,
		assignee_name = EXCLUDED.assignee_name,
		label_ids = EXCLUDED.label_ids,
		label_names = EXCLUDED.label_names,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

	dbRows := make([]issueDB, len(rows))
	for i, row := range rows {
		var err error
		dbRows[i], err = toDBIssue(row)
		if err != nil {
			return fmt.Errorf("todbissue: %w", err)
		}
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbRows); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// UpsertComments persists a batch of comment rows.
func (s *Store) UpsertComments(ctx context.Context, rows []mirrorbus.CommentRow) error {
	const q = `
	INSERT INTO "public"."mirror_comments"
		(workspace, comment_id, issue_id, team_id, body, author_name, created_at, updated_at, raw, synced_at)
	VALUES
		(:workspace, :comment_id, :issue_id, :team_id, :body, :author_name, :created_at, :updated_at, :raw, :synced_at)
	ON CONFLICT (workspace, comment_id) DO UPDATE SET
		issue_id = EXCLUDED.issue_id,
		team_id = EXCLUDED.team_id,
		body = EXCLUDED.body,
		author_name = EXCLUDED.author_name,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at,
		raw = EXCLUDED.raw,
		synced_at = EXCLUDED.synced_at`

	dbRows := make([]commentDB, len(rows))
	for i, row := range rows {
		dbRows[i] = toDBComment(row)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbRows); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// =============================================================================
// Deletes. Deleting an absent row is a no-op.

type naturalKey struct {
	Workspace string `db:"workspace"`
	ID        string `db:"id"`
}

func (s *Store) deleteByKey(ctx context.Context, q string, workspace string, id string) error {
	data := naturalKey{
		Workspace: workspace,
		ID:        id,
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// DeleteTeam removes a team row by natural key.
func (s *Store) DeleteTeam(ctx context.Context, workspace string, teamID string) error {
	const q = `DELETE FROM "public"."mirror_teams" WHERE workspace = :workspace AND team_id = :id`
	return s.deleteByKey(ctx, q, workspace, teamID)
}

// DeleteProject removes a project row by natural key.
func (s *Store) DeleteProject(ctx context.Context, workspace string, projectID string) error {
	const q = `DELETE FROM "public"."mirror_projects" WHERE workspace = :workspace AND project_id = :id`
	return s.deleteByKey(ctx, q, workspace, projectID)
}

// DeleteInitiative removes an initiative row by natural key.
func (s *Store) DeleteInitiative(ctx context.Context, workspace string, initiativeID string) error {
	const q = `DELETE FROM "public"."mirror_initiatives" WHERE workspace = :workspace AND initiative_id = :id`
	return s.deleteByKey(ctx, q, workspace, initiativeID)
}

// DeleteIssue removes an issue row and its comments by natural key.
func (s *Store) DeleteIssue(ctx context.Context, workspace string, issueID string) error {
	const qc = `DELETE FROM "public"."mirror_comments" WHERE workspace = :workspace AND issue_id = :id`
	if err := s.deleteByKey(ctx, qc, workspace, issueID); err != nil {
		return err
	}

	const q = `DELETE FROM "public"."mirror_issues" WHERE workspace = :workspace AND issue_id = :id`
	return s.deleteByKey(ctx, q, workspace, issueID)
}

// DeleteComment removes a comment row by natural key.
func (s *Store) DeleteComment(ctx context.Context, workspace string, commentID string) error {
	const q = `DELETE FROM "public"."mirror_comments" WHERE workspace = :workspace AND comment_id = :id`
	return s.deleteByKey(ctx, q, workspace, commentID)
}

// =============================================================================
// Reads. Team-set restriction happens here in SQL; allow-list filtering is
// the business layer's job.

// QueryIssues retrieves the issues for the team set matching the filter.
func (s *Store) QueryIssues(ctx context.Context, workspace string, teamIDs []string, filter mirrorbus.QueryFilter, orderBy order.By) ([]mirrorbus.IssueRow, error) {
	data := struct {
		Workspace string   `db:"workspace"`
		TeamIDs   []string `db:"team_ids"`
		TeamID    *string  `db:"team_id"`
		ProjectID *string  `db:"project_id"`
		StateType *string  `db:"state_type"`
	}{
		Workspace: workspace,
		TeamIDs:   teamIDs,
		TeamID:    filter.TeamID,
		ProjectID: filter.ProjectID,
		StateType: filter.StateType,
	}

	q := `
	SELECT
		workspace, issue_id, team_id, project_id, identifier, title, state_name, state_type, priority, assignee_name, label_ids, label_names, created_at, updated_at, raw, synced_at
	FROM
		"public"."mirror_issues"
	WHERE
		workspace = :workspace AND team_id = ANY(:team_ids)
		AND (:team_id IS NULL OR team_id = :team_id)
		AND (:project_id IS NULL OR project_id = :project_id)
		AND (:state_type IS NULL OR state_type = :state_type)`

	oq, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}
	q += oq

	var dbRows []issueDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbRows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusIssues(dbRows)
}

// QueryIssueByID retrieves a single issue row.
func (s *Store) QueryIssueByID(ctx context.Context, workspace string, issueID string) (mirrorbus.IssueRow, error) {
	data := naturalKey{
		Workspace: workspace,
		ID:        issueID,
	}

	const q = `
	SELECT
		workspace, issue_id, team_id, project_id, identifier, title, state_name, state_type, priority, assignee_name, label_ids, label_names, created_at, updated_at, raw, synced_at
	FROM
		"public"."mirror_issues"
	WHERE
		workspace = :workspace AND issue_id = :id`

	var dbIssue issueDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbIssue); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return mirrorbus.IssueRow{}, fmt.Errorf("db: %w", mirrorbus.ErrNotFound)
		}
		return mirrorbus.IssueRow{}, fmt.Errorf("db: %w", err)
	}

	return toBusIssue(dbIssue)
}

// QueryCommentsByIssue retrieves the comments of an issue, oldest first.
func (s *Store) QueryCommentsByIssue(ctx context.Context, workspace string, issueID string) ([]mirrorbus.CommentRow, error) {
	data := naturalKey{
		Workspace: workspace,
		ID:        issueID,
	}

	const q = `
	SELECT
		workspace, comment_id, issue_id, team_id, body, author_name, created_at, updated_at, raw, synced_at
	FROM
		"public"."mirror_comments"
	WHERE
		workspace = :workspace AND issue_id = :id
	ORDER BY
		created_at`

	var dbRows []commentDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbRows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	rows := make([]mirrorbus.CommentRow, len(dbRows))
	for i, db := range dbRows {
		rows[i] = toBusComment(db)
	}

	return rows, nil
}

// QueryTeams retrieves the team rows in the id set.
func (s *Store) QueryTeams(ctx context.Context, workspace string, teamIDs []string) ([]mirrorbus.TeamRow, error) {
	data := struct {
		Workspace string   `db:"workspace"`
		TeamIDs   []string `db:"team_ids"`
	}{
		Workspace: workspace,
		TeamIDs:   teamIDs,
	}

	const q = `
	SELECT
		workspace, team_id, name, key, raw, synced_at
	FROM
		"public"."mirror_teams"
	WHERE
		workspace = :workspace AND team_id = ANY(:team_ids)
	ORDER BY
		name`

	var dbRows []teamDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbRows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	rows := make([]mirrorbus.TeamRow, len(dbRows))
	for i, db := range dbRows {
		rows[i] = toBusTeam(db)
	}

	return rows, nil
}

// QueryProjectsByTeams retrieves the project rows for the team set.
func (s *Store) QueryProjectsByTeams(ctx context.Context, workspace string, teamIDs []string) ([]mirrorbus.ProjectRow, error) {
	data := struct {
		Workspace string   `db:"workspace"`
		TeamIDs   []string `db:"team_ids"`
	}{
		Workspace: workspace,
		TeamIDs:   teamIDs,
	}

	const q = `
	SELECT
		workspace, project_id, team_id, name, state, updated_at, raw, synced_at
	FROM
		"public"."mirror_projects"
	WHERE
		workspace = :workspace AND team_id = ANY(:team_ids)
	ORDER BY
		name`

	var dbRows []projectDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbRows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	rows := make([]mirrorbus.ProjectRow, len(dbRows))
	for i, db := range dbRows {
		rows[i] = toBusProject(db)
	}

	return rows, nil
}

// QueryInitiatives retrieves every initiative row in the workspace.
func (s *Store) QueryInitiatives(ctx context.Context, workspace string) ([]mirrorbus.InitiativeRow, error) {
	data := struct {
		Workspace string `db:"workspace"`
	}{
		Workspace: workspace,
	}

	const q = `
	SELECT
		workspace, initiative_id, name, status, updated_at, raw, synced_at
	FROM
		"public"."mirror_initiatives"
	WHERE
		workspace = :workspace
	ORDER BY
		name`

	var dbRows []initiativeDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbRows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	rows := make([]mirrorbus.InitiativeRow, len(dbRows))
	for i, db := range dbRows {
		rows[i] = toBusInitiative(db)
	}

	return rows, nil
}

// MaxSyncedAt returns the newest synced_at across the workspace's issue
// rows. Issues are the densest table and the last kind written by a sync,
// so their max stamp is the conservative watermark base.
func (s *Store) MaxSyncedAt(ctx context.Context, workspace string) (time.Time, error) {
	data := struct {
		Workspace string `db:"workspace"`
	}{
		Workspace: workspace,
	}

	const q = `
	SELECT
		MAX(synced_at) AS synced_at
	FROM
		"public"."mirror_issues"
	WHERE
		workspace = :workspace`

	var out struct {
		SyncedAt *time.Time `db:"synced_at"`
	}

	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &out); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("namedquerystruct: %w", err)
	}

	if out.SyncedAt == nil {
		return time.Time{}, nil
	}

	return out.SyncedAt.In(time.Local), nil
}

// orderByClause validates the order field against the issue columns.
func orderByClause(orderBy order.By) (string, error) {
	byFields := map[string]string{
		"updated_at": "updated_at",
		"created_at": "created_at",
		"priority":   "priority",
		"identifier": "identifier",
	}

	field, exists := byFields[orderBy.Field]
	if !exists {
		return "", fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	return " ORDER BY " + field + " " + orderBy.Direction, nil
}
