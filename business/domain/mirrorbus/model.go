package mirrorbus

import (
	"encoding/json"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/foundation/tracker"
)

// The mirror holds one shared copy of the upstream workspace. Rows are keyed
// by (workspace, natural upstream id), never by hub; exposure to a hub is
// computed at read time from the active mapping set.

// TeamRow is the mirrored form of an upstream team.
type TeamRow struct {
	Workspace string
	TeamID    string
	Name      string
	Key       string
	Raw       json.RawMessage
	SyncedAt  time.Time
}

// ProjectRow is the mirrored form of an upstream project.
type ProjectRow struct {
	Workspace string
	ProjectID string
	TeamID    string
	Name      string
	State     string
	UpdatedAt time.Time
	Raw       json.RawMessage
	SyncedAt  time.Time
}

// InitiativeRow is the mirrored form of an upstream initiative. Initiatives
// are workspace scoped and carry no team reference.
type InitiativeRow struct {
	Workspace    string
	InitiativeID string
	Name         string
	Status       string
	UpdatedAt    time.Time
	Raw          json.RawMessage
	SyncedAt     time.Time
}

// IssueRow is the mirrored form of an upstream issue. AssigneeName is stored
// for operator use but is never included in hub-facing projections.
type IssueRow struct {
	Workspace    string
	IssueID      string
	TeamID       string
	ProjectID    *string
	Identifier   string
	Title        string
	StateName    string
	StateType    string
	Priority     int
	AssigneeName *string
	LabelIDs     []string
	LabelNames   []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Raw          json.RawMessage
	SyncedAt     time.Time
}

// CommentRow is the mirrored form of an upstream issue comment.
type CommentRow struct {
	Workspace  string
	CommentID  string
	IssueID    string
	TeamID     string
	Body       string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Raw        json.RawMessage
	SyncedAt   time.Time
}

// =============================================================================
// Row mapping. These are pure transforms; the only clock dependency is the
// synced_at stamp supplied by the caller.

// ToTeamRow maps an upstream team into its mirror row.
func ToTeamRow(workspace string, t tracker.Team, syncedAt time.Time) TeamRow {
	return TeamRow{
		Workspace: workspace,
		TeamID:    t.ID,
		Name:      t.Name,
		Key:       t.Key,
		Raw:       t.Raw,
		SyncedAt:  syncedAt,
	}
}

// ToProjectRow maps an upstream project into its mirror row.
func ToProjectRow(workspace string, p tracker.Project, syncedAt time.Time) ProjectRow {
	return ProjectRow{
		Workspace: workspace,
		ProjectID: p.ID,
		TeamID:    p.TeamID,
		Name:      p.Name,
		State:     p.State,
		UpdatedAt: p.UpdatedAt,
		Raw:       p.Raw,
		SyncedAt:  syncedAt,
	}
}

// ToInitiativeRow maps an upstream initiative into its mirror row.
func ToInitiativeRow(workspace string, i tracker.Initiative, syncedAt time.Time) InitiativeRow {
	return InitiativeRow{
		Workspace:    workspace,
		InitiativeID: i.ID,
		Name:         i.Name,
		Status:       i.Status,
		UpdatedAt:    i.UpdatedAt,
		Raw:          i.Raw,
		SyncedAt:     syncedAt,
	}
}

// ToIssueRow maps an upstream issue into its mirror row, lifting the scalar
// fields used for filtering and keeping the full payload verbatim.
func ToIssueRow(workspace string, iss tracker.Issue, syncedAt time.Time) IssueRow {
	row := IssueRow{
		Workspace:  workspace,
		IssueID:    iss.ID,
		TeamID:     iss.Team.ID,
		Identifier: iss.Identifier,
		Title:      iss.Title,
		StateName:  iss.State.Name,
		StateType:  iss.State.Type,
		Priority:   iss.Priority,
		CreatedAt:  iss.CreatedAt,
		UpdatedAt:  iss.UpdatedAt,
		Raw:        iss.Raw,
		SyncedAt:   syncedAt,
	}

	if iss.Project != nil {
		id := iss.Project.ID
		row.ProjectID = &id
	}

	if iss.Assignee != nil {
		name := iss.Assignee.Name
		row.AssigneeName = &name
	}

	for _, label := range iss.Labels {
		row.LabelIDs = append(row.LabelIDs, label.ID)
		row.LabelNames = append(row.LabelNames, label.Name)
	}

	return row
}

// ToCommentRow maps an upstream comment into its mirror row.
func ToCommentRow(workspace string, c tracker.Comment, syncedAt time.Time) CommentRow {
	return CommentRow{
		Workspace:  workspace,
		CommentID:  c.ID,
		IssueID:    c.IssueID,
		TeamID:     c.TeamID,
		Body:       c.Body,
		AuthorName: c.Author.Name,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		Raw:        c.Raw,
		SyncedAt:   syncedAt,
	}
}

// =============================================================================
// Hub-facing projections. Issue projections never carry the assignee; that
// redaction is unconditional and independent of visibility configuration.

// Issue is the hub-facing projection of an issue row.
type Issue struct {
	IssueID    string
	TeamID     string
	ProjectID  *string
	Identifier string
	Title      string
	StateName  string
	StateType  string
	Priority   int
	LabelIDs   []string
	LabelNames []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Comment is the hub-facing projection of a comment row.
type Comment struct {
	CommentID  string
	IssueID    string
	Body       string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Team is the hub-facing projection of a team row.
type Team struct {
	TeamID string
	Name   string
	Key    string
}

// Project is the hub-facing projection of a project row.
type Project struct {
	ProjectID string
	TeamID    string
	Name      string
	State     string
}

// Initiative is the hub-facing projection of an initiative row.
type Initiative struct {
	InitiativeID string
	Name         string
	Status       string
}

func toIssue(row IssueRow) Issue {
	return Issue{
		IssueID:    row.IssueID,
		TeamID:     row.TeamID,
		ProjectID:  row.ProjectID,
		Identifier: row.Identifier,
		Title:      row.Title,
		StateName:  row.StateName,
		StateType:  row.StateType,
		Priority:   row.Priority,
		LabelIDs:   row.LabelIDs,
		LabelNames: row.LabelNames,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func toComment(row CommentRow) Comment {
	return Comment{
		CommentID:  row.CommentID,
		IssueID:    row.IssueID,
		Body:       row.Body,
		AuthorName: row.AuthorName,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

// =============================================================================

// Scope is a hub's resolved view of the mirror for one request: the active
// team set plus per-mapping visibility allow-lists. A zero scope exposes
// nothing.
type Scope struct {
	Workspace string
	mappings  map[string]mappingbus.TeamMapping
}

// NewScope builds a scope from the hub's active mappings.
func NewScope(workspace string, tms []mappingbus.TeamMapping) Scope {
	mappings := make(map[string]mappingbus.TeamMapping, len(tms))
	for _, tm := range tms {
		mappings[tm.TeamID] = tm
	}

	return Scope{
		Workspace: workspace,
		mappings:  mappings,
	}
}

// TeamIDs returns the team ids in the scope. Every mirror query must be
// restricted to this set.
func (s Scope) TeamIDs() []string {
	ids := make([]string, 0, len(s.mappings))
	for id := range s.mappings {
		ids = append(ids, id)
	}

	return ids
}

// HasTeam reports whether the team is part of the scope. Caller-supplied
// team ids are checked against this before being trusted.
func (s Scope) HasTeam(teamID string) bool {
	_, exists := s.mappings[teamID]
	return exists
}

// AllowsIssue applies the scope's visibility allow-lists to an issue row.
func (s Scope) AllowsIssue(row IssueRow) bool {
	tm, exists := s.mappings[row.TeamID]
	if !exists {
		return false
	}

	if len(tm.ProjectIDs) > 0 {
		if row.ProjectID == nil || !tm.AllowsProject(*row.ProjectID) {
			return false
		}
	}

	return tm.AllowsLabels(row.LabelIDs)
}

// AllowsProject applies the scope's visibility allow-lists to a project row.
func (s Scope) AllowsProject(row ProjectRow) bool {
	tm, exists := s.mappings[row.TeamID]
	if !exists {
		return false
	}

	return tm.AllowsProject(row.ProjectID)
}

// AllowsInitiative answers the hub-wide initiative visibility question:
// visible if any mapping is unscoped for initiatives or the id is in the
// union of the allow-lists.
func (s Scope) AllowsInitiative(initiativeID string) bool {
	for _, tm := range s.mappings {
		if tm.AllowsInitiative(initiativeID) {
			return true
		}
	}

	return false
}

// Unrestricted reports whether every mapping in the scope has empty
// allow-lists, meaning team-set filtering alone is sufficient.
func (s Scope) Unrestricted() bool {
	for _, tm := range s.mappings {
		if len(tm.ProjectIDs) > 0 || len(tm.LabelIDs) > 0 || len(tm.DeniedLabelIDs) > 0 {
			return false
		}
	}

	return true
}
