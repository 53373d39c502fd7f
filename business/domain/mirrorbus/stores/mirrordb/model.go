package mirrordb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
)

type teamDB struct {
	Workspace string    `db:"workspace"`
	TeamID    string    `db:"team_id"`
	Name      string    `db:"name"`
	Key       string    `db:"key"`
	Raw       []byte    `db:"raw"`
	SyncedAt  time.Time `db:"synced_at"`
}

func toDBTeam(bus mirrorbus.TeamRow) teamDB {
	return teamDB{
		Workspace: bus.Workspace,
		TeamID:    bus.TeamID,
		Name:      bus.Name,
		Key:       bus.Key,
		Raw:       rawOrNull(bus.Raw),
		SyncedAt:  bus.SyncedAt.UTC(),
	}
}

func toBusTeam(db teamDB) mirrorbus.TeamRow {
	return mirrorbus.TeamRow{
		Workspace: db.Workspace,
		TeamID:    db.TeamID,
		Name:      db.Name,
		Key:       db.Key,
		Raw:       db.Raw,
		SyncedAt:  db.SyncedAt.In(time.Local),
	}
}

type projectDB struct {
	Workspace string    `db:"workspace"`
	ProjectID string    `db:"project_id"`
	TeamID    string    `db:"team_id"`
	Name      string    `db:"name"`
	State     string    `db:"state"`
	UpdatedAt time.Time `db:"updated_at"`
	Raw       []byte    `db:"raw"`
	SyncedAt  time.Time `db:"synced_at"`
}

func toDBProject(bus mirrorbus.ProjectRow) projectDB {
	return projectDB{
		Workspace: bus.Workspace,
		ProjectID: bus.ProjectID,
		TeamID:    bus.TeamID,
		Name:      bus.Name,
		State:     bus.State,
		UpdatedAt: bus.UpdatedAt.UTC(),
		Raw:       rawOrNull(bus.Raw),
		SyncedAt:  bus.SyncedAt.UTC(),
	}
}

func toBusProject(db projectDB) mirrorbus.ProjectRow {
	return mirrorbus.ProjectRow{
		Workspace: db.Workspace,
		ProjectID: db.ProjectID,
		TeamID:    db.TeamID,
		Name:      db.Name,
		State:     db.State,
		UpdatedAt: db.UpdatedAt.In(time.Local),
		Raw:       db.Raw,
		SyncedAt:  db.SyncedAt.In(time.Local),
	}
}

type initiativeDB struct {
	Workspace    string    `db:"workspace"`
	InitiativeID string    `db:"initiative_id"`
	Name         string    `db:"name"`
	Status       string    `db:"status"`
	UpdatedAt    time.Time `db:"updated_at"`
	Raw          []byte    `db:"raw"`
	SyncedAt     time.Time `db:"synced_at"`
}

func toDBInitiative(bus mirrorbus.InitiativeRow) initiativeDB {
	return initiativeDB{
		Workspace:    bus.Workspace,
		InitiativeID: bus.InitiativeID,
		Name:         bus.Name,
		Status:       bus.Status,
		UpdatedAt:    bus.UpdatedAt.UTC(),
		Raw:          rawOrNull(bus.Raw),
		SyncedAt:     bus.SyncedAt.UTC(),
	}
}

func toBusInitiative(db initiativeDB) mirrorbus.InitiativeRow {
	return mirrorbus.InitiativeRow{
		Workspace:    db.Workspace,
		InitiativeID: db.InitiativeID,
		Name:         db.Name,
		Status:       db.Status,
		UpdatedAt:    db.UpdatedAt.In(time.Local),
		Raw:          db.Raw,
		SyncedAt:     db.SyncedAt.In(time.Local),
	}
}

type issueDB struct {
	Workspace    string    `db:"workspace"`
	IssueID      string    `db:"issue_id"`
	TeamID       string    `db:"team_id"`
	ProjectID    *string   `db:"project_id"`
	Identifier   string    `db:"identifier"`
	Title        string    `db:"title"`
	StateName    string    `db:"state_name"`
	StateType    string    `db:"state_type"`
	Priority     int       `db:"priority"`
	AssigneeName *string   `db:"assignee_name"`
	LabelIDs     []byte    `db:"label_ids"`
	LabelNames   []byte    `db:"label_names"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Raw          []byte    `db:"raw"`
	SyncedAt     time.Time `db:"synced_at"`
}

func toDBIssue(bus mirrorbus.IssueRow) (issueDB, error) {
	labelIDs, err := toDBStrings(bus.LabelIDs)
	if err != nil {
		return issueDB{}, fmt.Errorf("label ids: %w", err)
	}

	labelNames, err := toDBStrings(bus.LabelNames)
	if err != nil {
		return issueDB{}, fmt.Errorf("label names: %w", err)
	}

	return issueDB{
		Workspace:    bus.Workspace,
		IssueID:      bus.IssueID,
		TeamID:       bus.TeamID,
		ProjectID:    bus.ProjectID,
		Identifier:   bus.Identifier,
		Title:        bus.Title,
		StateName:    bus.StateName,
		StateType:    bus.StateType,
		Priority:     bus.Priority,
		AssigneeName: bus.AssigneeName,
		LabelIDs:     labelIDs,
		LabelNames:   labelNames,
		CreatedAt:    bus.CreatedAt.UTC(),
		UpdatedAt:    bus.UpdatedAt.UTC(),
		Raw:          rawOrNull(bus.Raw),
		SyncedAt:     bus.SyncedAt.UTC(),
	}, nil
}

func toBusIssue(db issueDB) (mirrorbus.IssueRow, error) {
	labelIDs, err := toBusStrings(db.LabelIDs)
	if err != nil {
		return mirrorbus.IssueRow{}, fmt.Errorf("label ids: %w", err)
	}

	labelNames, err := toBusStrings(db.LabelNames)
	if err != nil {
		return mirrorbus.IssueRow{}, fmt.Errorf("label names: %w", err)
	}

	return mirrorbus.IssueRow{
		Workspace:    db.Workspace,
		IssueID:      db.IssueID,
		TeamID:       db.TeamID,
		ProjectID:    db.ProjectID,
		Identifier:   db.Identifier,
		Title:        db.Title,
		StateName:    db.StateName,
		StateType:    db.StateType,
		Priority:     db.Priority,
		AssigneeName: db.AssigneeName,
		LabelIDs:     labelIDs,
		LabelNames:   labelNames,
		CreatedAt:    db.CreatedAt.In(time.Local),
		UpdatedAt:    db.UpdatedAt.In(time.Local),
		Raw:          db.Raw,
		SyncedAt:     db.SyncedAt.In(time.Local),
	}, nil
}

func toBusIssues(dbs []issueDB) ([]mirrorbus.IssueRow, error) {
	bus := make([]mirrorbus.IssueRow, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusIssue(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

type commentDB struct {
	Workspace  string    `db:"workspace"`
	CommentID  string    `db:"comment_id"`
	IssueID    string    `db:"issue_id"`
	TeamID     string    `db:"team_id"`
	Body       string    `db:"body"`
	AuthorName string    `db:"author_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
	Raw        []byte    `db:"raw"`
	SyncedAt   time.Time `db:"synced_at"`
}

func toDBComment(bus mirrorbus.CommentRow) commentDB {
	return commentDB{
		Workspace:  bus.Workspace,
		CommentID:  bus.CommentID,
		IssueID:    bus.IssueID,
		TeamID:     bus.TeamID,
		Body:       bus.Body,
		AuthorName: bus.AuthorName,
		CreatedAt:  bus.CreatedAt.UTC(),
		UpdatedAt:  bus.UpdatedAt.UTC(),
		Raw:        rawOrNull(bus.Raw),
		SyncedAt:   bus.SyncedAt.UTC(),
	}
}

func toBusComment(db commentDB) mirrorbus.CommentRow {
	return mirrorbus.CommentRow{
		Workspace:  db.Workspace,
		CommentID:  db.CommentID,
		IssueID:    db.IssueID,
		TeamID:     db.TeamID,
		Body:       db.Body,
		AuthorName: db.AuthorName,
		CreatedAt:  db.CreatedAt.In(time.Local),
		UpdatedAt:  db.UpdatedAt.In(time.Local),
		Raw:        db.Raw,
		SyncedAt:   db.SyncedAt.In(time.Local),
	}
}

// The raw column is JSONB NOT NULL; a missing payload persists as an empty
// object rather than a SQL null.
func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

// Label lists persist as JSONB arrays.
func toDBStrings(vals []string) ([]byte, error) {
	if vals == nil {
		vals = []string{}
	}
	return json.Marshal(vals)
}

func toBusStrings(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, err
	}

	if len(vals) == 0 {
		return nil, nil
	}

	return vals, nil
}
