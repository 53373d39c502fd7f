package issueapp

import (
	"encoding/json"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
)

// Issue is the hub-facing issue projection. There is deliberately no
// assignee field here; that redaction holds for every hub regardless of
// visibility configuration.
type Issue struct {
	ID         string   `json:"id"`
	TeamID     string   `json:"teamId"`
	ProjectID  *string  `json:"projectId,omitempty"`
	Identifier string   `json:"identifier"`
	Title      string   `json:"title"`
	StateName  string   `json:"stateName"`
	StateType  string   `json:"stateType"`
	Priority   int      `json:"priority"`
	LabelIDs   []string `json:"labelIds,omitempty"`
	LabelNames []string `json:"labelNames,omitempty"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

// Encode implements the web.Encoder interface.
func (app Issue) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppIssue(bus mirrorbus.Issue) Issue {
	return Issue{
		ID:         bus.IssueID,
		TeamID:     bus.TeamID,
		ProjectID:  bus.ProjectID,
		Identifier: bus.Identifier,
		Title:      bus.Title,
		StateName:  bus.StateName,
		StateType:  bus.StateType,
		Priority:   bus.Priority,
		LabelIDs:   bus.LabelIDs,
		LabelNames: bus.LabelNames,
		CreatedAt:  bus.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  bus.UpdatedAt.Format(time.RFC3339),
	}
}

func toAppIssues(issues []mirrorbus.Issue) []Issue {
	app := make([]Issue, len(issues))
	for i, iss := range issues {
		app[i] = toAppIssue(iss)
	}
	return app
}

// Comment is the hub-facing comment projection.
type Comment struct {
	ID         string `json:"id"`
	IssueID    string `json:"issueId"`
	Body       string `json:"body"`
	AuthorName string `json:"authorName"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// Encode implements the web.Encoder interface.
func (app Comment) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppComments(comments []mirrorbus.Comment) []Comment {
	app := make([]Comment, len(comments))
	for i, c := range comments {
		app[i] = Comment{
			ID:         c.CommentID,
			IssueID:    c.IssueID,
			Body:       c.Body,
			AuthorName: c.AuthorName,
			CreatedAt:  c.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
		}
	}
	return app
}

// Comments wraps the comment list for encoding.
type Comments []Comment

// Encode implements the web.Encoder interface.
func (app Comments) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

// Team is the hub-facing team projection.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Teams wraps the team list for encoding.
type Teams []Team

// Encode implements the web.Encoder interface.
func (app Teams) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppTeams(teams []mirrorbus.Team) Teams {
	app := make(Teams, len(teams))
	for i, t := range teams {
		app[i] = Team{
			ID:   t.TeamID,
			Name: t.Name,
			Key:  t.Key,
		}
	}
	return app
}

// Project is the hub-facing project projection.
type Project struct {
	ID     string `json:"id"`
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
	State  string `json:"state"`
}

// Projects wraps the project list for encoding.
type Projects []Project

// Encode implements the web.Encoder interface.
func (app Projects) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppProjects(projects []mirrorbus.Project) Projects {
	app := make(Projects, len(projects))
	for i, p := range projects {
		app[i] = Project{
			ID:     p.ProjectID,
			TeamID: p.TeamID,
			Name:   p.Name,
			State:  p.State,
		}
	}
	return app
}

// Initiative is the hub-facing initiative projection.
type Initiative struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Initiatives wraps the initiative list for encoding.
type Initiatives []Initiative

// Encode implements the web.Encoder interface.
func (app Initiatives) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppInitiatives(initiatives []mirrorbus.Initiative) Initiatives {
	app := make(Initiatives, len(initiatives))
	for i, ini := range initiatives {
		app[i] = Initiative{
			ID:     ini.InitiativeID,
			Name:   ini.Name,
			Status: ini.Status,
		}
	}
	return app
}
