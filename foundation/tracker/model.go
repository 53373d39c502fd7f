package tracker

import (
	"encoding/json"
	"time"
)

// Ref identifies a related upstream entity.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// State describes an issue workflow state. Type is the upstream state
// category (backlog, unstarted, started, completed, canceled).
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Team represents an upstream team.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Raw json.RawMessage `json:"-"`
}

func (t *Team) setRaw(raw json.RawMessage) { t.Raw = raw }

// Project represents an upstream project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	TeamID    string    `json:"teamId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Raw json.RawMessage `json:"-"`
}

func (p *Project) setRaw(raw json.RawMessage) { p.Raw = raw }

// Initiative represents an upstream initiative. Initiatives are workspace
// scoped and carry no team reference.
type Initiative struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Raw json.RawMessage `json:"-"`
}

func (i *Initiative) setRaw(raw json.RawMessage) { i.Raw = raw }

// Issue represents an upstream issue.
type Issue struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	State      State     `json:"state"`
	Priority   int       `json:"priority"`
	Assignee   *Ref      `json:"assignee"`
	Team       Ref       `json:"team"`
	Project    *Ref      `json:"project"`
	Labels     []Ref     `json:"labels"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Raw json.RawMessage `json:"-"`
}

func (i *Issue) setRaw(raw json.RawMessage) { i.Raw = raw }

// Comment represents an upstream issue comment.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	IssueID   string    `json:"issueId"`
	TeamID    string    `json:"teamId"`
	Author    Ref       `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Raw json.RawMessage `json:"-"`
}

func (c *Comment) setRaw(raw json.RawMessage) { c.Raw = raw }
