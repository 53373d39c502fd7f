package mirrorbus_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/page"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspace = "acme"

// fakeStore keeps mirror rows in maps keyed by natural id. Upsert batch
// sizes are recorded, and failAfterBatches simulates a mid-run abort.
type fakeStore struct {
	teams       map[string]mirrorbus.TeamRow
	projects    map[string]mirrorbus.ProjectRow
	initiatives map[string]mirrorbus.InitiativeRow
	issues      map[string]mirrorbus.IssueRow
	comments    map[string]mirrorbus.CommentRow

	issueBatches     []int
	failAfterBatches int
	maxSyncedAt      time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		teams:            make(map[string]mirrorbus.TeamRow),
		projects:         make(map[string]mirrorbus.ProjectRow),
		initiatives:      make(map[string]mirrorbus.InitiativeRow),
		issues:           make(map[string]mirrorbus.IssueRow),
		comments:         make(map[string]mirrorbus.CommentRow),
		failAfterBatches: -1,
	}
}

func (s *fakeStore) UpsertTeams(_ context.Context, rows []mirrorbus.TeamRow) error {
	for _, row := range rows {
		s.teams[row.TeamID] = row
	}
	return nil
}

func (s *fakeStore) UpsertProjects(_ context.Context, rows []mirrorbus.ProjectRow) error {
	for _, row := range rows {
		s.projects[row.ProjectID] = row
	}
	return nil
}

func (s *fakeStore) UpsertInitiatives(_ context.Context, rows []mirrorbus.InitiativeRow) error {
	for _, row := range rows {
		s.initiatives[row.InitiativeID] = row
	}
	return nil
}

func (s *fakeStore) UpsertIssues(_ context.Context, rows []mirrorbus.IssueRow) error {
	if s.failAfterBatches == 0 {
		return errors.New("db down")
	}
	if s.failAfterBatches > 0 {
		s.failAfterBatches--
	}

	s.issueBatches = append(s.issueBatches, len(rows))
	for _, row := range rows {
		s.issues[row.IssueID] = row
	}
	return nil
}

func (s *fakeStore) UpsertComments(_ context.Context, rows []mirrorbus.CommentRow) error {
	for _, row := range rows {
		s.comments[row.CommentID] = row
	}
	return nil
}

func (s *fakeStore) DeleteTeam(_ context.Context, _ string, teamID string) error {
	delete(s.teams, teamID)
	return nil
}

func (s *fakeStore) DeleteProject(_ context.Context, _ string, projectID string) error {
	delete(s.projects, projectID)
	return nil
}

func (s *fakeStore) DeleteInitiative(_ context.Context, _ string, initiativeID string) error {
	delete(s.initiatives, initiativeID)
	return nil
}

func (s *fakeStore) DeleteIssue(_ context.Context, _ string, issueID string) error {
	delete(s.issues, issueID)
	for id, cm := range s.comments {
		if cm.IssueID == issueID {
			delete(s.comments, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteComment(_ context.Context, _ string, commentID string) error {
	delete(s.comments, commentID)
	return nil
}

func (s *fakeStore) QueryIssues(_ context.Context, _ string, teamIDs []string, filter mirrorbus.QueryFilter, _ order.By) ([]mirrorbus.IssueRow, error) {
	inScope := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		inScope[id] = struct{}{}
	}

	var rows []mirrorbus.IssueRow
	for _, row := range s.issues {
		if _, ok := inScope[row.TeamID]; !ok {
			continue
		}
		if filter.TeamID != nil && row.TeamID != *filter.TeamID {
			continue
		}
		if filter.StateType != nil && row.StateType != *filter.StateType {
			continue
		}
		if filter.ProjectID != nil && (row.ProjectID == nil || *row.ProjectID != *filter.ProjectID) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *fakeStore) QueryIssueByID(_ context.Context, _ string, issueID string) (mirrorbus.IssueRow, error) {
	row, exists := s.issues[issueID]
	if !exists {
		return mirrorbus.IssueRow{}, mirrorbus.ErrNotFound
	}
	return row, nil
}

func (s *fakeStore) QueryCommentsByIssue(_ context.Context, _ string, issueID string) ([]mirrorbus.CommentRow, error) {
	var rows []mirrorbus.CommentRow
	for _, row := range s.comments {
		if row.IssueID == issueID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *fakeStore) QueryTeams(_ context.Context, _ string, teamIDs []string) ([]mirrorbus.TeamRow, error) {
	var rows []mirrorbus.TeamRow
	for _, id := range teamIDs {
		if row, exists := s.teams[id]; exists {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *fakeStore) QueryProjectsByTeams(_ context.Context, _ string, teamIDs []string) ([]mirrorbus.ProjectRow, error) {
	inScope := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		inScope[id] = struct{}{}
	}

	var rows []mirrorbus.ProjectRow
	for _, row := range s.projects {
		if _, ok := inScope[row.TeamID]; ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *fakeStore) QueryInitiatives(_ context.Context, _ string) ([]mirrorbus.InitiativeRow, error) {
	var rows []mirrorbus.InitiativeRow
	for _, row := range s.initiatives {
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *fakeStore) MaxSyncedAt(_ context.Context, _ string) (time.Time, error) {
	return s.maxSyncedAt, nil
}

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

func issue(id string, teamID string, labels ...string) tracker.Issue {
	iss := tracker.Issue{
		ID:         id,
		Identifier: "ENG-" + id,
		Title:      "issue " + id,
		Team:       tracker.Ref{ID: teamID},
		State:      tracker.State{Name: "In Progress", Type: "started"},
	}
	for _, l := range labels {
		iss.Labels = append(iss.Labels, tracker.Ref{ID: l, Name: l})
	}
	return iss
}

func scopeFor(tms ...mappingbus.TeamMapping) mirrorbus.Scope {
	for i := range tms {
		tms[i].ID = uuid.New()
		tms[i].Enabled = true
	}
	return mirrorbus.NewScope(workspace, tms)
}

func TestUpsertIssuesBatching(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	issues := make([]tracker.Issue, 120)
	for i := range issues {
		issues[i] = issue(fmt.Sprintf("iss-%03d", i), "team-1")
	}

	n, err := core.UpsertIssues(ctx, workspace, issues)
	require.NoError(t, err)

	assert.Equal(t, 120, n)
	assert.Equal(t, []int{50, 50, 20}, store.issueBatches)
	assert.Len(t, store.issues, 120)
}

func TestUpsertIssuesAbortsOnBatchFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failAfterBatches = 1
	core := mirrorbus.NewCore(testLog(), store)

	issues := make([]tracker.Issue, 120)
	for i := range issues {
		issues[i] = issue(fmt.Sprintf("iss-%03d", i), "team-1")
	}

	n, err := core.UpsertIssues(ctx, workspace, issues)
	require.Error(t, err)

	// The first batch committed, the second failed, the third never ran.
	assert.Equal(t, 50, n)
	assert.Len(t, store.issues, 50)
}

func TestUpsertIssuesEmpty(t *testing.T) {
	ctx := context.Background()
	core := mirrorbus.NewCore(testLog(), newFakeStore())

	n, err := core.UpsertIssues(ctx, workspace, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryIssuesScopeFiltering(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{
		issue("iss-1", "team-1"),
		issue("iss-2", "team-1", "lbl-secret"),
		issue("iss-3", "team-2"),
	})
	require.NoError(t, err)

	scope := scopeFor(mappingbus.TeamMapping{
		TeamID:         "team-1",
		DeniedLabelIDs: []string{"lbl-secret"},
	})

	issues, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, order.NewBy("updated_at", order.DESC), page.MustParse("1", "10"))
	require.NoError(t, err)

	// team-2 is out of scope, the denied label hides iss-2.
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, "iss-1", issues[0].IssueID)
}

func TestQueryIssuesCallerTeamOutsideScope(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{issue("iss-1", "team-2")})
	require.NoError(t, err)

	scope := scopeFor(mappingbus.TeamMapping{TeamID: "team-1"})

	teamID := "team-2"
	issues, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{TeamID: &teamID}, order.NewBy("updated_at", order.DESC), page.MustParse("1", "10"))
	require.NoError(t, err)

	assert.Zero(t, total)
	assert.Empty(t, issues)
}

func TestQueryIssuesProjectAllowList(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	withProject := issue("iss-1", "team-1")
	withProject.Project = &tracker.Ref{ID: "prj-1"}

	otherProject := issue("iss-2", "team-1")
	otherProject.Project = &tracker.Ref{ID: "prj-9"}

	// iss-3 has no project at all.
	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{withProject, otherProject, issue("iss-3", "team-1")})
	require.NoError(t, err)

	scope := scopeFor(mappingbus.TeamMapping{
		TeamID:     "team-1",
		ProjectIDs: []string{"prj-1"},
	})

	issues, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, order.NewBy("updated_at", order.DESC), page.MustParse("1", "10"))
	require.NoError(t, err)

	// A project allow list hides issues in other projects and issues with
	// no project.
	assert.Equal(t, 1, total)
	require.Len(t, issues, 1)
	assert.Equal(t, "iss-1", issues[0].IssueID)
}

func TestQueryIssuesPagination(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	issues := make([]tracker.Issue, 25)
	for i := range issues {
		issues[i] = issue(fmt.Sprintf("iss-%03d", i), "team-1")
	}
	_, err := core.UpsertIssues(ctx, workspace, issues)
	require.NoError(t, err)

	scope := scopeFor(mappingbus.TeamMapping{TeamID: "team-1"})
	orderBy := order.NewBy("updated_at", order.DESC)

	pageOne, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, orderBy, page.MustParse("1", "10"))
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, pageOne, 10)

	pageThree, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, orderBy, page.MustParse("3", "10"))
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, pageThree, 5)

	pastEnd, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, orderBy, page.MustParse("9", "10"))
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Empty(t, pastEnd)
}

func TestQueryIssueByIDOutsideScope(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{issue("iss-1", "team-2")})
	require.NoError(t, err)

	scope := scopeFor(mappingbus.TeamMapping{TeamID: "team-1"})

	// An existing issue outside the scope and a missing issue are the same
	// answer.
	_, err = core.QueryIssueByID(ctx, scope, "iss-1")
	assert.ErrorIs(t, err, mirrorbus.ErrNotFound)

	_, err = core.QueryIssueByID(ctx, scope, "iss-missing")
	assert.ErrorIs(t, err, mirrorbus.ErrNotFound)
}

func TestIssueProjectionRedactsAssignee(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	iss := issue("iss-1", "team-1")
	iss.Assignee = &tracker.Ref{ID: "usr-1", Name: "Casey"}

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{iss})
	require.NoError(t, err)

	// The assignee lands in the mirror row for operator use.
	row := store.issues["iss-1"]
	require.NotNil(t, row.AssigneeName)
	assert.Equal(t, "Casey", *row.AssigneeName)

	// The hub projection carries no assignee field at all; spot check the
	// rest of the projection survives.
	scope := scopeFor(mappingbus.TeamMapping{TeamID: "team-1"})
	got, err := core.QueryIssueByID(ctx, scope, "iss-1")
	require.NoError(t, err)

	assert.Equal(t, "ENG-iss-1", got.Identifier)
	assert.Equal(t, "started", got.StateType)
}

func TestQueryCommentsGatedByIssueVisibility(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{issue("iss-1", "team-1", "lbl-secret")})
	require.NoError(t, err)

	_, err = core.UpsertComments(ctx, workspace, []tracker.Comment{{
		ID: "cmt-1", IssueID: "iss-1", TeamID: "team-1", Body: "hello",
		Author: tracker.Ref{Name: "Casey"},
	}})
	require.NoError(t, err)

	visible := scopeFor(mappingbus.TeamMapping{TeamID: "team-1"})
	comments, err := core.QueryComments(ctx, visible, "iss-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].Body)

	hidden := scopeFor(mappingbus.TeamMapping{TeamID: "team-1", DeniedLabelIDs: []string{"lbl-secret"}})
	_, err = core.QueryComments(ctx, hidden, "iss-1")
	assert.ErrorIs(t, err, mirrorbus.ErrNotFound)
}

func TestQueryInitiativesUnionRule(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertInitiatives(ctx, workspace, []tracker.Initiative{
		{ID: "ini-1", Name: "One"},
		{ID: "ini-2", Name: "Two"},
		{ID: "ini-3", Name: "Three"},
	})
	require.NoError(t, err)

	// team-1 restricts to ini-1, team-2 restricts to ini-2; the hub sees
	// the union.
	scope := scopeFor(
		mappingbus.TeamMapping{TeamID: "team-1", InitiativeIDs: []string{"ini-1"}},
		mappingbus.TeamMapping{TeamID: "team-2", InitiativeIDs: []string{"ini-2"}},
	)

	initiatives, err := core.QueryInitiatives(ctx, scope)
	require.NoError(t, err)

	ids := make([]string, len(initiatives))
	for i, ini := range initiatives {
		ids[i] = ini.InitiativeID
	}
	assert.ElementsMatch(t, []string{"ini-1", "ini-2"}, ids)
}

func TestEmptyScopeSeesNothing(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := mirrorbus.NewCore(testLog(), store)

	_, err := core.UpsertIssues(ctx, workspace, []tracker.Issue{issue("iss-1", "team-1")})
	require.NoError(t, err)

	scope := mirrorbus.NewScope(workspace, nil)

	issues, total, err := core.QueryIssues(ctx, scope, mirrorbus.QueryFilter{}, order.NewBy("updated_at", order.DESC), page.MustParse("1", "10"))
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, issues)

	teams, err := core.QueryTeams(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, teams)

	initiatives, err := core.QueryInitiatives(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, initiatives)
}
