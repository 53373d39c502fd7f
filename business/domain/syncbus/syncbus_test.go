package syncbus_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/domain/syncbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspace = "acme"

// fakeClient serves canned upstream data and records which teams were
// fetched and with what watermark.
type fakeClient struct {
	teams       []tracker.Team
	initiatives []tracker.Initiative
	projects    map[string][]tracker.Project
	issues      map[string][]tracker.Issue
	comments    map[string][]tracker.Comment

	teamsErr       error
	initiativesErr error
	issuesErr      map[string]error

	teamFetches []string
	sinceSeen   []time.Time
}

func (c *fakeClient) Teams(_ context.Context) ([]tracker.Team, error) {
	return c.teams, c.teamsErr
}

func (c *fakeClient) Initiatives(_ context.Context) ([]tracker.Initiative, error) {
	return c.initiatives, c.initiativesErr
}

func (c *fakeClient) Projects(_ context.Context, teamID string) ([]tracker.Project, error) {
	c.teamFetches = append(c.teamFetches, teamID)
	return c.projects[teamID], nil
}

func (c *fakeClient) ProjectsSince(ctx context.Context, teamID string, since time.Time) ([]tracker.Project, error) {
	c.sinceSeen = append(c.sinceSeen, since)
	return c.Projects(ctx, teamID)
}

func (c *fakeClient) Issues(_ context.Context, teamID string) ([]tracker.Issue, error) {
	if err := c.issuesErr[teamID]; err != nil {
		return nil, err
	}
	return c.issues[teamID], nil
}

func (c *fakeClient) IssuesSince(ctx context.Context, teamID string, _ time.Time) ([]tracker.Issue, error) {
	return c.Issues(ctx, teamID)
}

func (c *fakeClient) Comments(_ context.Context, issueID string) ([]tracker.Comment, error) {
	return c.comments[issueID], nil
}

// fakeMirrorStore implements mirrorbus.Storer in memory; only what the
// sync pipeline touches has behavior.
type fakeMirrorStore struct {
	teams       map[string]mirrorbus.TeamRow
	projects    map[string]mirrorbus.ProjectRow
	initiatives map[string]mirrorbus.InitiativeRow
	issues      map[string]mirrorbus.IssueRow
	comments    map[string]mirrorbus.CommentRow

	maxSyncedAt time.Time
}

func newFakeMirrorStore() *fakeMirrorStore {
	return &fakeMirrorStore{
		teams:       make(map[string]mirrorbus.TeamRow),
		projects:    make(map[string]mirrorbus.ProjectRow),
		initiatives: make(map[string]mirrorbus.InitiativeRow),
		issues:      make(map[string]mirrorbus.IssueRow),
		comments:    make(map[string]mirrorbus.CommentRow),
	}
}

func (s *fakeMirrorStore) UpsertTeams(_ context.Context, rows []mirrorbus.TeamRow) error {
	for _, row := range rows {
		s.teams[row.TeamID] = row
	}
	return nil
}

func (s *fakeMirrorStore) UpsertProjects(_ context.Context, rows []mirrorbus.ProjectRow) error {
	for _, row := range rows {
		s.projects[row.ProjectID] = row
	}
	return nil
}

func (s *fakeMirrorStore) UpsertInitiatives(_ context.Context, rows []mirrorbus.InitiativeRow) error {
	for _, row := range rows {
		s.initiatives[row.InitiativeID] = row
	}
	return nil
}

func (s *fakeMirrorStore) UpsertIssues(_ context.Context, rows []mirrorbus.IssueRow) error {
	for _, row := range rows {
		s.issues[row.IssueID] = row
	}
	return nil
}

func (s *fakeMirrorStore) UpsertComments(_ context.Context, rows []mirrorbus.CommentRow) error {
	for _, row := range rows {
		s.comments[row.CommentID] = row
	}
	return nil
}

func (s *fakeMirrorStore) DeleteTeam(context.Context, string, string) error       { return nil }
func (s *fakeMirrorStore) DeleteProject(context.Context, string, string) error    { return nil }
func (s *fakeMirrorStore) DeleteInitiative(context.Context, string, string) error { return nil }
func (s *fakeMirrorStore) DeleteIssue(context.Context, string, string) error      { return nil }
func (s *fakeMirrorStore) DeleteComment(context.Context, string, string) error    { return nil }

func (s *fakeMirrorStore) QueryIssues(context.Context, string, []string, mirrorbus.QueryFilter, order.By) ([]mirrorbus.IssueRow, error) {
	return nil, nil
}

func (s *fakeMirrorStore) QueryIssueByID(context.Context, string, string) (mirrorbus.IssueRow, error) {
	return mirrorbus.IssueRow{}, mirrorbus.ErrNotFound
}

func (s *fakeMirrorStore) QueryCommentsByIssue(context.Context, string, string) ([]mirrorbus.CommentRow, error) {
	return nil, nil
}

func (s *fakeMirrorStore) QueryTeams(context.Context, string, []string) ([]mirrorbus.TeamRow, error) {
	return nil, nil
}

func (s *fakeMirrorStore) QueryProjectsByTeams(context.Context, string, []string) ([]mirrorbus.ProjectRow, error) {
	return nil, nil
}

func (s *fakeMirrorStore) QueryInitiatives(context.Context, string) ([]mirrorbus.InitiativeRow, error) {
	return nil, nil
}

func (s *fakeMirrorStore) MaxSyncedAt(context.Context, string) (time.Time, error) {
	return s.maxSyncedAt, nil
}

// fakeMappingStore is the minimal in-memory mapping set.
type fakeMappingStore struct {
	mappings []mappingbus.TeamMapping
}

func (s *fakeMappingStore) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
	return s, nil
}

func (s *fakeMappingStore) Create(_ context.Context, tm mappingbus.TeamMapping) error {
	s.mappings = append(s.mappings, tm)
	return nil
}

func (s *fakeMappingStore) Update(context.Context, mappingbus.TeamMapping) error { return nil }
func (s *fakeMappingStore) Delete(context.Context, mappingbus.TeamMapping) error { return nil }

func (s *fakeMappingStore) QueryByID(context.Context, uuid.UUID) (mappingbus.TeamMapping, error) {
	return mappingbus.TeamMapping{}, mappingbus.ErrNotFound
}

func (s *fakeMappingStore) QueryActiveByHub(_ context.Context, hubID uuid.UUID) ([]mappingbus.TeamMapping, error) {
	var tms []mappingbus.TeamMapping
	for _, tm := range s.mappings {
		if tm.HubID == hubID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *fakeMappingStore) QueryActiveByTeam(_ context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	var tms []mappingbus.TeamMapping
	for _, tm := range s.mappings {
		if tm.TeamID == teamID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *fakeMappingStore) QueryAllActive(context.Context) ([]mappingbus.TeamMapping, error) {
	return s.mappings, nil
}

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

type fixture struct {
	core   *syncbus.Core
	client *fakeClient
	mirror *fakeMirrorStore
	hubA   uuid.UUID
	hubB   uuid.UUID
}

// newFixture wires two hubs: hub A maps team-1 and team-2, hub B maps
// team-2 again. Upstream has two issues on team-1, one on team-2, and one
// comment on the first issue.
func newFixture() *fixture {
	hubA := uuid.New()
	hubB := uuid.New()

	mappings := &fakeMappingStore{mappings: []mappingbus.TeamMapping{
		{ID: uuid.New(), HubID: hubA, TeamID: "team-1", Enabled: true},
		{ID: uuid.New(), HubID: hubA, TeamID: "team-2", Enabled: true},
		{ID: uuid.New(), HubID: hubB, TeamID: "team-2", Enabled: true},
	}}

	client := &fakeClient{
		teams: []tracker.Team{
			{ID: "team-1", Name: "One", Key: "ONE"},
			{ID: "team-2", Name: "Two", Key: "TWO"},
		},
		initiatives: []tracker.Initiative{{ID: "ini-1", Name: "North Star"}},
		projects: map[string][]tracker.Project{
			"team-1": {{ID: "prj-1", TeamID: "team-1"}},
		},
		issues: map[string][]tracker.Issue{
			"team-1": {
				{ID: "iss-1", Team: tracker.Ref{ID: "team-1"}},
				{ID: "iss-2", Team: tracker.Ref{ID: "team-1"}},
			},
			"team-2": {
				{ID: "iss-3", Team: tracker.Ref{ID: "team-2"}},
			},
		},
		comments: map[string][]tracker.Comment{
			"iss-1": {{ID: "cmt-1", IssueID: "iss-1", TeamID: "team-1"}},
		},
		issuesErr: map[string]error{},
	}

	mirror := newFakeMirrorStore()

	core := syncbus.NewCore(
		testLog(),
		client,
		mirrorbus.NewCore(testLog(), mirror),
		mappingbus.NewCore(testLog(), mappings),
		workspace,
	)

	return &fixture{core: core, client: client, mirror: mirror, hubA: hubA, hubB: hubB}
}

// byHub indexes a bulk run's results for assertion.
func byHub(results []syncbus.HubResult) map[uuid.UUID]syncbus.Result {
	m := make(map[uuid.UUID]syncbus.Result, len(results))
	for _, hr := range results {
		m[hr.HubID] = hr.Result
	}
	return m
}

func TestSyncAllReportsPerHub(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	results, err := f.core.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	res := byHub(results)

	resA := res[f.hubA]
	assert.True(t, resA.Success)
	assert.Zero(t, resA.Errors)
	assert.Equal(t, 2, resA.Teams)
	assert.Equal(t, 1, resA.Initiatives)
	assert.Equal(t, 1, resA.Projects)
	assert.Equal(t, 3, resA.Issues)
	assert.Equal(t, 1, resA.Comments)

	// Hub B maps only team-2: no projects, one issue, no comments. The
	// workspace-level counters are attributed to it all the same.
	resB := res[f.hubB]
	assert.Equal(t, 2, resB.Teams)
	assert.Equal(t, 1, resB.Initiatives)
	assert.Zero(t, resB.Projects)
	assert.Equal(t, 1, resB.Issues)
	assert.Zero(t, resB.Comments)

	// team-2 is mapped by both hubs but fetched once.
	assert.Equal(t, []string{"team-1", "team-2"}, f.client.teamFetches)

	assert.Len(t, f.mirror.issues, 3)
	assert.Len(t, f.mirror.comments, 1)
}

func TestSyncAllRunTwiceIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.core.SyncAll(ctx)
	require.NoError(t, err)

	second, err := f.core.SyncAll(ctx)
	require.NoError(t, err)

	// The second pass rewrites rows in place: identical per-hub counters,
	// nothing accumulated in the mirror.
	assert.Equal(t, first, second)
	assert.Len(t, f.mirror.teams, 2)
	assert.Len(t, f.mirror.projects, 1)
	assert.Len(t, f.mirror.issues, 3)
	assert.Len(t, f.mirror.comments, 1)
}

func TestSyncHubScopesToHubTeams(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.core.SyncHub(ctx, f.hubB)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"team-2"}, f.client.teamFetches)
	assert.Equal(t, 1, res.Issues)

	// Teams and initiatives are workspace level and sync regardless of
	// which hub triggered the run.
	assert.Equal(t, 2, res.Teams)
	assert.Equal(t, 1, res.Initiatives)
}

func TestSyncInitiativeFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.client.initiativesErr = errors.New("insufficient scope")

	results, err := f.core.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, hr := range results {
		assert.True(t, hr.Success)
		assert.Equal(t, 1, hr.Errors)
		assert.Zero(t, hr.Initiatives)
	}

	// The per-team pipeline still ran.
	assert.Equal(t, 3, byHub(results)[f.hubA].Issues)
}

func TestSyncTeamFailureIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.client.issuesErr["team-1"] = errors.New("rate limited")

	results, err := f.core.SyncAll(ctx)
	require.NoError(t, err)

	res := byHub(results)

	// team-1 failed after its projects were stored; team-2 completed. Only
	// hub A maps team-1, so only hub A carries the error.
	resA := res[f.hubA]
	assert.True(t, resA.Success)
	assert.Equal(t, 1, resA.Errors)
	assert.Equal(t, 1, resA.Projects)
	assert.Equal(t, 1, resA.Issues)

	resB := res[f.hubB]
	assert.Zero(t, resB.Errors)
	assert.Equal(t, 1, resB.Issues)

	assert.Contains(t, f.mirror.issues, "iss-3")
	assert.NotContains(t, f.mirror.issues, "iss-1")
}

func TestSyncTeamsFetchFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.client.teamsErr = errors.New("upstream down")

	results, err := f.core.SyncAll(ctx)
	require.Error(t, err)

	assert.Nil(t, results)
	assert.Empty(t, f.client.teamFetches)
}

func TestReconcileWatermark(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	last := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	f.mirror.maxSyncedAt = last

	res, err := f.core.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)

	// Every team fetch re-covers one minute before the newest stamp.
	require.NotEmpty(t, f.client.sinceSeen)
	for _, since := range f.client.sinceSeen {
		assert.True(t, since.Equal(last.Add(-time.Minute)))
	}
}

func TestReconcileNeverSyncedUsesLookback(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.core.Reconcile(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, f.client.sinceSeen)
	want := time.Now().Add(-10 * time.Minute)
	for _, since := range f.client.sinceSeen {
		assert.WithinDuration(t, want, since, 5*time.Second)
	}
}
