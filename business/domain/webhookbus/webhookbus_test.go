package webhookbus_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/order"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspace = "acme"

type fakeSubStore struct {
	subs map[uuid.UUID]webhookbus.Subscription
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{subs: make(map[uuid.UUID]webhookbus.Subscription)}
}

func (s *fakeSubStore) Create(_ context.Context, sub webhookbus.Subscription) error {
	s.subs[sub.ID] = sub
	return nil
}

func (s *fakeSubStore) Delete(_ context.Context, sub webhookbus.Subscription) error {
	delete(s.subs, sub.ID)
	return nil
}

func (s *fakeSubStore) QueryByID(_ context.Context, subID uuid.UUID) (webhookbus.Subscription, error) {
	sub, exists := s.subs[subID]
	if !exists {
		return webhookbus.Subscription{}, webhookbus.ErrNotFound
	}
	return sub, nil
}

func (s *fakeSubStore) QueryAllActive(_ context.Context) ([]webhookbus.Subscription, error) {
	var subs []webhookbus.Subscription
	for _, sub := range s.subs {
		if sub.Enabled {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

type fakeMappingStore struct {
	tracked map[string]bool
}

func (s *fakeMappingStore) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
	return s, nil
}

func (s *fakeMappingStore) Create(context.Context, mappingbus.TeamMapping) error { return nil }
func (s *fakeMappingStore) Update(context.Context, mappingbus.TeamMapping) error { return nil }
func (s *fakeMappingStore) Delete(context.Context, mappingbus.TeamMapping) error { return nil }

func (s *fakeMappingStore) QueryByID(context.Context, uuid.UUID) (mappingbus.TeamMapping, error) {
	return mappingbus.TeamMapping{}, mappingbus.ErrNotFound
}

func (s *fakeMappingStore) QueryActiveByHub(context.Context, uuid.UUID) ([]mappingbus.TeamMapping, error) {
	return nil, nil
}

func (s *fakeMappingStore) QueryActiveByTeam(_ context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	if !s.tracked[teamID] {
		return nil, nil
	}
	return []mappingbus.TeamMapping{{ID: uuid.New(), TeamID: teamID, Enabled: true}}, nil
}

func (s *fakeMappingStore) QueryAllActive(context.Context) ([]mappingbus.TeamMapping, error) {
	return nil, nil
}

// fakeMirrorStore records what reached the mirror.
type fakeMirrorStore struct {
	issues   map[string]mirrorbus.IssueRow
	teams    map[string]mirrorbus.TeamRow
	comments map[string]mirrorbus.CommentRow
	deleted  []string
}

func newFakeMirrorStore() *fakeMirrorStore {
	return &fakeMirrorStore{
		issues:   make(map[string]mirrorbus.IssueRow),
		teams:    make(map[string]mirrorbus.TeamRow),
		comments: make(map[string]mirrorbus.CommentRow),
	}
}

func (s *fakeMirrorStore) UpsertTeams(_ context.Context, rows []mirrorbus.TeamRow) error {
	for _, row := range rows {
		s.teams[row.TeamID] = row
	}
	return nil
}

func (s *fakeMirrorStore) UpsertProjects(context.Context, []mirrorbus.ProjectRow) error { return nil }

func (s *fakeMirrorStore) UpsertInitiatives(context.Context, []mirrorbus.InitiativeRow) error {
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

func (s *fakeMirrorStore) DeleteTeam(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, "team:"+id)
	return nil
}

func (s *fakeMirrorStore) DeleteProject(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, "project:"+id)
	return nil
}

func (s *fakeMirrorStore) DeleteInitiative(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, "initiative:"+id)
	return nil
}

func (s *fakeMirrorStore) DeleteIssue(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, "issue:"+id)
	delete(s.issues, id)
	return nil
}

func (s *fakeMirrorStore) DeleteComment(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, "comment:"+id)
	return nil
}

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
	return time.Time{}, nil
}

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

type fixture struct {
	core   *webhookbus.Core
	subs   *fakeSubStore
	mirror *fakeMirrorStore
}

func newFixture(trackedTeams ...string) *fixture {
	tracked := make(map[string]bool, len(trackedTeams))
	for _, id := range trackedTeams {
		tracked[id] = true
	}

	subs := newFakeSubStore()
	mirror := newFakeMirrorStore()

	core := webhookbus.NewCore(
		testLog(),
		subs,
		mappingbus.NewCore(testLog(), &fakeMappingStore{tracked: tracked}),
		mirrorbus.NewCore(testLog(), mirror),
		workspace,
	)

	return &fixture{core: core, subs: subs, mirror: mirror}
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	subA, err := f.core.Create(ctx, webhookbus.NewSubscription{Label: "a", Secret: "secret-a"})
	require.NoError(t, err)

	_, err = f.core.Create(ctx, webhookbus.NewSubscription{Label: "b", Secret: "secret-b"})
	require.NoError(t, err)

	body := []byte(`{"action":"update","type":"Issue"}`)

	tests := []struct {
		name      string
		signature string
		webhookID string
		wantErr   error
	}{
		{
			name:    "missing signature",
			wantErr: webhookbus.ErrSignatureMissing,
		},
		{
			name:      "fast path with named subscription",
			signature: sign(body, "secret-a"),
			webhookID: subA.ID.String(),
		},
		{
			name:      "named subscription wrong secret",
			signature: sign(body, "secret-b"),
			webhookID: subA.ID.String(),
			wantErr:   webhookbus.ErrSignatureInvalid,
		},
		{
			name:      "unknown subscription id",
			signature: sign(body, "secret-a"),
			webhookID: uuid.NewString(),
			wantErr:   webhookbus.ErrSignatureInvalid,
		},
		{
			name:      "scan finds second subscription",
			signature: sign(body, "secret-b"),
		},
		{
			name:      "non-uuid webhook id falls back to scan",
			signature: sign(body, "secret-a"),
			webhookID: "not-a-uuid",
		},
		{
			name:      "no secret matches",
			signature: sign(body, "secret-z"),
			wantErr:   webhookbus.ErrSignatureInvalid,
		},
		{
			name:      "signature over different body",
			signature: sign([]byte(`{}`), "secret-a"),
			wantErr:   webhookbus.ErrSignatureInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.core.Verify(ctx, body, tt.signature, tt.webhookID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifyDisabledSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sub, err := f.core.Create(ctx, webhookbus.NewSubscription{Label: "a", Secret: "secret-a"})
	require.NoError(t, err)

	sub.Enabled = false
	f.subs.subs[sub.ID] = sub

	body := []byte(`{}`)

	// Named path and scan path must both refuse a disabled subscription.
	err = f.core.Verify(ctx, body, sign(body, "secret-a"), sub.ID.String())
	assert.ErrorIs(t, err, webhookbus.ErrSignatureInvalid)

	err = f.core.Verify(ctx, body, sign(body, "secret-a"), "")
	assert.ErrorIs(t, err, webhookbus.ErrSignatureInvalid)
}

func TestCreateGeneratesSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	sub, err := f.core.Create(ctx, webhookbus.NewSubscription{Label: "generated"})
	require.NoError(t, err)

	assert.Len(t, sub.Secret, 64)
	assert.True(t, sub.Enabled)
}

func event(action string, kind string, data string) webhookbus.Event {
	return webhookbus.Event{
		Action: action,
		Type:   kind,
		Data:   json.RawMessage(data),
	}
}

func TestProcessUpsertsTrackedIssue(t *testing.T) {
	ctx := context.Background()
	f := newFixture("team-1")

	data := `{"id":"iss-1","identifier":"ENG-1","title":"Crash","team":{"id":"team-1"},"state":{"name":"Todo","type":"unstarted"}}`

	err := f.core.Process(ctx, event("create", "Issue", data))
	require.NoError(t, err)

	row, exists := f.mirror.issues["iss-1"]
	require.True(t, exists)
	assert.Equal(t, "team-1", row.TeamID)
	assert.Equal(t, "unstarted", row.StateType)
	assert.JSONEq(t, data, string(row.Raw))
}

func TestProcessDropsUntrackedTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture("team-1")

	data := `{"id":"iss-9","team":{"id":"team-9"}}`

	err := f.core.Process(ctx, event("create", "Issue", data))
	require.NoError(t, err)

	assert.Empty(t, f.mirror.issues)
}

func TestProcessCommentTeamKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture("team-1")

	err := f.core.Process(ctx, event("create", "Comment", `{"id":"cmt-1","issueId":"iss-1","teamId":"team-1","body":"hi"}`))
	require.NoError(t, err)
	assert.Contains(t, f.mirror.comments, "cmt-1")

	err = f.core.Process(ctx, event("create", "Comment", `{"id":"cmt-2","issueId":"iss-2","teamId":"team-9","body":"hi"}`))
	require.NoError(t, err)
	assert.NotContains(t, f.mirror.comments, "cmt-2")
}

func TestProcessTeamEventsAlwaysProcessed(t *testing.T) {
	ctx := context.Background()

	// No tracked teams at all; org-level kinds still land.
	f := newFixture()

	err := f.core.Process(ctx, event("update", "Team", `{"id":"team-5","name":"Five","key":"FIV"}`))
	require.NoError(t, err)

	assert.Contains(t, f.mirror.teams, "team-5")
}

func TestProcessRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture("team-1")

	data := `{"id":"iss-1","team":{"id":"team-1"}}`
	require.NoError(t, f.core.Process(ctx, event("create", "Issue", data)))
	require.Contains(t, f.mirror.issues, "iss-1")

	require.NoError(t, f.core.Process(ctx, event("remove", "Issue", data)))

	assert.NotContains(t, f.mirror.issues, "iss-1")
	assert.Equal(t, []string{"issue:iss-1"}, f.mirror.deleted)

	// Redelivery of the remove is harmless.
	require.NoError(t, f.core.Process(ctx, event("remove", "Issue", data)))
}

func TestProcessUnknownKindAndAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture("team-1")

	require.NoError(t, f.core.Process(ctx, event("create", "Reaction", `{"id":"r-1"}`)))
	require.NoError(t, f.core.Process(ctx, event("restore", "Issue", `{"id":"iss-1","team":{"id":"team-1"}}`)))

	assert.Empty(t, f.mirror.issues)
	assert.Empty(t, f.mirror.deleted)
}
