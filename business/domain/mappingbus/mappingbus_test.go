package mappingbus_test

import (
	"context"
	"io"
	"testing"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mappings map[uuid.UUID]mappingbus.TeamMapping
}

func newFakeStore() *fakeStore {
	return &fakeStore{mappings: make(map[uuid.UUID]mappingbus.TeamMapping)}
}

func (s *fakeStore) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
	return s, nil
}

func (s *fakeStore) Create(_ context.Context, tm mappingbus.TeamMapping) error {
	s.mappings[tm.ID] = tm
	return nil
}

func (s *fakeStore) Update(_ context.Context, tm mappingbus.TeamMapping) error {
	s.mappings[tm.ID] = tm
	return nil
}

func (s *fakeStore) Delete(_ context.Context, tm mappingbus.TeamMapping) error {
	delete(s.mappings, tm.ID)
	return nil
}

func (s *fakeStore) QueryByID(_ context.Context, mappingID uuid.UUID) (mappingbus.TeamMapping, error) {
	tm, exists := s.mappings[mappingID]
	if !exists {
		return mappingbus.TeamMapping{}, mappingbus.ErrNotFound
	}
	return tm, nil
}

func (s *fakeStore) QueryActiveByHub(_ context.Context, hubID uuid.UUID) ([]mappingbus.TeamMapping, error) {
	var tms []mappingbus.TeamMapping
	for _, tm := range s.mappings {
		if tm.Enabled && tm.HubID == hubID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *fakeStore) QueryActiveByTeam(_ context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	var tms []mappingbus.TeamMapping
	for _, tm := range s.mappings {
		if tm.Enabled && tm.TeamID == teamID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *fakeStore) QueryAllActive(_ context.Context) ([]mappingbus.TeamMapping, error) {
	var tms []mappingbus.TeamMapping
	for _, tm := range s.mappings {
		if tm.Enabled {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

func TestCreateTeamExclusivity(t *testing.T) {
	ctx := context.Background()
	core := mappingbus.NewCore(testLog(), newFakeStore())

	hubA := uuid.New()
	hubB := uuid.New()

	_, err := core.Create(ctx, mappingbus.NewTeamMapping{HubID: hubA, TeamID: "team-1"})
	require.NoError(t, err)

	_, err = core.Create(ctx, mappingbus.NewTeamMapping{HubID: hubB, TeamID: "team-1"})
	assert.ErrorIs(t, err, mappingbus.ErrTeamMapped)

	// A different team maps fine.
	_, err = core.Create(ctx, mappingbus.NewTeamMapping{HubID: hubB, TeamID: "team-2"})
	assert.NoError(t, err)
}

func TestUpdateReenableExclusivity(t *testing.T) {
	ctx := context.Background()
	core := mappingbus.NewCore(testLog(), newFakeStore())

	hubA := uuid.New()
	hubB := uuid.New()

	tmA, err := core.Create(ctx, mappingbus.NewTeamMapping{HubID: hubA, TeamID: "team-1"})
	require.NoError(t, err)

	disabled := false
	tmA, err = core.Update(ctx, tmA, mappingbus.UpdateTeamMapping{Enabled: &disabled})
	require.NoError(t, err)
	require.False(t, tmA.Enabled)

	// With A disabled the team is free for B.
	tmB, err := core.Create(ctx, mappingbus.NewTeamMapping{HubID: hubB, TeamID: "team-1"})
	require.NoError(t, err)

	// Re-enabling A must now fail; the team belongs to B.
	enabled := true
	_, err = core.Update(ctx, tmA, mappingbus.UpdateTeamMapping{Enabled: &enabled})
	assert.ErrorIs(t, err, mappingbus.ErrTeamMapped)

	// Re-enabling an already enabled mapping is a no-op, not a conflict.
	_, err = core.Update(ctx, tmB, mappingbus.UpdateTeamMapping{Enabled: &enabled})
	assert.NoError(t, err)
}

func TestUpdateVisibilityLists(t *testing.T) {
	ctx := context.Background()
	core := mappingbus.NewCore(testLog(), newFakeStore())

	tm, err := core.Create(ctx, mappingbus.NewTeamMapping{
		HubID:      uuid.New(),
		TeamID:     "team-1",
		ProjectIDs: []string{"prj-1"},
	})
	require.NoError(t, err)

	empty := []string{}
	tm, err = core.Update(ctx, tm, mappingbus.UpdateTeamMapping{
		ProjectIDs: &empty,
		LabelIDs:   &[]string{"lbl-1"},
	})
	require.NoError(t, err)

	assert.Empty(t, tm.ProjectIDs)
	assert.Equal(t, []string{"lbl-1"}, tm.LabelIDs)
}

func TestIsTeamTracked(t *testing.T) {
	ctx := context.Background()
	core := mappingbus.NewCore(testLog(), newFakeStore())

	_, err := core.Create(ctx, mappingbus.NewTeamMapping{HubID: uuid.New(), TeamID: "team-1"})
	require.NoError(t, err)

	tracked, err := core.IsTeamTracked(ctx, "team-1")
	require.NoError(t, err)
	assert.True(t, tracked)

	tracked, err = core.IsTeamTracked(ctx, "team-9")
	require.NoError(t, err)
	assert.False(t, tracked)
}
