package mappingcache_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus/stores/mappingcache"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how many times the active set is read from the
// backing store so cache hits and invalidations are observable.
type countingStore struct {
	mappings    map[uuid.UUID]mappingbus.TeamMapping
	activeReads int
}

func newCountingStore() *countingStore {
	return &countingStore{mappings: make(map[uuid.UUID]mappingbus.TeamMapping)}
}

func (s *countingStore) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
	return s, nil
}

func (s *countingStore) Create(_ context.Context, tm mappingbus.TeamMapping) error {
	s.mappings[tm.ID] = tm
	return nil
}

func (s *countingStore) Update(_ context.Context, tm mappingbus.TeamMapping) error {
	s.mappings[tm.ID] = tm
	return nil
}

func (s *countingStore) Delete(_ context.Context, tm mappingbus.TeamMapping) error {
	delete(s.mappings, tm.ID)
	return nil
}

func (s *countingStore) QueryByID(_ context.Context, mappingID uuid.UUID) (mappingbus.TeamMapping, error) {
	tm, exists := s.mappings[mappingID]
	if !exists {
		return mappingbus.TeamMapping{}, mappingbus.ErrNotFound
	}
	return tm, nil
}

func (s *countingStore) QueryActiveByHub(ctx context.Context, hubID uuid.UUID) ([]mappingbus.TeamMapping, error) {
	all, _ := s.QueryAllActive(ctx)
	var tms []mappingbus.TeamMapping
	for _, tm := range all {
		if tm.HubID == hubID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *countingStore) QueryActiveByTeam(ctx context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	all, _ := s.QueryAllActive(ctx)
	var tms []mappingbus.TeamMapping
	for _, tm := range all {
		if tm.TeamID == teamID {
			tms = append(tms, tm)
		}
	}
	return tms, nil
}

func (s *countingStore) QueryAllActive(_ context.Context) ([]mappingbus.TeamMapping, error) {
	s.activeReads++

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

func mapping(hubID uuid.UUID, teamID string) mappingbus.TeamMapping {
	return mappingbus.TeamMapping{
		ID:      uuid.New(),
		HubID:   hubID,
		TeamID:  teamID,
		Enabled: true,
	}
}

func TestCachedReads(t *testing.T) {
	ctx := context.Background()
	db := newCountingStore()
	store := mappingcache.NewStore(testLog(), db, time.Minute)

	hubID := uuid.New()
	require.NoError(t, store.Create(ctx, mapping(hubID, "team-1")))
	require.NoError(t, store.Create(ctx, mapping(hubID, "team-2")))

	db.activeReads = 0

	tms, err := store.QueryActiveByHub(ctx, hubID)
	require.NoError(t, err)
	assert.Len(t, tms, 2)
	assert.Equal(t, 1, db.activeReads)

	// Every lookup shape serves from the one cached set.
	_, err = store.QueryActiveByTeam(ctx, "team-1")
	require.NoError(t, err)
	_, err = store.QueryAllActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, db.activeReads)
}

func TestMutationsInvalidateSynchronously(t *testing.T) {
	ctx := context.Background()
	db := newCountingStore()
	store := mappingcache.NewStore(testLog(), db, time.Minute)

	hubID := uuid.New()
	tm := mapping(hubID, "team-1")
	require.NoError(t, store.Create(ctx, tm))

	warm := func() {
		_, err := store.QueryAllActive(ctx)
		require.NoError(t, err)
	}

	warm()
	reads := db.activeReads

	// A warm cache absorbs the next read.
	warm()
	require.Equal(t, reads, db.activeReads)

	// Update drops the cached set; the very next read refetches and sees
	// the new state.
	tm.TeamID = "team-renamed"
	require.NoError(t, store.Update(ctx, tm))

	tms, err := store.QueryActiveByTeam(ctx, "team-renamed")
	require.NoError(t, err)
	assert.Len(t, tms, 1)
	assert.Equal(t, reads+1, db.activeReads)

	// Delete behaves the same way.
	require.NoError(t, store.Delete(ctx, tm))

	tms, err = store.QueryActiveByTeam(ctx, "team-renamed")
	require.NoError(t, err)
	assert.Empty(t, tms)
}

func TestTransactionalStoreSharesCache(t *testing.T) {
	ctx := context.Background()
	db := newCountingStore()
	store := mappingcache.NewStore(testLog(), db, time.Minute)

	hubID := uuid.New()
	require.NoError(t, store.Create(ctx, mapping(hubID, "team-1")))

	_, err := store.QueryAllActive(ctx)
	require.NoError(t, err)
	reads := db.activeReads

	txStore, err := store.NewWithTx(nil)
	require.NoError(t, err)

	// A mutation through the transactional store must invalidate the same
	// process-wide cache.
	require.NoError(t, txStore.Create(ctx, mapping(hubID, "team-2")))

	tms, err := store.QueryAllActive(ctx)
	require.NoError(t, err)
	assert.Len(t, tms, 2)
	assert.Equal(t, reads+1, db.activeReads)
}

func TestTTLBoundsOutOfBandWrites(t *testing.T) {
	ctx := context.Background()
	db := newCountingStore()
	store := mappingcache.NewStore(testLog(), db, 10*time.Millisecond)

	hubID := uuid.New()
	require.NoError(t, store.Create(ctx, mapping(hubID, "team-1")))

	_, err := store.QueryAllActive(ctx)
	require.NoError(t, err)

	// Simulate a write that bypassed this process.
	db.mappings[uuid.New()] = mapping(hubID, "team-2")

	assert.Eventually(t, func() bool {
		tms, err := store.QueryAllActive(ctx)
		return err == nil && len(tms) == 2
	}, time.Second, 5*time.Millisecond)
}
