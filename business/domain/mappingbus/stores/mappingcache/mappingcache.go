// Package mappingcache decorates the mapping store with a TTL-bounded
// in-memory cache of the active mapping set.
//
// The cached set gates both webhook ingestion and tenant read exposure, so
// staleness here is an isolation bug, not just a freshness bug. Every
// mutation method invalidates the cache synchronously before returning;
// the TTL only bounds the blast radius of out-of-band writes.
package mappingcache

import (
	"context"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/viccon/sturdyc"
)

// The active set is cached under a single key so one invalidation call
// covers every lookup shape.
const activeKey = "team-mappings:active"

// Store implements the mappingbus.Storer interface over the real database
// store with a read-through cache on the active mapping set.
type Store struct {
	log    *logger.Logger
	storer mappingbus.Storer
	cache  *sturdyc.Client[[]mappingbus.TeamMapping]
}

// NewStore constructs the cached store with the specified TTL.
func NewStore(log *logger.Logger, storer mappingbus.Storer, ttl time.Duration) *Store {
	const capacity = 32
	const numShards = 2
	const evictionPercentage = 10

	return &Store{
		log:    log,
		storer: storer,
		cache:  sturdyc.New[[]mappingbus.TeamMapping](capacity, numShards, ttl, evictionPercentage),
	}
}

// NewWithTx constructs a new Storer replacing the underlying store with one
// that is inside a transaction. The cache is shared so the transactional
// store's mutations still invalidate the single process-wide copy.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:    s.log,
		storer: storer,
		cache:  s.cache,
	}, nil
}

// Invalidate drops the cached active set. The next read repopulates from
// the database.
func (s *Store) Invalidate() {
	s.cache.Delete(activeKey)
}

// Create inserts a new mapping and invalidates.
func (s *Store) Create(ctx context.Context, tm mappingbus.TeamMapping) error {
	if err := s.storer.Create(ctx, tm); err != nil {
		return err
	}

	s.Invalidate()

	return nil
}

// Update replaces a mapping and invalidates.
func (s *Store) Update(ctx context.Context, tm mappingbus.TeamMapping) error {
	if err := s.storer.Update(ctx, tm); err != nil {
		return err
	}

	s.Invalidate()

	return nil
}

// Delete removes a mapping and invalidates.
func (s *Store) Delete(ctx context.Context, tm mappingbus.TeamMapping) error {
	if err := s.storer.Delete(ctx, tm); err != nil {
		return err
	}

	s.Invalidate()

	return nil
}

// QueryByID passes through to the database. Single-row admin lookups do not
// participate in the cached active set.
func (s *Store) QueryByID(ctx context.Context, mappingID uuid.UUID) (mappingbus.TeamMapping, error) {
	return s.storer.QueryByID(ctx, mappingID)
}

// QueryActiveByHub serves the hub's active mappings from the cached set.
func (s *Store) QueryActiveByHub(ctx context.Context, hubID uuid.UUID) ([]mappingbus.TeamMapping, error) {
	all, err := s.readActive(ctx)
	if err != nil {
		return nil, err
	}

	var tms []mappingbus.TeamMapping
	for _, tm := range all {
		if tm.HubID == hubID {
			tms = append(tms, tm)
		}
	}

	return tms, nil
}

// QueryActiveByTeam serves the team's active mappings from the cached set.
func (s *Store) QueryActiveByTeam(ctx context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	all, err := s.readActive(ctx)
	if err != nil {
		return nil, err
	}

	var tms []mappingbus.TeamMapping
	for _, tm := range all {
		if tm.TeamID == teamID {
			tms = append(tms, tm)
		}
	}

	return tms, nil
}

// QueryAllActive serves the full active set from the cache.
func (s *Store) QueryAllActive(ctx context.Context) ([]mappingbus.TeamMapping, error) {
	return s.readActive(ctx)
}

func (s *Store) readActive(ctx context.Context) ([]mappingbus.TeamMapping, error) {
	fetch := func(ctx context.Context) ([]mappingbus.TeamMapping, error) {
		s.log.Debug(ctx, "mappingcache: refreshing active mapping set")
		return s.storer.QueryAllActive(ctx)
	}

	return s.cache.GetOrFetch(ctx, activeKey, fetch)
}
