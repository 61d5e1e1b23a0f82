package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store and Reader on top of a Postgres pool.
type PGStore struct {
	DB *pgxpool.Pool
}

// NewPGStore creates a new store using the given pool.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

var (
	_ Store  = (*PGStore)(nil)
	_ Reader = (*PGStore)(nil)
)

func (s *PGStore) pool() (*pgxpool.Pool, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("pgstore: not initialized")
	}
	return s.DB, nil
}

func (s *PGStore) ActiveRestaurantIDs(ctx context.Context) ([]int, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	return pgdao.ActiveRestaurantIDs(ctx, db)
}

func (s *PGStore) UpsertRegion(ctx context.Context, r model.Region) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.UpsertRegion(ctx, db, r)
}

func (s *PGStore) ResolveRestaurantType(ctx context.Context, label string) (int, error) {
	db, err := s.pool()
	if err != nil {
		return 0, err
	}
	return pgdao.ResolveRestaurantType(ctx, db, label)
}

func (s *PGStore) UpsertRestaurant(ctx context.Context, r model.Restaurant) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.UpsertRestaurant(ctx, db, r)
}

func (s *PGStore) RestaurantImageUpdated(ctx context.Context, id int) (*time.Time, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	return pgdao.RestaurantImageUpdated(ctx, db, id)
}

func (s *PGStore) MarkImageUpdated(ctx context.Context, id int, at time.Time) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.MarkImageUpdated(ctx, db, id, at)
}

func (s *PGStore) StoredMenuDigest(ctx context.Context, menuID int64) (string, bool, error) {
	db, err := s.pool()
	if err != nil {
		return "", false, err
	}
	return pgdao.StoredMenuDigest(ctx, db, menuID)
}

func (s *PGStore) TouchMenuChecked(ctx context.Context, menuID int64, at time.Time) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.TouchMenuChecked(ctx, db, menuID, at)
}

func (s *PGStore) ReplaceMenuSubtree(ctx context.Context, m model.MenuSnapshot) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.ReplaceMenuSubtree(ctx, db, m)
}

func (s *PGStore) RecordRunParticipation(ctx context.Context, runID int64, restaurantID int) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.RecordRunParticipation(ctx, db, runID, restaurantID)
}

func (s *PGStore) DeactivateRestaurants(ctx context.Context, ids []int) (int64, error) {
	db, err := s.pool()
	if err != nil {
		return 0, err
	}
	return pgdao.DeactivateRestaurants(ctx, db, ids)
}

func (s *PGStore) Stats(ctx context.Context) (model.Counts, error) {
	db, err := s.pool()
	if err != nil {
		return model.Counts{}, err
	}
	return pgdao.ComputeStats(ctx, db)
}

func (s *PGStore) CountActiveRestaurants(ctx context.Context) (int, error) {
	db, err := s.pool()
	if err != nil {
		return 0, err
	}
	return pgdao.CountActiveRestaurants(ctx, db)
}

func (s *PGStore) StartRun(ctx context.Context, key string, started time.Time, counts model.Counts, activeStart int) (int64, error) {
	db, err := s.pool()
	if err != nil {
		return 0, err
	}
	return pgdao.StartRun(ctx, db, key, started, counts, activeStart)
}

func (s *PGStore) FinishRun(ctx context.Context, f model.RunFinish) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.FinishRun(ctx, db, f)
}

func (s *PGStore) RefreshStatsView(ctx context.Context) (bool, error) {
	db, err := s.pool()
	if err != nil {
		return false, err
	}
	return pgdao.RefreshStatsView(ctx, db)
}

func (s *PGStore) Ping(ctx context.Context) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return pgdao.Ping(ctx, db)
}

func (s *PGStore) StatsSnapshot(ctx context.Context) (model.StatsSnapshot, error) {
	db, err := s.pool()
	if err != nil {
		return model.StatsSnapshot{}, err
	}
	return pgdao.ReadStatsView(ctx, db)
}

func (s *PGStore) ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	return pgdao.ListRuns(ctx, db, limit, offset)
}

func (s *PGStore) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}
	r, err := pgdao.GetRun(ctx, db, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return r, err
}
