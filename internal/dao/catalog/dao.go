// Package catalog defines the persistence contract used by the synchronizer
// and its Postgres and in-memory implementations.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/flarebyte/crous-sync/internal/model"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrMenuNotFound = errors.New("menu not found")
)

// Repository is the hierarchy access used while traversing upstream data.
type Repository interface {
	ActiveRestaurantIDs(ctx context.Context) ([]int, error)
	UpsertRegion(ctx context.Context, r model.Region) error
	ResolveRestaurantType(ctx context.Context, label string) (int, error)
	UpsertRestaurant(ctx context.Context, r model.Restaurant) error
	RestaurantImageUpdated(ctx context.Context, id int) (*time.Time, error)
	MarkImageUpdated(ctx context.Context, id int, at time.Time) error
	StoredMenuDigest(ctx context.Context, menuID int64) (digest string, ok bool, err error)
	TouchMenuChecked(ctx context.Context, menuID int64, at time.Time) error
	ReplaceMenuSubtree(ctx context.Context, m model.MenuSnapshot) error
	RecordRunParticipation(ctx context.Context, runID int64, restaurantID int) error
	DeactivateRestaurants(ctx context.Context, ids []int) (int64, error)
}

// RunLedger records run bookkeeping and aggregate statistics.
type RunLedger interface {
	Stats(ctx context.Context) (model.Counts, error)
	CountActiveRestaurants(ctx context.Context) (int, error)
	StartRun(ctx context.Context, key string, started time.Time, counts model.Counts, activeStart int) (int64, error)
	FinishRun(ctx context.Context, f model.RunFinish) error
	RefreshStatsView(ctx context.Context) (concurrent bool, err error)
}

// Store is everything a sync run needs.
type Store interface {
	Repository
	RunLedger
}

// Reader serves the read-only status surface.
type Reader interface {
	Ping(ctx context.Context) error
	StatsSnapshot(ctx context.Context) (model.StatsSnapshot, error)
	ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error)
	GetRun(ctx context.Context, id int64) (*model.Run, error)
}
