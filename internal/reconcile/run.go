// Package reconcile walks the upstream catalog and brings the store in line
// with it.
package reconcile

import (
	"errors"
	"time"

	"github.com/flarebyte/crous-sync/internal/fetch"
	"github.com/flarebyte/crous-sync/internal/lifecycle"
)

// ErrAborted wraps every error that stopped a run before the end of the traversal.
var ErrAborted = errors.New("sync aborted")

// Phase is the synchronizer state.
type Phase int

const (
	Idle Phase = iota
	FetchingRegions
	FetchingRestaurants
	SyncingMenus
	Finalizing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FetchingRegions:
		return "fetching-regions"
	case FetchingRestaurants:
		return "fetching-restaurants"
	case SyncingMenus:
		return "syncing-menus"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Run is the state scoped to one execution: its ledger row, the upstream
// request counter and the working set of restaurants not sighted yet.
type Run struct {
	ID       int64
	Key      string
	Started  time.Time
	Requests *fetch.Counter
	Tracker  *lifecycle.Tracker
}

// NewRun returns a run whose working set starts as activeIDs.
func NewRun(id int64, key string, started time.Time, activeIDs []int) *Run {
	return &Run{
		ID:       id,
		Key:      key,
		Started:  started,
		Requests: &fetch.Counter{},
		Tracker:  lifecycle.New(activeIDs),
	}
}

// Report counts what a traversal did.
type Report struct {
	Regions                int   `json:"regions"`
	RestaurantsSynced      int   `json:"restaurants_synced"`
	RestaurantsSkipped     int   `json:"restaurants_skipped"`
	RestaurantsRejected    int   `json:"restaurants_rejected"`
	MenusUnchanged         int   `json:"menus_unchanged"`
	MenusReplaced          int   `json:"menus_replaced"`
	MenusFailed            int   `json:"menus_failed"`
	DishesRejected         int   `json:"dishes_rejected"`
	ImagesDelegated        int   `json:"images_delegated"`
	RestaurantsDeactivated int64 `json:"restaurants_deactivated"`
	Requests               int64 `json:"requests"`
}
