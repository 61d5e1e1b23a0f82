package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/flarebyte/crous-sync/internal/crous"
	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	"github.com/flarebyte/crous-sync/internal/fetch"
	"github.com/flarebyte/crous-sync/internal/fingerprint"
	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/flarebyte/crous-sync/internal/thumbnail"
)

// Provider is the read-only upstream catalog.
type Provider interface {
	Regions(ctx context.Context) ([]crous.Region, error)
	Restaurants(ctx context.Context, regionID int) ([]crous.Restaurant, error)
	Menus(ctx context.Context, regionID, restaurantID int) ([]crous.Menu, error)
}

var _ Provider = (*crous.Client)(nil)

// Options tune a Synchronizer. Zero values are usable.
type Options struct {
	// SkipInactive restricts the traversal to restaurants that were active
	// when the run started. Restaurants seen for the first time are skipped.
	SkipInactive bool
	Images       thumbnail.Refresher
	Logger       *slog.Logger
	Now          func() time.Time
}

// Synchronizer performs one sequential traversal of the upstream catalog.
type Synchronizer struct {
	store    catalog.Repository
	provider Provider
	fetcher  *fetch.Fetcher
	images   thumbnail.Refresher
	log      *slog.Logger
	now      func() time.Time
	skip     bool

	mu    sync.Mutex
	phase Phase
}

func NewSynchronizer(store catalog.Repository, provider Provider, fetcher *fetch.Fetcher, opts Options) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		provider: provider,
		fetcher:  fetcher,
		images:   opts.Images,
		log:      opts.Logger,
		now:      opts.Now,
		skip:     opts.SkipInactive,
	}
	if s.images == nil {
		s.images = thumbnail.Nop{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Phase returns the current state.
func (s *Synchronizer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Synchronizer) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()
	if prev != p {
		s.log.Debug("phase", "from", prev, "to", p)
	}
}

func (s *Synchronizer) fail(err error) error {
	s.setPhase(Failed)
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

// Sync walks regions, restaurants and menus in upstream order, then
// deactivates the restaurants of run.Tracker that were never sighted.
// Any fetch or restaurant-level persistence error aborts the traversal and
// is returned wrapped in ErrAborted. Writes already made are kept.
func (s *Synchronizer) Sync(ctx context.Context, run *Run) (*Report, error) {
	rep := &Report{}
	defer func() { rep.Requests = run.Requests.Load() }()

	s.setPhase(FetchingRegions)
	regions, err := fetch.Do(ctx, s.fetcher, run.Requests, fetch.Operation{Kind: fetch.ListRegions}, s.provider.Regions)
	if err != nil {
		return rep, s.fail(err)
	}
	s.log.Info("regions loaded", "count", len(regions))

	for _, region := range regions {
		if err := s.store.UpsertRegion(ctx, model.Region{ID: region.ID, Name: region.Name}); err != nil {
			return rep, s.fail(err)
		}
		rep.Regions++
		if err := s.syncRegion(ctx, run, region, rep); err != nil {
			return rep, s.fail(err)
		}
	}

	s.setPhase(Finalizing)
	gone := run.Tracker.Remaining()
	if len(gone) > 0 {
		n, err := s.store.DeactivateRestaurants(ctx, gone)
		if err != nil {
			return rep, s.fail(err)
		}
		rep.RestaurantsDeactivated = n
		s.log.Info("restaurants deactivated", "count", n, "ids", gone)
	}
	s.setPhase(Done)
	return rep, nil
}

func (s *Synchronizer) syncRegion(ctx context.Context, run *Run, region crous.Region, rep *Report) error {
	s.setPhase(FetchingRestaurants)
	op := fetch.Operation{Kind: fetch.ListRestaurants, RegionID: region.ID}
	restaurants, err := fetch.Do(ctx, s.fetcher, run.Requests, op, func(ctx context.Context) ([]crous.Restaurant, error) {
		return s.provider.Restaurants(ctx, region.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info("restaurants loaded", "region", region.Name, "count", len(restaurants))

	for _, r := range restaurants {
		if err := s.syncRestaurant(ctx, run, region, r, rep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) syncRestaurant(ctx context.Context, run *Run, region crous.Region, r crous.Restaurant, rep *Report) error {
	log := s.log.With("restaurant_id", r.ID)
	if s.skip && !run.Tracker.Contains(r.ID) {
		rep.RestaurantsSkipped++
		log.Debug("restaurant skipped, not active at run start")
		return nil
	}
	if strings.TrimSpace(r.Type) == "" {
		run.Tracker.Seen(r.ID)
		rep.RestaurantsRejected++
		logging.Critical(ctx, log, "restaurant rejected, blank type", "name", r.Name)
		return nil
	}

	typeID, err := s.store.ResolveRestaurantType(ctx, r.Type)
	if err != nil {
		return err
	}
	rec := model.Restaurant{
		ID:         r.ID,
		RegionID:   region.ID,
		TypeID:     typeID,
		Name:       r.Name,
		Address:    r.Address,
		Latitude:   r.Lat,
		Longitude:  r.Lon,
		Schedule:   crous.OptionalJSON(r.Schedule),
		Open:       r.Opening,
		ImageURL:   r.ImageURL,
		Email:      r.Email,
		Phone:      r.Phone,
		Accessible: r.Accessibility,
		Zone:       r.Zone,
		Payment:    crous.OptionalJSON(r.Payment),
		Access:     crous.OptionalJSON(r.Access),
		UpdatedAt:  s.now(),
	}
	if err := s.store.UpsertRestaurant(ctx, rec); err != nil {
		return err
	}
	run.Tracker.Seen(r.ID)

	if r.ImageURL != "" {
		s.delegateImage(ctx, log, r, rep)
	}
	if err := s.store.RecordRunParticipation(ctx, run.ID, r.ID); err != nil {
		return err
	}
	rep.RestaurantsSynced++

	s.setPhase(SyncingMenus)
	return s.syncMenus(ctx, run, region.ID, r.ID, rep)
}

// delegateImage hands a stale image to the refresher. Failures only log.
func (s *Synchronizer) delegateImage(ctx context.Context, log *slog.Logger, r crous.Restaurant, rep *Report) {
	updated, err := s.store.RestaurantImageUpdated(ctx, r.ID)
	if err != nil {
		log.Warn("image freshness lookup failed", "err", err)
		return
	}
	now := s.now()
	if !thumbnail.Stale(updated, now) {
		return
	}
	if err := s.images.Refresh(ctx, r.ID, r.ImageURL); err != nil {
		log.Warn("image refresh failed", "url", r.ImageURL, "err", err)
		return
	}
	rep.ImagesDelegated++
	if err := s.store.MarkImageUpdated(ctx, r.ID, now); err != nil {
		log.Warn("image timestamp not stored", "err", err)
	}
}

func (s *Synchronizer) syncMenus(ctx context.Context, run *Run, regionID, restaurantID int, rep *Report) error {
	op := fetch.Operation{Kind: fetch.ListMenus, RegionID: regionID, RestaurantID: restaurantID}
	menus, err := fetch.Do(ctx, s.fetcher, run.Requests, op, func(ctx context.Context) ([]crous.Menu, error) {
		return s.provider.Menus(ctx, regionID, restaurantID)
	})
	if err != nil {
		return err
	}
	s.log.Debug("menus loaded", "restaurant_id", restaurantID, "count", len(menus))
	for _, m := range menus {
		s.syncMenu(ctx, restaurantID, m, rep)
	}
	return nil
}

// syncMenu stores one menu. Persistence failures are retried as a unit and,
// once exhausted, counted without stopping the run.
func (s *Synchronizer) syncMenu(ctx context.Context, restaurantID int, m crous.Menu, rep *Report) {
	log := s.log.With("restaurant_id", restaurantID, "menu_id", m.ID)
	digest, err := fingerprint.Menu(m)
	if err != nil {
		rep.MenusFailed++
		log.Error("menu fingerprint failed", "err", err)
		return
	}
	day, err := m.Day()
	if err != nil {
		rep.MenusFailed++
		log.Error("menu date invalid", "date", m.Date, "err", err)
		return
	}

	var snap *model.MenuSnapshot
	unchanged := false
	label := fmt.Sprintf("store-menu(%d)", m.ID)
	err = s.fetcher.Retry(ctx, label, nil, func(ctx context.Context) error {
		stored, ok, err := s.store.StoredMenuDigest(ctx, m.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if ok && stored == digest {
			unchanged = true
			return s.store.TouchMenuChecked(ctx, m.ID, now)
		}
		unchanged = false
		if snap == nil {
			v := s.snapshot(ctx, log, restaurantID, day, digest, m, rep)
			snap = &v
		}
		snap.CheckedAt = now
		return s.store.ReplaceMenuSubtree(ctx, *snap)
	})
	switch {
	case err != nil:
		rep.MenusFailed++
		log.Error("menu not stored", "err", err)
	case unchanged:
		rep.MenusUnchanged++
		log.Debug("menu unchanged")
	default:
		rep.MenusReplaced++
		log.Debug("menu replaced", "digest", digest)
	}
}

// snapshot converts m into the stored shape, dropping invalid dish labels.
// Positions keep the upstream index.
func (s *Synchronizer) snapshot(ctx context.Context, log *slog.Logger, restaurantID int, day time.Time, digest string, m crous.Menu, rep *Report) model.MenuSnapshot {
	snap := model.MenuSnapshot{
		ID:           m.ID,
		RestaurantID: restaurantID,
		Date:         day,
		Digest:       digest,
		Meals:        make([]model.MealSnapshot, 0, len(m.Meals)),
	}
	for mi, meal := range m.Meals {
		ms := model.MealSnapshot{Label: meal.Name, Position: mi}
		for ci, cat := range meal.Categories {
			cs := model.CategorySnapshot{Label: cat.Name, Position: ci}
			for di, d := range cat.Dishes {
				if reason := invalidDish(d.Name); reason != "" {
					rep.DishesRejected++
					logging.Critical(ctx, log, "dish rejected", "reason", reason,
						"meal", meal.Name, "category", cat.Name, "length", utf8.RuneCountInString(d.Name))
					continue
				}
				cs.Dishes = append(cs.Dishes, model.Placement{Label: d.Name, Position: di})
			}
			ms.Categories = append(ms.Categories, cs)
		}
		snap.Meals = append(snap.Meals, ms)
	}
	return snap
}

func invalidDish(label string) string {
	if strings.TrimSpace(label) == "" {
		return "blank label"
	}
	if utf8.RuneCountInString(label) >= model.MaxDishLabelLength {
		return "label too long"
	}
	return ""
}
