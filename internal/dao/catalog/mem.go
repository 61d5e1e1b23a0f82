package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flarebyte/crous-sync/internal/model"
)

type memRestaurant struct {
	rec          model.Restaurant
	active       bool
	added        time.Time
	imageUpdated *time.Time
}

// MemStore is an in-memory Store and Reader for tests and dry runs. It keeps
// the Postgres semantics that matter to the synchronizer: atomic menu replace,
// global dish dedup by label and first-placement-wins compositions.
type MemStore struct {
	mu          sync.Mutex
	regions     map[int]model.Region
	types       map[string]int
	restaurants map[int]*memRestaurant
	menus       map[int64]model.MenuSnapshot
	dishes      map[string]int64
	runs        map[int64]*model.Run
	runLogs     map[int64]map[int]bool
	refreshed   time.Time

	nextDish int64
	nextRun  int64

	fail         map[string]error
	replaceFails map[int64]int
	replaceErr   error

	touches  int
	replaces int
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		regions:      map[int]model.Region{},
		types:        map[string]int{},
		restaurants:  map[int]*memRestaurant{},
		menus:        map[int64]model.MenuSnapshot{},
		dishes:       map[string]int64{},
		runs:         map[int64]*model.Run{},
		runLogs:      map[int64]map[int]bool{},
		fail:         map[string]error{},
		replaceFails: map[int64]int{},
	}
}

var (
	_ Store  = (*MemStore)(nil)
	_ Reader = (*MemStore)(nil)
)

// Fail makes every call of op (a method name such as "StartRun") return err.
// A nil err clears the failure.
func (m *MemStore) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// FailReplace makes the next n replaces of menuID fail with err after part of
// the new subtree has been built.
func (m *MemStore) FailReplace(menuID int64, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceFails[menuID] = n
	m.replaceErr = err
}

func (m *MemStore) failed(op string) error {
	if err, ok := m.fail[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SeedRestaurant stores a restaurant with the given active flag, bypassing upsert.
func (m *MemStore) SeedRestaurant(r model.Restaurant, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restaurants[r.ID] = &memRestaurant{rec: r, active: active, added: time.Now()}
}

// Restaurant returns a stored restaurant and its active flag.
func (m *MemStore) Restaurant(id int) (model.Restaurant, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return model.Restaurant{}, false, false
	}
	return r.rec, r.active, true
}

// Menu returns a copy of the stored menu snapshot.
func (m *MemStore) Menu(id int64) (model.MenuSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.menus[id]
	if !ok {
		return model.MenuSnapshot{}, false
	}
	return cloneSnapshot(s), true
}

// DishID returns the id assigned to a dish label.
func (m *MemStore) DishID(label string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dishes[label]
	return id, ok
}

// Participants returns the restaurant ids recorded for a run.
func (m *MemStore) Participants(runID int64) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for id := range m.runLogs[runID] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Touches and Replaces count successful menu writes of each kind.
func (m *MemStore) Touches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touches
}

func (m *MemStore) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

func (m *MemStore) ActiveRestaurantIDs(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("ActiveRestaurantIDs"); err != nil {
		return nil, err
	}
	var ids []int
	for id, r := range m.restaurants {
		if r.active {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *MemStore) UpsertRegion(ctx context.Context, r model.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("UpsertRegion"); err != nil {
		return err
	}
	if _, ok := m.regions[r.ID]; !ok {
		m.regions[r.ID] = r
	}
	return nil
}

func (m *MemStore) ResolveRestaurantType(ctx context.Context, label string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("ResolveRestaurantType"); err != nil {
		return 0, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("restaurant type: empty label")
	}
	if id, ok := m.types[label]; ok {
		return id, nil
	}
	id := len(m.types) + 1
	m.types[label] = id
	return id, nil
}

func (m *MemStore) UpsertRestaurant(ctx context.Context, r model.Restaurant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("UpsertRestaurant"); err != nil {
		return err
	}
	if _, ok := m.regions[r.RegionID]; !ok {
		return fmt.Errorf("restaurant %d: unknown region %d", r.ID, r.RegionID)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	cur, ok := m.restaurants[r.ID]
	if !ok {
		m.restaurants[r.ID] = &memRestaurant{rec: r, active: true, added: r.UpdatedAt}
		return nil
	}
	cur.rec = r
	cur.active = true
	return nil
}

func (m *MemStore) RestaurantImageUpdated(ctx context.Context, id int) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("RestaurantImageUpdated"); err != nil {
		return nil, err
	}
	r, ok := m.restaurants[id]
	if !ok || r.imageUpdated == nil {
		return nil, nil
	}
	t := *r.imageUpdated
	return &t, nil
}

func (m *MemStore) MarkImageUpdated(ctx context.Context, id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("MarkImageUpdated"); err != nil {
		return err
	}
	if r, ok := m.restaurants[id]; ok {
		r.imageUpdated = &at
	}
	return nil
}

func (m *MemStore) StoredMenuDigest(ctx context.Context, menuID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("StoredMenuDigest"); err != nil {
		return "", false, err
	}
	s, ok := m.menus[menuID]
	if !ok || s.Digest == "" {
		return "", false, nil
	}
	return s.Digest, true, nil
}

func (m *MemStore) TouchMenuChecked(ctx context.Context, menuID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("TouchMenuChecked"); err != nil {
		return err
	}
	s, ok := m.menus[menuID]
	if !ok {
		return nil
	}
	s.CheckedAt = at
	m.menus[menuID] = s
	m.touches++
	return nil
}

// ReplaceMenuSubtree builds the new subtree and new dish ids aside and commits
// them only when every step succeeded.
func (m *MemStore) ReplaceMenuSubtree(ctx context.Context, snap model.MenuSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("ReplaceMenuSubtree"); err != nil {
		return err
	}
	if _, ok := m.restaurants[snap.RestaurantID]; !ok {
		return fmt.Errorf("menu %d: unknown restaurant %d", snap.ID, snap.RestaurantID)
	}
	next := m.nextDish
	added := map[string]int64{}
	resolve := func(label string) int64 {
		if id, ok := m.dishes[label]; ok {
			return id
		}
		if id, ok := added[label]; ok {
			return id
		}
		next++
		added[label] = next
		return next
	}

	out := model.MenuSnapshot{
		ID:           snap.ID,
		RestaurantID: snap.RestaurantID,
		Date:         snap.Date,
		Digest:       snap.Digest,
		CheckedAt:    snap.CheckedAt,
	}
	if out.CheckedAt.IsZero() {
		out.CheckedAt = time.Now()
	}
	for mi, meal := range snap.Meals {
		if n := m.replaceFails[snap.ID]; n > 0 && mi == len(snap.Meals)-1 {
			m.replaceFails[snap.ID] = n - 1
			return fmt.Errorf("replace menu %d: %w", snap.ID, m.replaceErr)
		}
		om := model.MealSnapshot{Label: meal.Label, Position: meal.Position}
		for _, cat := range meal.Categories {
			oc := model.CategorySnapshot{Label: cat.Label, Position: cat.Position}
			seen := map[int64]bool{}
			for _, d := range cat.Dishes {
				id := resolve(d.Label)
				if seen[id] {
					continue
				}
				seen[id] = true
				oc.Dishes = append(oc.Dishes, d)
			}
			om.Categories = append(om.Categories, oc)
		}
		out.Meals = append(out.Meals, om)
	}
	if n := m.replaceFails[snap.ID]; n > 0 {
		m.replaceFails[snap.ID] = n - 1
		return fmt.Errorf("replace menu %d: %w", snap.ID, m.replaceErr)
	}

	for label, id := range added {
		m.dishes[label] = id
	}
	m.nextDish = next
	m.menus[snap.ID] = out
	m.replaces++
	return nil
}

func (m *MemStore) RecordRunParticipation(ctx context.Context, runID int64, restaurantID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("RecordRunParticipation"); err != nil {
		return err
	}
	if _, ok := m.runs[runID]; !ok {
		return fmt.Errorf("run participation: %w: %d", ErrRunNotFound, runID)
	}
	if m.runLogs[runID] == nil {
		m.runLogs[runID] = map[int]bool{}
	}
	m.runLogs[runID][restaurantID] = true
	return nil
}

func (m *MemStore) DeactivateRestaurants(ctx context.Context, ids []int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("DeactivateRestaurants"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if r, ok := m.restaurants[id]; ok && r.active {
			r.active = false
			n++
		}
	}
	return n, nil
}

func (m *MemStore) counts() model.Counts {
	c := model.Counts{
		Regions:         int64(len(m.regions)),
		Restaurants:     int64(len(m.restaurants)),
		RestaurantTypes: int64(len(m.types)),
		Menus:           int64(len(m.menus)),
		Dishes:          int64(len(m.dishes)),
	}
	for _, s := range m.menus {
		c.Meals += int64(len(s.Meals))
		for _, meal := range s.Meals {
			c.Categories += int64(len(meal.Categories))
			for _, cat := range meal.Categories {
				c.Compositions += int64(len(cat.Dishes))
			}
		}
	}
	return c
}

func (m *MemStore) activeCount() int {
	n := 0
	for _, r := range m.restaurants {
		if r.active {
			n++
		}
	}
	return n
}

func (m *MemStore) Stats(ctx context.Context) (model.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("Stats"); err != nil {
		return model.Counts{}, err
	}
	return m.counts(), nil
}

func (m *MemStore) CountActiveRestaurants(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("CountActiveRestaurants"); err != nil {
		return 0, err
	}
	return m.activeCount(), nil
}

func (m *MemStore) StartRun(ctx context.Context, key string, started time.Time, counts model.Counts, activeStart int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("StartRun"); err != nil {
		return 0, err
	}
	m.nextRun++
	m.runs[m.nextRun] = &model.Run{
		ID:          m.nextRun,
		Key:         key,
		Started:     started,
		Status:      model.RunRunning,
		StartCounts: counts,
		ActiveStart: activeStart,
	}
	return m.nextRun, nil
}

func (m *MemStore) FinishRun(ctx context.Context, f model.RunFinish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("FinishRun"); err != nil {
		return err
	}
	r, ok := m.runs[f.ID]
	if !ok {
		return fmt.Errorf("finish run: %w: %d", ErrRunNotFound, f.ID)
	}
	finished := f.Finished
	r.Finished = &finished
	r.Status = f.Status
	r.ErrorMessage = f.ErrorMessage
	r.EndCounts = f.EndCounts
	r.ActiveEnd = f.ActiveEnd
	r.Requests = f.Requests
	return nil
}

func (m *MemStore) RefreshStatsView(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("RefreshStatsView"); err != nil {
		return false, err
	}
	m.refreshed = time.Now()
	return true, nil
}

func (m *MemStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed("Ping")
}

func (m *MemStore) StatsSnapshot(ctx context.Context) (model.StatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("StatsSnapshot"); err != nil {
		return model.StatsSnapshot{}, err
	}
	return model.StatsSnapshot{
		Counts:            m.counts(),
		ActiveRestaurants: int64(m.activeCount()),
		Refreshed:         m.refreshed,
	}, nil
}

func (m *MemStore) ListRuns(ctx context.Context, limit, offset int) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("ListRuns"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	ids := make([]int64, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	var out []model.Run
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		if i < 0 {
			continue
		}
		out = append(out, *m.runs[ids[i]])
	}
	return out, nil
}

func (m *MemStore) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failed("GetRun"); err != nil {
		return nil, err
	}
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func cloneSnapshot(s model.MenuSnapshot) model.MenuSnapshot {
	out := s
	out.Meals = make([]model.MealSnapshot, len(s.Meals))
	for i, meal := range s.Meals {
		om := meal
		om.Categories = make([]model.CategorySnapshot, len(meal.Categories))
		for j, cat := range meal.Categories {
			oc := cat
			oc.Dishes = append([]model.Placement(nil), cat.Dishes...)
			om.Categories[j] = oc
		}
		out.Meals[i] = om
	}
	return out
}
