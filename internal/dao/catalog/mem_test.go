package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, m *MemStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.UpsertRegion(ctx, model.Region{ID: 1, Name: "Paris"}))
	typeID, err := m.ResolveRestaurantType(ctx, "Restaurant")
	require.NoError(t, err)
	require.NoError(t, m.UpsertRestaurant(ctx, model.Restaurant{ID: 10, RegionID: 1, TypeID: typeID, Name: "RU Bullier"}))
}

func snapshot(digest string, dishes ...string) model.MenuSnapshot {
	cat := model.CategorySnapshot{Label: "Plats", Position: 0}
	for i, d := range dishes {
		cat.Dishes = append(cat.Dishes, model.Placement{Label: d, Position: i})
	}
	return model.MenuSnapshot{
		ID:           100,
		RestaurantID: 10,
		Date:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Digest:       digest,
		Meals: []model.MealSnapshot{
			{Label: "midi", Position: 0, Categories: []model.CategorySnapshot{cat}},
			{Label: "soir", Position: 1},
		},
	}
}

func TestResolveRestaurantTypeIsStable(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	a, err := m.ResolveRestaurantType(ctx, "Cafétéria")
	require.NoError(t, err)
	b, err := m.ResolveRestaurantType(ctx, " Cafétéria ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	_, err = m.ResolveRestaurantType(ctx, "  ")
	assert.Error(t, err)
}

func TestReplaceDedupesDishesGloballyAndPerCategory(t *testing.T) {
	m := NewMemStore()
	seed(t, m)
	ctx := context.Background()

	require.NoError(t, m.ReplaceMenuSubtree(ctx, snapshot("d1", "Frites", "Steak", "Frites")))
	stored, ok := m.Menu(100)
	require.True(t, ok)
	dishes := stored.Meals[0].Categories[0].Dishes
	require.Len(t, dishes, 2)
	assert.Equal(t, "Frites", dishes[0].Label)
	assert.Equal(t, 0, dishes[0].Position)

	id1, ok := m.DishID("Frites")
	require.True(t, ok)
	snap := snapshot("d2", "Frites")
	snap.ID = 101
	require.NoError(t, m.ReplaceMenuSubtree(ctx, snap))
	id2, _ := m.DishID("Frites")
	assert.Equal(t, id1, id2)

	c, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Dishes)
	assert.Equal(t, int64(3), c.Compositions)
}

func TestReplaceFailureKeepsPreviousSubtree(t *testing.T) {
	m := NewMemStore()
	seed(t, m)
	ctx := context.Background()
	require.NoError(t, m.ReplaceMenuSubtree(ctx, snapshot("old", "Pâtes")))

	boom := errors.New("connection reset")
	m.FailReplace(100, 1, boom)
	err := m.ReplaceMenuSubtree(ctx, snapshot("new", "Riz", "Poisson"))
	require.ErrorIs(t, err, boom)

	stored, _ := m.Menu(100)
	assert.Equal(t, "old", stored.Digest)
	assert.Equal(t, "Pâtes", stored.Meals[0].Categories[0].Dishes[0].Label)
	_, ok := m.DishID("Riz")
	assert.False(t, ok, "dish from a failed replace must not persist")

	require.NoError(t, m.ReplaceMenuSubtree(ctx, snapshot("new", "Riz", "Poisson")))
	d, ok, err := m.StoredMenuDigest(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", d)
}

func TestDeactivateAndRuns(t *testing.T) {
	m := NewMemStore()
	seed(t, m)
	ctx := context.Background()
	m.SeedRestaurant(model.Restaurant{ID: 11, RegionID: 1}, true)

	runID, err := m.StartRun(ctx, "01HX", time.Now(), model.Counts{}, 2)
	require.NoError(t, err)
	require.NoError(t, m.RecordRunParticipation(ctx, runID, 10))
	require.NoError(t, m.RecordRunParticipation(ctx, runID, 10))
	assert.Equal(t, []int{10}, m.Participants(runID))

	n, err := m.DeactivateRestaurants(ctx, []int{11, 99})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ids, err := m.ActiveRestaurantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, ids)

	active := 1
	require.NoError(t, m.FinishRun(ctx, model.RunFinish{ID: runID, Finished: time.Now(), Status: model.RunSucceeded, ActiveEnd: &active, Requests: 4}))
	r, err := m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, r.Status)
	assert.Equal(t, int64(4), r.Requests)

	_, err = m.GetRun(ctx, 42)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
