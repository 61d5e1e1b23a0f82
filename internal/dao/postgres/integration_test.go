//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/crous"
	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/fetch"
	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/flarebyte/crous-sync/internal/reconcile"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	c, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("crous"),
		postgres.WithUsername("crous"),
		postgres.WithPassword("crous"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := pgdao.OpenDSN(ctx, dsn, 10)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, pgdao.EnsureSchema(ctx, db))
	return db
}

func seedRestaurant(t *testing.T, db *pgxpool.Pool, id int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, pgdao.UpsertRegion(ctx, db, model.Region{ID: 4, Name: "Bordeaux"}))
	typeID, err := pgdao.ResolveRestaurantType(ctx, db, "Restaurant")
	require.NoError(t, err)
	require.NoError(t, pgdao.UpsertRestaurant(ctx, db, model.Restaurant{ID: id, RegionID: 4, TypeID: typeID, Name: "RU"}))
}

func snapshot(id int64, restaurantID int, digest string, dishes ...string) model.MenuSnapshot {
	cat := model.CategorySnapshot{Label: "Plats"}
	for i, d := range dishes {
		cat.Dishes = append(cat.Dishes, model.Placement{Label: d, Position: i})
	}
	return model.MenuSnapshot{
		ID:           id,
		RestaurantID: restaurantID,
		Date:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Digest:       digest,
		Meals:        []model.MealSnapshot{{Label: "midi", Categories: []model.CategorySnapshot{cat}}},
	}
}

func TestIntegrationSchemaIsIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, pgdao.EnsureSchema(ctx, db))
	counts, err := pgdao.CountTables(ctx, db, pgdao.CatalogTables)
	require.NoError(t, err)
	assert.Len(t, counts, len(pgdao.CatalogTables))

	concurrent, err := pgdao.RefreshStatsView(ctx, db)
	require.NoError(t, err)
	assert.True(t, concurrent)
}

func TestIntegrationReplaceRollsBack(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedRestaurant(t, db, 10)

	require.NoError(t, pgdao.ReplaceMenuSubtree(ctx, db, snapshot(100, 10, "d1", "Frites", "Yaourt")))

	// the label overflows dishes.label, failing after meals and categories were written
	bad := snapshot(100, 10, "d2", "Pizza", strings.Repeat("x", model.MaxDishLabelLength+1))
	require.Error(t, pgdao.ReplaceMenuSubtree(ctx, db, bad))

	got, err := pgdao.GetMenuSnapshot(ctx, db, 100)
	require.NoError(t, err)
	assert.Equal(t, "d1", got.Digest)
	require.Len(t, got.Meals, 1)
	assert.Equal(t, []model.Placement{{Label: "Frites", Position: 0}, {Label: "Yaourt", Position: 1}}, got.Meals[0].Categories[0].Dishes)
	n, err := pgdao.CountDishesByLabel(ctx, db, "Pizza")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntegrationDishResolveIsAtomic(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := pgdao.ResolveDish(ctx, db, "Hachis parmentier")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, err := pgdao.CountDishesByLabel(ctx, db, "Hachis parmentier")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIntegrationDuplicateDishInCategoryCollapses(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedRestaurant(t, db, 10)
	require.NoError(t, pgdao.ReplaceMenuSubtree(ctx, db, snapshot(100, 10, "d", "Riz", "Riz", "Salade")))
	got, err := pgdao.GetMenuSnapshot(ctx, db, 100)
	require.NoError(t, err)
	assert.Equal(t, []model.Placement{{Label: "Riz", Position: 0}, {Label: "Salade", Position: 2}}, got.Meals[0].Categories[0].Dishes)
}

type staticProvider struct {
	restaurants []crous.Restaurant
	menus       map[int][]crous.Menu
}

func (p *staticProvider) Regions(context.Context) ([]crous.Region, error) {
	return []crous.Region{{ID: 4, Name: "Bordeaux"}}, nil
}

func (p *staticProvider) Restaurants(context.Context, int) ([]crous.Restaurant, error) {
	return p.restaurants, nil
}

func (p *staticProvider) Menus(_ context.Context, _ int, restaurantID int) ([]crous.Menu, error) {
	return p.menus[restaurantID], nil
}

func TestIntegrationEngineLifecycleAndIdempotence(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	for _, id := range []int{1, 2, 3} {
		seedRestaurant(t, db, id)
	}
	menu := crous.Menu{ID: 500, Date: "2024-03-01", Meals: []crous.Meal{{
		Name:       "midi",
		Categories: []crous.Category{{Name: "Plats", Dishes: []crous.Dish{{Name: "Lentilles"}, {Name: "Poisson"}}}},
	}}}
	p := &staticProvider{
		restaurants: []crous.Restaurant{
			{ID: 1, Name: "Un", Type: "Restaurant", Schedule: []byte(`{"lundi":"11h-14h"}`)},
			{ID: 3, Name: "Trois", Type: "Cafétéria"},
		},
		menus: map[int][]crous.Menu{1: {menu}},
	}
	log := logging.Discard()
	e := &reconcile.Engine{
		Store:    catalog.NewPGStore(db),
		Provider: p,
		Fetcher:  fetch.New(3, 0, log),
		Options:  reconcile.Options{Logger: log},
	}

	first, err := e.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Report.RestaurantsDeactivated)
	for id, want := range map[int]bool{1: true, 2: false, 3: true} {
		active, found, err := pgdao.GetRestaurantActive(ctx, db, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, active, "restaurant %d", id)
	}

	second, err := e.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Report.MenusUnchanged)
	assert.Equal(t, 0, second.Report.MenusReplaced)
	assert.Equal(t, *first.EndCounts, *second.EndCounts)

	run, err := pgdao.GetRun(ctx, db, second.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, run.Status)
	ids, err := pgdao.RunParticipants(ctx, db, second.RunID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids)

	snap, err := pgdao.ReadStatsView(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.ActiveRestaurants)
	assert.Equal(t, second.EndCounts.Dishes, snap.Counts.Dishes)
}
