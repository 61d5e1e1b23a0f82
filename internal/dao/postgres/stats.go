package postgres

import (
	"context"
	"fmt"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ComputeStats counts rows per catalog entity from the live tables.
func ComputeStats(ctx context.Context, db *pgxpool.Pool) (model.Counts, error) {
	q := `SELECT
            (SELECT COUNT(*) FROM regions),
            (SELECT COUNT(*) FROM restaurants),
            (SELECT COUNT(*) FROM restaurant_types),
            (SELECT COUNT(*) FROM menus),
            (SELECT COUNT(*) FROM meals),
            (SELECT COUNT(*) FROM categories),
            (SELECT COUNT(*) FROM dishes),
            (SELECT COUNT(*) FROM compositions)`
	var c model.Counts
	err := db.QueryRow(ctx, q).Scan(&c.Regions, &c.Restaurants, &c.RestaurantTypes, &c.Menus,
		&c.Meals, &c.Categories, &c.Dishes, &c.Compositions)
	if err != nil {
		return model.Counts{}, dbutil.ErrWrap("stats.compute", err)
	}
	return c, nil
}

// ReadStatsView returns the single row of the stats_counts materialized view.
func ReadStatsView(ctx context.Context, db *pgxpool.Pool) (model.StatsSnapshot, error) {
	q := `SELECT regions, restaurants, restaurant_types, menus, meals, categories, dishes,
            compositions, active_restaurants, refreshed
          FROM stats_counts WHERE id = 1`
	var v model.StatsSnapshot
	c := &v.Counts
	err := db.QueryRow(ctx, q).Scan(&c.Regions, &c.Restaurants, &c.RestaurantTypes, &c.Menus,
		&c.Meals, &c.Categories, &c.Dishes, &c.Compositions, &v.ActiveRestaurants, &v.Refreshed)
	if err != nil {
		return model.StatsSnapshot{}, dbutil.ErrWrap("stats.read_view", err)
	}
	return v, nil
}

// RefreshStatsView refreshes stats_counts without blocking readers when the
// server allows it, and falls back to a plain refresh otherwise.
func RefreshStatsView(ctx context.Context, db *pgxpool.Pool) (concurrent bool, err error) {
	if _, err := db.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY stats_counts`); err == nil {
		return true, nil
	}
	if _, err := db.Exec(ctx, `REFRESH MATERIALIZED VIEW stats_counts`); err != nil {
		return false, dbutil.ErrWrap("stats.refresh", err)
	}
	return false, nil
}

// CountTables returns row counts for the given catalog tables.
func CountTables(ctx context.Context, db *pgxpool.Pool, tables []string) (map[string]int64, error) {
	out := make(map[string]int64, len(tables))
	for _, t := range tables {
		tn, err := safeIdent(t)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM public.%s", tn)).Scan(&n); err != nil {
			return nil, dbutil.ErrWrap("stats.count_table", err, dbutil.ParamSummary("table", tn))
		}
		out[tn] = n
	}
	return out, nil
}

// Ping checks database reachability.
func Ping(ctx context.Context, db *pgxpool.Pool) error {
	return db.Ping(ctx)
}
