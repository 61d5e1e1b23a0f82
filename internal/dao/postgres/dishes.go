package postgres

import (
	"context"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resolveDishSQL = `INSERT INTO dishes (label) VALUES ($1)
    ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
    RETURNING id`

// ResolveDish returns the canonical id for a dish label, inserting it when new.
func ResolveDish(ctx context.Context, db *pgxpool.Pool, label string) (int64, error) {
	return resolveDish(ctx, db, label)
}

func resolveDish(ctx context.Context, q querier, label string) (int64, error) {
	var id int64
	if err := q.QueryRow(ctx, resolveDishSQL, label).Scan(&id); err != nil {
		return 0, dbutil.ErrWrap("dish.resolve", err, dbutil.ParamSummary("label", label))
	}
	return id, nil
}

// CountDishesByLabel returns how many rows carry label; at most one by constraint.
func CountDishesByLabel(ctx context.Context, db *pgxpool.Pool, label string) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM dishes WHERE label=$1`, label).Scan(&n); err != nil {
		return 0, dbutil.ErrWrap("dish.count", err, dbutil.ParamSummary("label", label))
	}
	return n, nil
}
