package postgres

import (
	"context"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UpsertRegion inserts a region once; an existing row is left as is.
func UpsertRegion(ctx context.Context, db *pgxpool.Pool, r model.Region) error {
	q := `INSERT INTO regions (id, name) VALUES ($1, $2)
          ON CONFLICT (id) DO NOTHING`
	if _, err := db.Exec(ctx, q, r.ID, r.Name); err != nil {
		return dbutil.ErrWrap("region.upsert", err, dbutil.ParamSummary("id", r.ID))
	}
	return nil
}

// ListRegions returns all regions ordered by id.
func ListRegions(ctx context.Context, db *pgxpool.Pool) ([]model.Region, error) {
	rows, err := db.Query(ctx, `SELECT id, name FROM regions ORDER BY id`)
	if err != nil {
		return nil, dbutil.ErrWrap("region.list", err)
	}
	defer rows.Close()
	var out []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, dbutil.ErrWrap("region.list", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
