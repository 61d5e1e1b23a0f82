package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResolveRestaurantType returns the id for label, creating the row when it is new.
// A single statement keeps concurrent callers on the same row.
func ResolveRestaurantType(ctx context.Context, db *pgxpool.Pool, label string) (int, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, errors.New("restaurant type: empty label")
	}
	q := `INSERT INTO restaurant_types (label) VALUES ($1)
          ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
          RETURNING id`
	var id int
	if err := db.QueryRow(ctx, q, label).Scan(&id); err != nil {
		return 0, dbutil.ErrWrap("restaurant_type.resolve", err, dbutil.ParamSummary("label", label))
	}
	return id, nil
}

// UpsertRestaurant overwrites every field of the restaurant and marks it active.
func UpsertRestaurant(ctx context.Context, db *pgxpool.Pool, r model.Restaurant) error {
	q := `INSERT INTO restaurants (id, region_id, type_id, name, address, latitude, longitude,
            schedule, open, image_url, email, phone, accessible, zone, payment, access, active, updated)
          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,true,$17)
          ON CONFLICT (id) DO UPDATE SET
            region_id = EXCLUDED.region_id,
            type_id = EXCLUDED.type_id,
            name = EXCLUDED.name,
            address = EXCLUDED.address,
            latitude = EXCLUDED.latitude,
            longitude = EXCLUDED.longitude,
            schedule = EXCLUDED.schedule,
            open = EXCLUDED.open,
            image_url = EXCLUDED.image_url,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            accessible = EXCLUDED.accessible,
            zone = EXCLUDED.zone,
            payment = EXCLUDED.payment,
            access = EXCLUDED.access,
            active = true,
            updated = EXCLUDED.updated`
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := db.Exec(ctx, q,
		r.ID, r.RegionID, r.TypeID, r.Name, nullText(r.Address), r.Latitude, r.Longitude,
		r.Schedule, r.Open, nullText(r.ImageURL), nullText(r.Email), nullText(r.Phone),
		r.Accessible, nullText(r.Zone), r.Payment, r.Access, updated,
	)
	if err != nil {
		return dbutil.ErrWrap("restaurant.upsert", err,
			dbutil.ParamSummary("id", r.ID),
			dbutil.ParamSummary("region_id", r.RegionID),
			dbutil.ParamSummary("schedule", r.Schedule),
		)
	}
	return nil
}

// ActiveRestaurantIDs returns the ids currently flagged active.
func ActiveRestaurantIDs(ctx context.Context, db *pgxpool.Pool) ([]int, error) {
	rows, err := db.Query(ctx, `SELECT id FROM restaurants WHERE active ORDER BY id`)
	if err != nil {
		return nil, dbutil.ErrWrap("restaurant.active_ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, dbutil.ErrWrap("restaurant.active_ids", err)
	}
	return ids, nil
}

// CountActiveRestaurants returns the number of restaurants flagged active.
func CountActiveRestaurants(ctx context.Context, db *pgxpool.Pool) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM restaurants WHERE active`).Scan(&n); err != nil {
		return 0, dbutil.ErrWrap("restaurant.count_active", err)
	}
	return n, nil
}

// DeactivateRestaurants clears the active flag for ids and returns the rows changed.
func DeactivateRestaurants(ctx context.Context, db *pgxpool.Pool, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := db.Exec(ctx, `UPDATE restaurants SET active = false WHERE active AND id = ANY($1)`, ids)
	if err != nil {
		return 0, dbutil.ErrWrap("restaurant.deactivate", err, dbutil.ParamSummary("ids", ids))
	}
	return tag.RowsAffected(), nil
}

// RestaurantImageUpdated returns when the restaurant image was last refreshed;
// nil when never refreshed or when the restaurant is unknown.
func RestaurantImageUpdated(ctx context.Context, db *pgxpool.Pool, id int) (*time.Time, error) {
	var ts pgtype.Timestamptz
	err := db.QueryRow(ctx, `SELECT image_updated FROM restaurants WHERE id=$1`, id).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbutil.ErrWrap("restaurant.image_updated", err, dbutil.ParamSummary("id", id))
	}
	if !ts.Valid {
		return nil, nil
	}
	t := ts.Time
	return &t, nil
}

// MarkImageUpdated stamps image_updated for the restaurant.
func MarkImageUpdated(ctx context.Context, db *pgxpool.Pool, id int, at time.Time) error {
	if _, err := db.Exec(ctx, `UPDATE restaurants SET image_updated=$2 WHERE id=$1`, id, at); err != nil {
		return dbutil.ErrWrap("restaurant.mark_image", err, dbutil.ParamSummary("id", id))
	}
	return nil
}

// GetRestaurantActive reports the active flag; found is false for unknown ids.
func GetRestaurantActive(ctx context.Context, db *pgxpool.Pool, id int) (active, found bool, err error) {
	err = db.QueryRow(ctx, `SELECT active FROM restaurants WHERE id=$1`, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, dbutil.ErrWrap("restaurant.get_active", err, dbutil.ParamSummary("id", id))
	}
	return active, true, nil
}

func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
