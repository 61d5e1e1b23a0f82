package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoredMenuDigest returns the digest stored for a menu. ok is false when the
// menu is unknown or was never stored with a digest.
func StoredMenuDigest(ctx context.Context, db *pgxpool.Pool, menuID int64) (digest string, ok bool, err error) {
	var d pgtype.Text
	err = db.QueryRow(ctx, `SELECT content_digest FROM menus WHERE id=$1`, menuID).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dbutil.ErrWrap("menu.digest", err, dbutil.ParamSummary("menu_id", menuID))
	}
	if !d.Valid {
		return "", false, nil
	}
	return d.String, true, nil
}

// TouchMenuChecked records that the menu was seen unchanged at the given time.
func TouchMenuChecked(ctx context.Context, db *pgxpool.Pool, menuID int64, at time.Time) error {
	if _, err := db.Exec(ctx, `UPDATE menus SET last_checked=$2 WHERE id=$1`, menuID, at); err != nil {
		return dbutil.ErrWrap("menu.touch", err, dbutil.ParamSummary("menu_id", menuID))
	}
	return nil
}

// ReplaceMenuSubtree swaps the whole meal/category/composition subtree of a
// menu in one transaction. Either the previous subtree or the new one is
// visible afterwards, never a mix.
func ReplaceMenuSubtree(ctx context.Context, db *pgxpool.Pool, m model.MenuSnapshot) error {
	err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		return replaceMenuSubtree(ctx, tx, m)
	})
	if err != nil {
		return dbutil.ErrWrap("menu.replace", err,
			dbutil.ParamSummary("menu_id", m.ID),
			dbutil.ParamSummary("date", m.Date),
			dbutil.ParamSummary("meals", m.Meals),
		)
	}
	return nil
}

func replaceMenuSubtree(ctx context.Context, tx pgx.Tx, m model.MenuSnapshot) error {
	deletes := []string{
		`DELETE FROM compositions WHERE category_id IN (
            SELECT c.id FROM categories c JOIN meals ml ON ml.id = c.meal_id WHERE ml.menu_id = $1)`,
		`DELETE FROM categories WHERE meal_id IN (SELECT id FROM meals WHERE menu_id = $1)`,
		`DELETE FROM meals WHERE menu_id = $1`,
	}
	for _, q := range deletes {
		if _, err := tx.Exec(ctx, q, m.ID); err != nil {
			return err
		}
	}
	checked := m.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	_, err := tx.Exec(ctx, `INSERT INTO menus (id, restaurant_id, date, content_digest, last_checked)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET
            restaurant_id = EXCLUDED.restaurant_id,
            date = EXCLUDED.date,
            content_digest = EXCLUDED.content_digest,
            last_checked = EXCLUDED.last_checked`,
		m.ID, m.RestaurantID, pgtype.Date{Time: m.Date, Valid: true}, m.Digest, checked)
	if err != nil {
		return err
	}
	for _, meal := range m.Meals {
		var mealID int64
		if err := tx.QueryRow(ctx, `INSERT INTO meals (menu_id, label, position) VALUES ($1,$2,$3) RETURNING id`,
			m.ID, meal.Label, meal.Position).Scan(&mealID); err != nil {
			return err
		}
		for _, cat := range meal.Categories {
			var catID int64
			if err := tx.QueryRow(ctx, `INSERT INTO categories (meal_id, label, position) VALUES ($1,$2,$3) RETURNING id`,
				mealID, cat.Label, cat.Position).Scan(&catID); err != nil {
				return err
			}
			for _, d := range cat.Dishes {
				dishID, err := resolveDish(ctx, tx, d.Label)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, `INSERT INTO compositions (category_id, dish_id, position)
                    VALUES ($1,$2,$3) ON CONFLICT (category_id, dish_id) DO NOTHING`,
					catID, dishID, d.Position); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetMenuSnapshot reads a menu and its stored subtree ordered by position.
func GetMenuSnapshot(ctx context.Context, db *pgxpool.Pool, menuID int64) (*model.MenuSnapshot, error) {
	var (
		snap   model.MenuSnapshot
		date   pgtype.Date
		digest pgtype.Text
	)
	err := db.QueryRow(ctx, `SELECT id, restaurant_id, date, content_digest, last_checked FROM menus WHERE id=$1`, menuID).
		Scan(&snap.ID, &snap.RestaurantID, &date, &digest, &snap.CheckedAt)
	if err != nil {
		return nil, dbutil.ErrWrap("menu.get", err, dbutil.ParamSummary("menu_id", menuID))
	}
	snap.Date = date.Time
	snap.Digest = digest.String

	rows, err := db.Query(ctx, `SELECT ml.id, ml.label, ml.position, c.id, c.label, c.position, d.label, co.position
        FROM meals ml
        LEFT JOIN categories c ON c.meal_id = ml.id
        LEFT JOIN compositions co ON co.category_id = c.id
        LEFT JOIN dishes d ON d.id = co.dish_id
        WHERE ml.menu_id = $1
        ORDER BY ml.position, ml.id, c.position, c.id, co.position`, menuID)
	if err != nil {
		return nil, dbutil.ErrWrap("menu.get_subtree", err, dbutil.ParamSummary("menu_id", menuID))
	}
	defer rows.Close()
	var lastMeal, lastCat int64 = -1, -1
	for rows.Next() {
		var (
			mealID          int64
			mealLabel       string
			mealPos         int
			catID           pgtype.Int8
			catLabel        pgtype.Text
			catPos, dishPos pgtype.Int4
			dishLabel       pgtype.Text
		)
		if err := rows.Scan(&mealID, &mealLabel, &mealPos, &catID, &catLabel, &catPos, &dishLabel, &dishPos); err != nil {
			return nil, dbutil.ErrWrap("menu.get_subtree", err)
		}
		if mealID != lastMeal {
			snap.Meals = append(snap.Meals, model.MealSnapshot{Label: mealLabel, Position: mealPos})
			lastMeal, lastCat = mealID, -1
		}
		if !catID.Valid {
			continue
		}
		meal := &snap.Meals[len(snap.Meals)-1]
		if catID.Int64 != lastCat {
			meal.Categories = append(meal.Categories, model.CategorySnapshot{Label: catLabel.String, Position: int(catPos.Int32)})
			lastCat = catID.Int64
		}
		if dishLabel.Valid {
			cat := &meal.Categories[len(meal.Categories)-1]
			cat.Dishes = append(cat.Dishes, model.Placement{Label: dishLabel.String, Position: int(dishPos.Int32)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbutil.ErrWrap("menu.get_subtree", err)
	}
	return &snap, nil
}
