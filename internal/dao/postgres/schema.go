package postgres

import (
	"context"
	"fmt"

	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the catalog tables, run bookkeeping and the stats view
// if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, s := range schemaStatements() {
		if _, err := db.Exec(ctx, s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

func schemaStatements() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS regions (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            created TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS restaurant_types (
            id SERIAL PRIMARY KEY,
            label TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS restaurants (
            id INTEGER PRIMARY KEY,
            region_id INTEGER NOT NULL REFERENCES regions(id),
            type_id INTEGER NOT NULL REFERENCES restaurant_types(id),
            name TEXT NOT NULL,
            address TEXT,
            latitude DOUBLE PRECISION,
            longitude DOUBLE PRECISION,
            schedule JSONB,
            open BOOLEAN NOT NULL DEFAULT false,
            image_url TEXT,
            email TEXT,
            phone TEXT,
            accessible BOOLEAN NOT NULL DEFAULT false,
            zone TEXT,
            payment JSONB,
            access JSONB,
            active BOOLEAN NOT NULL DEFAULT true,
            added TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated TIMESTAMPTZ NOT NULL DEFAULT now(),
            image_updated TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_restaurants_region ON restaurants(region_id)`,
		`CREATE INDEX IF NOT EXISTS idx_restaurants_active ON restaurants(active)`,
		`CREATE TABLE IF NOT EXISTS menus (
            id BIGINT PRIMARY KEY,
            restaurant_id INTEGER NOT NULL REFERENCES restaurants(id),
            date DATE NOT NULL,
            content_digest TEXT,
            last_checked TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_menus_restaurant_date ON menus(restaurant_id, date)`,
		`CREATE TABLE IF NOT EXISTS meals (
            id BIGSERIAL PRIMARY KEY,
            menu_id BIGINT NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
            label TEXT NOT NULL,
            position INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_meals_menu ON meals(menu_id)`,
		`CREATE TABLE IF NOT EXISTS categories (
            id BIGSERIAL PRIMARY KEY,
            meal_id BIGINT NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
            label TEXT NOT NULL,
            position INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_categories_meal ON categories(meal_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS dishes (
            id BIGSERIAL PRIMARY KEY,
            label VARCHAR(%d) NOT NULL UNIQUE
        )`, model.MaxDishLabelLength),
		`CREATE TABLE IF NOT EXISTS compositions (
            category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
            dish_id BIGINT NOT NULL REFERENCES dishes(id),
            position INTEGER NOT NULL,
            PRIMARY KEY (category_id, dish_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_compositions_dish ON compositions(dish_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
            id BIGSERIAL PRIMARY KEY,
            run_key TEXT NOT NULL UNIQUE,
            started TIMESTAMPTZ NOT NULL DEFAULT now(),
            finished TIMESTAMPTZ,
            status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running','succeeded','failed')),
            error_message TEXT,
            start_counts JSONB NOT NULL DEFAULT '{}'::jsonb,
            end_counts JSONB,
            active_start INTEGER NOT NULL DEFAULT 0,
            active_end INTEGER,
            requests BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS run_logs (
            run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            restaurant_id INTEGER NOT NULL REFERENCES restaurants(id),
            created TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (run_id, restaurant_id)
        )`,
		`CREATE OR REPLACE FUNCTION set_updated()
         RETURNS TRIGGER AS $$
         BEGIN
            NEW.updated = now();
            RETURN NEW;
         END;
         $$ LANGUAGE plpgsql;`,
	}
	for _, table := range []string{"regions", "restaurants"} {
		stmts = append(stmts, fmt.Sprintf(`DO $$ BEGIN
            IF NOT EXISTS (
                SELECT 1 FROM pg_trigger WHERE tgname = '%[1]s_set_updated'
            ) THEN
                CREATE TRIGGER %[1]s_set_updated
                BEFORE UPDATE ON %[1]s
                FOR EACH ROW
                EXECUTE PROCEDURE set_updated();
            END IF;
        END $$;`, table))
	}
	stmts = append(stmts,
		`CREATE MATERIALIZED VIEW IF NOT EXISTS stats_counts AS
         SELECT 1 AS id,
            (SELECT COUNT(*) FROM regions) AS regions,
            (SELECT COUNT(*) FROM restaurants) AS restaurants,
            (SELECT COUNT(*) FROM restaurant_types) AS restaurant_types,
            (SELECT COUNT(*) FROM menus) AS menus,
            (SELECT COUNT(*) FROM meals) AS meals,
            (SELECT COUNT(*) FROM categories) AS categories,
            (SELECT COUNT(*) FROM dishes) AS dishes,
            (SELECT COUNT(*) FROM compositions) AS compositions,
            (SELECT COUNT(*) FROM restaurants WHERE active) AS active_restaurants,
            now() AS refreshed`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_stats_counts_id ON stats_counts(id)`,
	)
	return stmts
}

// CatalogTables lists the tables owned by the catalog, in dependency order.
var CatalogTables = []string{
	"regions", "restaurant_types", "restaurants", "menus", "meals",
	"categories", "dishes", "compositions", "runs", "run_logs",
}
