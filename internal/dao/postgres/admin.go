package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func safeIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %q", name)
	}
	return name, nil
}

// quoteLiteral returns a SQL string literal with single quotes escaped.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// EnsureRole creates a LOGIN role if missing and sets its password when given.
func EnsureRole(ctx context.Context, db *pgxpool.Pool, roleName, password string) error {
	if roleName == "" {
		return errors.New("empty role name")
	}
	rn, err := safeIdent(roleName)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, fmt.Sprintf(
		"DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN CREATE ROLE %s LOGIN; END IF; END $$;",
		rn, rn,
	))
	if err != nil {
		return err
	}
	if password != "" {
		stmt := fmt.Sprintf("ALTER ROLE %s WITH LOGIN PASSWORD %s", rn, quoteLiteral(password))
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RoleExists checks if a role exists.
func RoleExists(ctx context.Context, db *pgxpool.Pool, roleName string) (bool, error) {
	if roleName == "" {
		return false, errors.New("empty role name")
	}
	var ok bool
	err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname=$1)", roleName).Scan(&ok)
	return ok, err
}

// apiViews are the read-only projections exposed to the API role.
var apiViews = map[string]string{
	"v_regions": `SELECT id, name FROM public.regions`,
	"v_restaurants": `SELECT r.id, r.region_id, t.label AS type, r.name, r.address, r.latitude,
            r.longitude, r.schedule, r.open, r.image_url, r.email, r.phone, r.accessible,
            r.zone, r.payment, r.access, r.active, r.added, r.updated
        FROM public.restaurants r JOIN public.restaurant_types t ON t.id = r.type_id`,
	"v_menus": `SELECT m.id AS menu_id, m.restaurant_id, m.date, ml.label AS meal, ml.position AS meal_position,
            c.label AS category, c.position AS category_position, d.label AS dish, co.position AS dish_position
        FROM public.menus m
        JOIN public.meals ml ON ml.menu_id = m.id
        JOIN public.categories c ON c.meal_id = ml.id
        JOIN public.compositions co ON co.category_id = c.id
        JOIN public.dishes d ON d.id = co.dish_id`,
	"v_runs": `SELECT id, run_key, started, finished, status, start_counts, end_counts,
            active_start, active_end, requests
        FROM public.runs`,
	"v_stats": `SELECT * FROM public.stats_counts`,
}

// EnsureAPISchema provisions the schema, login role and views used by a
// read-only REST layer on top of the catalog. Views are recreated on every call.
func EnsureAPISchema(ctx context.Context, db *pgxpool.Pool, dbName, schema, role, password string) error {
	sn, err := safeIdent(schema)
	if err != nil {
		return err
	}
	rn, err := safeIdent(role)
	if err != nil {
		return err
	}
	dn, err := safeIdent(dbName)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", sn)); err != nil {
		return fmt.Errorf("create schema %s: %w", sn, err)
	}
	if err := EnsureRole(ctx, db, rn, password); err != nil {
		return fmt.Errorf("ensure role %s: %w", rn, err)
	}
	stmts := []string{
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", dn, rn),
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", sn, rn),
	}
	for name, body := range apiViews {
		stmts = append(stmts,
			fmt.Sprintf("CREATE OR REPLACE VIEW %s.%s AS %s", sn, name, body),
			fmt.Sprintf("GRANT SELECT ON %s.%s TO %s", sn, name, rn),
		)
	}
	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// HasSchemaUsage returns true if role has USAGE on schema.
func HasSchemaUsage(ctx context.Context, db *pgxpool.Pool, role, schema string) (bool, error) {
	if role == "" || schema == "" {
		return false, errors.New("empty role or schema")
	}
	var ok bool
	err := db.QueryRow(ctx, "SELECT has_schema_privilege($1, $2, 'USAGE')", role, schema).Scan(&ok)
	return ok, err
}
