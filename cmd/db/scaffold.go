package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/spf13/cobra"
)

var (
	flagYes     bool
	flagSkipAPI bool
)

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold",
	Short: "Ensure schema, then provision the read-only API schema, role and views",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		api := cfg.Postgres.API
		if !flagSkipAPI && (api.User == "" || api.Password == "") {
			return errors.New("api role credentials missing; set postgres.api.user and postgres.api.password (or POSTGRES_API_USER / POSTGRES_API_PASSWORD)")
		}
		if !flagSkipAPI && !flagYes {
			return errors.New("refusing to create roles and grants without --yes; re-run with --yes to confirm")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Fprintf(os.Stderr, "db:scaffold - connecting to %q as %q...\n", cfg.Postgres.Database, cfg.Postgres.User)
		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(os.Stderr, "db:scaffold - ensuring schema (tables, triggers, stats view)...")
		if err := pgdao.EnsureSchema(ctx, db); err != nil {
			return err
		}
		if flagSkipAPI {
			fmt.Fprintln(os.Stderr, "db:scaffold - done (api skipped)")
			return nil
		}

		fmt.Fprintf(os.Stderr, "db:scaffold - ensuring api schema %q and role %q...\n", api.Schema, api.User)
		if err := pgdao.EnsureAPISchema(ctx, db, cfg.Postgres.Database, api.Schema, api.User, api.Password); err != nil {
			return err
		}
		ok, err := pgdao.HasSchemaUsage(ctx, db, api.User, api.Schema)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("role %q still lacks USAGE on schema %q", api.User, api.Schema)
		}
		fmt.Fprintln(os.Stderr, "db:scaffold - done")
		return nil
	},
}

func init() {
	scaffoldCmd.Flags().BoolVar(&flagYes, "yes", false, "Confirm creating roles and grants (non-interactive)")
	scaffoldCmd.Flags().BoolVar(&flagSkipAPI, "skip-api", false, "Only ensure the catalog schema")
}
