package db

import (
	"context"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog tables, run ledger and stats view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Fprintln(os.Stderr, "db:init - connecting to Postgres...")
		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintln(os.Stderr, "db:init - ensuring schema (tables, triggers, stats view)...")
		if err := pgdao.EnsureSchema(ctx, db); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "db:init - done")
		return nil
	},
}
