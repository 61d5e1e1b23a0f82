package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the stats_counts materialized view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		concurrent, err := pgdao.RefreshStatsView(ctx, db)
		if err != nil {
			return err
		}
		mode := "plain"
		if concurrent {
			mode = "concurrent"
		}
		fmt.Fprintf(os.Stderr, "db:refresh - stats_counts refreshed (%s)\n", mode)
		snap, err := pgdao.ReadStatsView(ctx, db)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}
