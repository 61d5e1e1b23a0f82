package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	flagCountJSON  bool
	flagCountTable bool
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count rows for each catalog table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		counts, err := pgdao.CountTables(ctx, db, pgdao.CatalogTables)
		if err != nil {
			return err
		}
		active, err := pgdao.CountActiveRestaurants(ctx, db)
		if err != nil {
			return err
		}

		if flagCountTable {
			tw := tablewriter.NewWriter(os.Stdout)
			tw.SetHeader([]string{"TABLE", "ROWS"})
			for _, t := range pgdao.CatalogTables {
				tw.Append([]string{t, fmt.Sprintf("%d", counts[t])})
			}
			tw.SetFooter([]string{"active restaurants", fmt.Sprintf("%d", active)})
			tw.Render()
			return nil
		}

		for _, t := range pgdao.CatalogTables {
			fmt.Fprintf(os.Stderr, "%s\t%d\n", t, counts[t])
		}
		fmt.Fprintf(os.Stderr, "active restaurants\t%d\n", active)

		enc := json.NewEncoder(os.Stdout)
		if flagCountJSON {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(map[string]any{"tables": counts, "active_restaurants": active})
	},
}

func init() {
	countCmd.Flags().BoolVar(&flagCountJSON, "json", false, "Pretty-print JSON output")
	countCmd.Flags().BoolVar(&flagCountTable, "table", false, "Render a table instead of JSON")
}
