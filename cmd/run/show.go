package runcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var flagShowParticipants bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its start and end statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", args[0])
		}
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := catalog.NewPGStore(db).GetRun(ctx, id)
		if errors.Is(err, catalog.ErrRunNotFound) {
			return fmt.Errorf("run %d not found", id)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "run %d (%s) %s, %d requests\n", run.ID, run.Key, run.Status, run.Requests)
		if run.ErrorMessage != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", run.ErrorMessage)
		}
		tw := tablewriter.NewWriter(os.Stderr)
		tw.SetHeader([]string{"ENTITY", "START", "END"})
		for _, row := range countRows(run.StartCounts, run.EndCounts) {
			tw.Append(row)
		}
		tw.Render()

		out := map[string]any{"run": run}
		if flagShowParticipants {
			ids, err := pgdao.RunParticipants(ctx, db, id)
			if err != nil {
				return err
			}
			out["restaurants"] = ids
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func countRows(start model.Counts, end *model.Counts) [][]string {
	var e model.Counts
	if end != nil {
		e = *end
	}
	cell := func(n int64) string {
		if end == nil {
			return "-"
		}
		return fmt.Sprintf("%d", n)
	}
	return [][]string{
		{"regions", fmt.Sprintf("%d", start.Regions), cell(e.Regions)},
		{"restaurants", fmt.Sprintf("%d", start.Restaurants), cell(e.Restaurants)},
		{"restaurant types", fmt.Sprintf("%d", start.RestaurantTypes), cell(e.RestaurantTypes)},
		{"menus", fmt.Sprintf("%d", start.Menus), cell(e.Menus)},
		{"meals", fmt.Sprintf("%d", start.Meals), cell(e.Meals)},
		{"categories", fmt.Sprintf("%d", start.Categories), cell(e.Categories)},
		{"dishes", fmt.Sprintf("%d", start.Dishes), cell(e.Dishes)},
		{"compositions", fmt.Sprintf("%d", start.Compositions), cell(e.Compositions)},
	}
}

func init() {
	showCmd.Flags().BoolVar(&flagShowParticipants, "restaurants", false, "Include the restaurant ids processed in the run")
}
