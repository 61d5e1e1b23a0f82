package runcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	flagListLimit  int
	flagListOffset int
	flagListOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		runs, err := pgdao.ListRuns(ctx, db, flagListLimit, flagListOffset)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "runs: %d\n", len(runs))
		if strings.ToLower(strings.TrimSpace(flagListOutput)) == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"ID", "KEY", "STATUS", "STARTED", "DURATION", "REQUESTS", "ACTIVE"})
		for _, r := range runs {
			tw.Append([]string{
				fmt.Sprintf("%d", r.ID),
				r.Key,
				string(r.Status),
				r.Started.Local().Format("2006-01-02 15:04:05"),
				duration(r),
				fmt.Sprintf("%d", r.Requests),
				active(r),
			})
		}
		tw.Render()
		return nil
	},
}

func duration(r model.Run) string {
	if r.Finished == nil {
		return "-"
	}
	return r.Finished.Sub(r.Started).Round(time.Second).String()
}

func active(r model.Run) string {
	if r.ActiveEnd == nil {
		return fmt.Sprintf("%d", r.ActiveStart)
	}
	return fmt.Sprintf("%d -> %d", r.ActiveStart, *r.ActiveEnd)
}

func init() {
	listCmd.Flags().IntVar(&flagListLimit, "max-results", 20, "Max results to return")
	listCmd.Flags().IntVar(&flagListOffset, "offset", 0, "Offset for pagination")
	listCmd.Flags().StringVar(&flagListOutput, "output", "table", "Output format: table or json")
}
