package synccmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/crous"
	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/fetch"
	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/flarebyte/crous-sync/internal/notify"
	"github.com/flarebyte/crous-sync/internal/reconcile"
	"github.com/flarebyte/crous-sync/internal/thumbnail"
	"github.com/spf13/cobra"
)

var (
	flagSkipInactive bool
	flagNoNotify     bool
	flagLogLevel     string
	flagRunJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full synchronization and record it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("skip-inactive") {
			cfg.Sync.SkipInactive = flagSkipInactive
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = flagLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		db, err := pgdao.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		var n notify.Notifier = notify.Nop{}
		if !flagNoNotify {
			if n, err = notify.New(cfg.Notify, log); err != nil {
				return err
			}
		}
		engine := &reconcile.Engine{
			Store:    catalog.NewPGStore(db),
			Provider: crous.NewClient(cfg.Crous.BaseURL, cfg.Crous.UserAgent, cfg.Crous.Timeout),
			Fetcher:  fetch.New(cfg.Fetch.Attempts, cfg.Fetch.BaseDelay, log),
			Notifier: n,
			Options: reconcile.Options{
				SkipInactive: cfg.Sync.SkipInactive,
				Images:       thumbnail.Logging{Logger: log},
				Logger:       log,
			},
		}
		res, runErr := engine.Execute(ctx)
		if res != nil {
			fmt.Fprintf(os.Stderr, "sync: run %d (%s) %s in %s\n", res.RunID, res.RunKey, res.Status, res.Elapsed.Round(time.Millisecond))
			enc := json.NewEncoder(os.Stdout)
			if flagRunJSON {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(res); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagSkipInactive, "skip-inactive", false, "Only sync restaurants active at run start (overrides sync.skip_inactive)")
	runCmd.Flags().BoolVar(&flagNoNotify, "no-notify", false, "Do not post run summaries to the webhook")
	runCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error, critical")
	runCmd.Flags().BoolVar(&flagRunJSON, "json", false, "Pretty-print the JSON result")
}
