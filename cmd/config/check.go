package configcmd

import (
	"context"
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/flarebyte/crous-sync/internal/notify"
	"github.com/spf13/cobra"
)

var (
	flagPasswords bool
	flagVerify    bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and report issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		if flagPasswords {
			fmt.Fprintln(os.Stderr, "Secret fields status (set=non-empty):")
			fmt.Fprintf(os.Stderr, "- postgres.password: %v\n", cfg.Postgres.Password != "")
			fmt.Fprintf(os.Stderr, "- postgres.api.password: %v\n", cfg.Postgres.API.Password != "")
			fmt.Fprintf(os.Stderr, "- notify.webhook_url: %v\n", cfg.Notify.WebhookURL != "")
		}
		if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
			return err
		}
		if _, err := notify.New(cfg.Notify, logging.Discard()); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "Configuration issues:")
			fmt.Fprintln(os.Stderr, err)
			return err
		}

		if flagVerify {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db, err := pgdao.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("verify: cannot connect: %w", err)
			}
			defer db.Close()
			var dbname, user string
			if err := db.QueryRow(ctx, "SELECT current_database(), current_user").Scan(&dbname, &user); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "verify: connected to %q as %q\n", dbname, user)
			if cfg.Postgres.API.User != "" {
				ok, err := pgdao.RoleExists(ctx, db, cfg.Postgres.API.User)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "verify: api role %q exists=%v\n", cfg.Postgres.API.User, ok)
			}
		}
		fmt.Fprintln(os.Stderr, "Configuration looks valid.")
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagPasswords, "passwords", false, "Report which secret fields are set (non-empty)")
	checkCmd.Flags().BoolVar(&flagVerify, "verify", false, "Connect to Postgres and report the session identity")
}
