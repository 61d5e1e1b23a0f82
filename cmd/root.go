package cmd

import (
	configcmd "github.com/flarebyte/crous-sync/cmd/config"
	dbcmd "github.com/flarebyte/crous-sync/cmd/db"
	runcmd "github.com/flarebyte/crous-sync/cmd/run"
	srvcmd "github.com/flarebyte/crous-sync/cmd/server"
	synccmd "github.com/flarebyte/crous-sync/cmd/sync"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crs",
	Short: "Incremental CROUS catalog sync into Postgres",
	Long: "crs pulls regions, restaurants and daily menus from the CROUS catalog API and\n" +
		"reconciles them into Postgres, rewriting a menu only when its content changed.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(synccmd.SyncCmd)
	rootCmd.AddCommand(dbcmd.DBCmd)
	rootCmd.AddCommand(runcmd.RunCmd)
	rootCmd.AddCommand(configcmd.ConfigCmd)
	rootCmd.AddCommand(srvcmd.ServerCmd)
}
