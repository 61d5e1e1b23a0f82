package synccmd

import (
	"github.com/spf13/cobra"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the upstream catalog into Postgres",
}

func init() {
	SyncCmd.AddCommand(runCmd)
}
