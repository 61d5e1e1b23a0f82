package runcmd

import (
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect recorded sync runs",
}

func init() {
	RunCmd.AddCommand(listCmd)
	RunCmd.AddCommand(showCmd)
}
