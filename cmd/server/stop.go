package server

import (
	"fmt"
	"os"
	"syscall"

	srv "github.com/flarebyte/crous-sync/internal/server"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server gracefully",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := srv.ReadPID(srv.DefaultPIDPath())
		if err != nil {
			return err
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			_ = proc.Kill()
		}
		fmt.Fprintf(os.Stderr, "stop signal sent to pid=%d\n", pid)
		return nil
	},
}
