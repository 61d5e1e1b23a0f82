package server

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	cfgpkg "github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	pgdao "github.com/flarebyte/crous-sync/internal/dao/postgres"
	"github.com/flarebyte/crous-sync/internal/logging"
	srv "github.com/flarebyte/crous-sync/internal/server"
	"github.com/spf13/cobra"
)

var (
	flagDetach   bool
	flagAddr     string
	flagGRPCAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		pidPath := srv.DefaultPIDPath()
		if flagDetach {
			args := []string{"server", "start"}
			if flagAddr != "" {
				args = append(args, "--addr", flagAddr)
			}
			if flagGRPCAddr != "" {
				args = append(args, "--grpc-addr", flagGRPCAddr)
			}
			child := exec.Command(exe, args...)
			logPath := filepath.Join(filepath.Dir(pidPath), "server.log")
			lf, _ := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if lf != nil {
				defer lf.Close()
				child.Stdout = lf
				child.Stderr = lf
			}
			if runtime.GOOS != "windows" {
				child.SysProcAttr = srv.DetachAttr()
			}
			if err := child.Start(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "server started in background (pid=%d)\n", child.Process.Pid)
			return nil
		}

		cfg, err := cfgpkg.Load()
		if err != nil {
			return err
		}
		log, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		if err != nil {
			return err
		}
		defer closer.Close()

		db, err := pgdao.Open(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		addr := flagAddr
		if addr == "" {
			addr = fmt.Sprintf("127.0.0.1:%d", portOr(cfg.Server.Port, cfgpkg.DefaultServerPort))
		}
		grpcAddr := flagGRPCAddr
		if grpcAddr == "" {
			grpcAddr = fmt.Sprintf("127.0.0.1:%d", portOr(cfg.Server.GRPCPort, cfgpkg.DefaultServerGRPCPort))
		}
		return srv.RunForeground(srv.Options{
			HTTPAddr: addr,
			GRPCAddr: grpcAddr,
			PIDPath:  pidPath,
			Reader:   catalog.NewPGStore(db),
			Logger:   log,
		})
	},
}

func portOr(p, def int) int {
	if p <= 0 {
		return def
	}
	return p
}

func init() {
	startCmd.Flags().BoolVar(&flagDetach, "detach", false, "Run in background")
	startCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address override (defaults to config)")
	startCmd.Flags().StringVar(&flagGRPCAddr, "grpc-addr", "", "gRPC listen address override (defaults to config)")
}
