package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	"github.com/flarebyte/crous-sync/internal/http/status"
	"github.com/flarebyte/crous-sync/internal/paths"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "crous-sync"

const defaultProbeInterval = 15 * time.Second

func DefaultPIDPath() string {
	p, err := paths.EnsureHome()
	if err != nil {
		p = "."
	}
	return filepath.Join(p, "server.pid")
}

// Options configure RunForeground.
type Options struct {
	HTTPAddr      string
	GRPCAddr      string
	PIDPath       string
	Reader        catalog.Reader
	Logger        *slog.Logger
	ProbeInterval time.Duration
}

// RunForeground serves the status API over HTTP and the health service over
// gRPC until SIGTERM or SIGINT, writing a pid file for the duration.
func RunForeground(opts Options) error {
	if err := writePID(opts.PIDPath); err != nil {
		return err
	}
	defer removePID(opts.PIDPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return Serve(ctx, opts)
}

// Serve runs both listeners until ctx is done.
func Serve(ctx context.Context, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	httpLis, err := net.Listen("tcp", opts.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", opts.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	return serveOn(ctx, httpLis, grpcLis, opts.Reader, opts.ProbeInterval, log)
}

func serveOn(ctx context.Context, httpLis, grpcLis net.Listener, reader catalog.Reader, every time.Duration, log *slog.Logger) error {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hsrv := &http.Server{
		Handler:           status.New(reader).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http status listening", "addr", httpLis.Addr().String())
		if err := hsrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc health listening", "addr", grpcLis.Addr().String())
		if err := gs.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		probe(gctx, reader, hs, every, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hsrv.Shutdown(shutdownCtx)
		gs.GracefulStop()
		return nil
	})
	return g.Wait()
}

// probe keeps the health status in line with database reachability.
func probe(ctx context.Context, reader catalog.Reader, hs *health.Server, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		every = defaultProbeInterval
	}
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := reader.Ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			log.Warn("database ping failed", "err", err)
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}
	check()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}

func writePID(pidPath string) error {
	if _, err := os.Stat(pidPath); err == nil {
		return fmt.Errorf("pid file exists: %s", pidPath)
	}
	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d", os.Getpid())
	return err
}

func removePID(pidPath string) {
	_ = os.Remove(pidPath)
}

func ReadPID(pidPath string) (int, error) {
	b, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(b), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

// DetachAttr returns platform-specific attributes to detach a process.
func DetachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
