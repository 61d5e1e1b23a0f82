package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flarebyte/crous-sync/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DSN renders the keyword/value connection string for cfg.
func DSN(cfg config.PostgresConfig) string {
	return dsnFor(cfg, cfg.User, cfg.Password, cfg.Database)
}

func dsnFor(cfg config.PostgresConfig, user, pass, dbName string) string {
	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"user=" + quoteDSN(user),
		"dbname=" + quoteDSN(dbName),
		"sslmode=" + quoteDSN(cfg.SSLMode),
	}
	if pass != "" {
		parts = append(parts, "password="+quoteDSN(pass))
	}
	return strings.Join(parts, " ")
}

// Open returns a pool bounded by postgres.max_conns and checks connectivity.
func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	return OpenDSN(ctx, DSN(cfg.Postgres), cfg.Postgres.MaxConns)
}

// OpenDSN is Open for an explicit connection string.
func OpenDSN(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		pc.MaxConns = int32(maxConns)
	}
	pc.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
