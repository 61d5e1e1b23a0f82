// Package notify delivers run summaries to an operator channel.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/model"
)

type Phase string

const (
	PhaseStarted  Phase = "started"
	PhaseFailed   Phase = "failed"
	PhaseFinished Phase = "finished"
)

// Summary describes a run at one of its reporting points.
type Summary struct {
	RunID             int64
	RunKey            string
	Phase             Phase
	StartCounts       model.Counts
	EndCounts         *model.Counts
	ActiveRestaurants int
	Elapsed           time.Duration
	Requests          int64
	Success           bool
	Reason            string
	At                time.Time
}

// Notifier sends a run summary somewhere.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Nop drops every summary.
type Nop struct{}

func (Nop) Notify(context.Context, Summary) error { return nil }

type safe struct {
	next Notifier
	log  *slog.Logger
}

// Safe wraps n so that delivery errors are logged and never returned.
func Safe(n Notifier, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &safe{next: n, log: logger}
}

func (s *safe) Notify(ctx context.Context, sum Summary) error {
	if err := s.next.Notify(ctx, sum); err != nil {
		s.log.Warn("notification not delivered", "phase", sum.Phase, "run_id", sum.RunID, "err", err)
	}
	return nil
}

// New builds the configured notifier, already wrapped with Safe. Without a
// webhook URL summaries are dropped.
func New(cfg config.NotifyConfig, logger *slog.Logger) (Notifier, error) {
	if cfg.WebhookURL == "" {
		return Nop{}, nil
	}
	w, err := NewWebhook(cfg)
	if err != nil {
		return nil, err
	}
	return Safe(w, logger), nil
}
