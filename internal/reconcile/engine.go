package reconcile

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	"github.com/flarebyte/crous-sync/internal/fetch"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/flarebyte/crous-sync/internal/notify"
	"github.com/oklog/ulid/v2"
)

// Engine runs one complete synchronization: run bookkeeping, notifications,
// the traversal and the stats refresh.
type Engine struct {
	Store    catalog.Store
	Provider Provider
	Fetcher  *fetch.Fetcher
	Notifier notify.Notifier
	Options  Options
}

// Result is what Execute reports back to the caller.
type Result struct {
	RunID       int64           `json:"run_id"`
	RunKey      string          `json:"run_key"`
	Status      model.RunStatus `json:"status"`
	Elapsed     time.Duration   `json:"elapsed"`
	StartCounts model.Counts    `json:"start_counts"`
	EndCounts   *model.Counts   `json:"end_counts,omitempty"`
	ActiveEnd   int             `json:"active_end"`
	Report      *Report         `json:"report"`
}

func (e *Engine) logger() *slog.Logger {
	if e.Options.Logger == nil {
		return slog.Default()
	}
	return e.Options.Logger
}

func (e *Engine) now() time.Time {
	if e.Options.Now == nil {
		return time.Now()
	}
	return e.Options.Now()
}

func (e *Engine) notifier() notify.Notifier {
	if e.Notifier == nil {
		return notify.Nop{}
	}
	return notify.Safe(e.Notifier, e.logger())
}

// Execute records a run, synchronizes, and finishes the run row. A failed
// traversal is recorded as a failed run and its error returned.
func (e *Engine) Execute(ctx context.Context) (*Result, error) {
	log := e.logger()
	n := e.notifier()
	started := e.now()

	startCounts, err := e.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("start stats: %w", err)
	}
	activeStart, err := e.Store.CountActiveRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("start active count: %w", err)
	}
	key := ulid.MustNew(ulid.Timestamp(started), rand.Reader).String()
	runID, err := e.Store.StartRun(ctx, key, started, startCounts, activeStart)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	ids, err := e.Store.ActiveRestaurantIDs(ctx)
	if err != nil {
		e.finishFailed(ctx, runID, 0, err)
		return nil, fmt.Errorf("active restaurants: %w", err)
	}
	run := NewRun(runID, key, started, ids)
	log = log.With("run_id", runID, "run_key", key)
	log.Info("sync started", "active_restaurants", activeStart)

	res := &Result{RunID: runID, RunKey: key, StartCounts: startCounts}
	summary := notify.Summary{
		RunID:             runID,
		RunKey:            key,
		StartCounts:       startCounts,
		ActiveRestaurants: activeStart,
		Phase:             notify.PhaseStarted,
		At:                started,
	}
	_ = n.Notify(ctx, summary)

	opts := e.Options
	opts.Logger = log
	syncer := NewSynchronizer(e.Store, e.Provider, e.Fetcher, opts)
	rep, syncErr := syncer.Sync(ctx, run)
	res.Report = rep

	if syncErr != nil {
		end := e.finishFailed(ctx, runID, run.Requests.Load(), syncErr)
		res.Status = model.RunFailed
		res.Elapsed = e.now().Sub(started)
		res.EndCounts = end
		log.Error("sync failed", "elapsed", res.Elapsed, "requests", run.Requests.Load(), "err", syncErr)

		summary.Phase = notify.PhaseFailed
		summary.EndCounts = end
		summary.Elapsed = res.Elapsed
		summary.Requests = run.Requests.Load()
		summary.Reason = syncErr.Error()
		summary.At = e.now()
		_ = n.Notify(context.WithoutCancel(ctx), summary)
		return res, syncErr
	}

	concurrent, err := e.Store.RefreshStatsView(ctx)
	if err != nil {
		log.Warn("stats view not refreshed", "err", err)
	} else {
		log.Debug("stats view refreshed", "concurrent", concurrent)
	}
	endCounts, err := e.Store.Stats(ctx)
	if err != nil {
		e.finishFailed(ctx, runID, run.Requests.Load(), err)
		return res, fmt.Errorf("end stats: %w", err)
	}
	activeEnd, err := e.Store.CountActiveRestaurants(ctx)
	if err != nil {
		e.finishFailed(ctx, runID, run.Requests.Load(), err)
		return res, fmt.Errorf("end active count: %w", err)
	}
	finished := e.now()
	err = e.Store.FinishRun(ctx, model.RunFinish{
		ID:        runID,
		Finished:  finished,
		Status:    model.RunSucceeded,
		EndCounts: &endCounts,
		ActiveEnd: &activeEnd,
		Requests:  run.Requests.Load(),
	})
	if err != nil {
		return res, fmt.Errorf("finish run: %w", err)
	}
	res.Status = model.RunSucceeded
	res.Elapsed = finished.Sub(started)
	res.EndCounts = &endCounts
	res.ActiveEnd = activeEnd
	log.Info("sync finished", "elapsed", res.Elapsed, "requests", rep.Requests,
		"menus_replaced", rep.MenusReplaced, "menus_unchanged", rep.MenusUnchanged, "menus_failed", rep.MenusFailed)

	summary.Phase = notify.PhaseFinished
	summary.EndCounts = &endCounts
	summary.ActiveRestaurants = activeEnd
	summary.Elapsed = res.Elapsed
	summary.Requests = run.Requests.Load()
	summary.Success = true
	summary.At = finished
	_ = n.Notify(ctx, summary)
	return res, nil
}

// finishFailed records a failed run with whatever end figures are available.
func (e *Engine) finishFailed(ctx context.Context, runID int64, requests int64, cause error) *model.Counts {
	ctx = context.WithoutCancel(ctx)
	log := e.logger()
	f := model.RunFinish{
		ID:           runID,
		Finished:     e.now(),
		Status:       model.RunFailed,
		ErrorMessage: cause.Error(),
		Requests:     requests,
	}
	if c, err := e.Store.Stats(ctx); err == nil {
		f.EndCounts = &c
	}
	if a, err := e.Store.CountActiveRestaurants(ctx); err == nil {
		f.ActiveEnd = &a
	}
	if err := e.Store.FinishRun(ctx, f); err != nil {
		log.Error("failed run not recorded", "run_id", runID, "err", err)
	}
	return f.EndCounts
}
