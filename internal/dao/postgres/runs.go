package postgres

import (
	"context"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/dbutil"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartRun appends a run row in the running state and returns its id.
func StartRun(ctx context.Context, db *pgxpool.Pool, key string, started time.Time, counts model.Counts, activeStart int) (int64, error) {
	q := `INSERT INTO runs (run_key, started, status, start_counts, active_start)
          VALUES ($1,$2,'running',$3,$4)
          RETURNING id`
	var id int64
	if err := db.QueryRow(ctx, q, key, started, counts, activeStart).Scan(&id); err != nil {
		return 0, dbutil.ErrWrap("run.start", err, dbutil.ParamSummary("run_key", key))
	}
	return id, nil
}

// FinishRun closes a run with its outcome and whatever end statistics are known.
func FinishRun(ctx context.Context, db *pgxpool.Pool, f model.RunFinish) error {
	q := `UPDATE runs SET
            finished = $2,
            status = $3,
            error_message = $4,
            end_counts = $5,
            active_end = $6,
            requests = $7
          WHERE id = $1`
	tag, err := db.Exec(ctx, q, f.ID, f.Finished, string(f.Status), nullText(f.ErrorMessage), f.EndCounts, f.ActiveEnd, f.Requests)
	if err != nil {
		return dbutil.ErrWrap("run.finish", err, dbutil.ParamSummary("id", f.ID), dbutil.ParamSummary("status", string(f.Status)))
	}
	if tag.RowsAffected() == 0 {
		return dbutil.ErrWrap("run.finish", pgx.ErrNoRows, dbutil.ParamSummary("id", f.ID))
	}
	return nil
}

// RecordRunParticipation links a restaurant to the run that processed it.
func RecordRunParticipation(ctx context.Context, db *pgxpool.Pool, runID int64, restaurantID int) error {
	q := `INSERT INTO run_logs (run_id, restaurant_id) VALUES ($1,$2)
          ON CONFLICT (run_id, restaurant_id) DO NOTHING`
	if _, err := db.Exec(ctx, q, runID, restaurantID); err != nil {
		return dbutil.ErrWrap("run.participation", err,
			dbutil.ParamSummary("run_id", runID), dbutil.ParamSummary("restaurant_id", restaurantID))
	}
	return nil
}

const runColumns = `id, run_key, started, finished, status, error_message, start_counts, end_counts, active_start, active_end, requests`

func scanRun(row pgx.Row) (model.Run, error) {
	var (
		r        model.Run
		finished pgtype.Timestamptz
		status   string
		errMsg   pgtype.Text
		active   pgtype.Int4
	)
	if err := row.Scan(&r.ID, &r.Key, &r.Started, &finished, &status, &errMsg, &r.StartCounts, &r.EndCounts, &r.ActiveStart, &active, &r.Requests); err != nil {
		return r, err
	}
	if finished.Valid {
		t := finished.Time
		r.Finished = &t
	}
	if active.Valid {
		n := int(active.Int32)
		r.ActiveEnd = &n
	}
	r.Status = model.RunStatus(status)
	r.ErrorMessage = errMsg.String
	return r, nil
}

// ListRuns returns runs newest first.
func ListRuns(ctx context.Context, db *pgxpool.Pool, limit, offset int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.Query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, dbutil.ErrWrap("run.list", err)
	}
	defer rows.Close()
	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, dbutil.ErrWrap("run.list", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun fetches a run by id.
func GetRun(ctx context.Context, db *pgxpool.Pool, id int64) (*model.Run, error) {
	r, err := scanRun(db.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id))
	if err != nil {
		return nil, dbutil.ErrWrap("run.get", err, dbutil.ParamSummary("id", id))
	}
	return &r, nil
}

// RunParticipants returns the restaurant ids recorded for a run.
func RunParticipants(ctx context.Context, db *pgxpool.Pool, runID int64) ([]int, error) {
	rows, err := db.Query(ctx, `SELECT restaurant_id FROM run_logs WHERE run_id=$1 ORDER BY restaurant_id`, runID)
	if err != nil {
		return nil, dbutil.ErrWrap("run.participants", err, dbutil.ParamSummary("run_id", runID))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, dbutil.ErrWrap("run.participants", err, dbutil.ParamSummary("run_id", runID))
	}
	return ids, nil
}
