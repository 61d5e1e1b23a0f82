package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/go-chi/chi/v5"
)

const maxRunsLimit = 200

// Handler serves the read-only sync status API.
type Handler struct {
	reader catalog.Reader
}

func New(reader catalog.Reader) *Handler {
	return &Handler{reader: reader}
}

// Router wires /healthz, /stats, /runs and /runs/{id}.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.getHealth)
	r.Get("/stats", h.getStats)
	r.Get("/runs", h.listRuns)
	r.Get("/runs/{id}", h.getRun)
	return r
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable", "db_unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.reader.StatsSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read stats", "stats_failed")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil || limit < 1 || limit > maxRunsLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200", "invalid_limit")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", "invalid_offset")
		return
	}
	runs, err := h.reader.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", "runs_failed")
		return
	}
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, viewOf(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "run id must be a positive integer", "invalid_id")
		return
	}
	run, err := h.reader.GetRun(r.Context(), id)
	if errors.Is(err, catalog.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found", "run_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read run", "run_failed")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*run))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

type runView struct {
	ID           int64           `json:"id"`
	Key          string          `json:"key"`
	Status       model.RunStatus `json:"status"`
	Started      time.Time       `json:"started"`
	Finished     *time.Time      `json:"finished,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	StartCounts  model.Counts    `json:"start_counts"`
	EndCounts    *model.Counts   `json:"end_counts,omitempty"`
	ActiveStart  int             `json:"active_start"`
	ActiveEnd    *int            `json:"active_end,omitempty"`
	Requests     int64           `json:"requests"`
}

func viewOf(r model.Run) runView {
	return runView{
		ID:           r.ID,
		Key:          r.Key,
		Status:       r.Status,
		Started:      r.Started,
		Finished:     r.Finished,
		ErrorMessage: r.ErrorMessage,
		StartCounts:  r.StartCounts,
		EndCounts:    r.EndCounts,
		ActiveStart:  r.ActiveStart,
		ActiveEnd:    r.ActiveEnd,
		Requests:     r.Requests,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	var e apiError
	e.Error.Message = message
	e.Error.Code = code
	writeJSON(w, status, e)
}
