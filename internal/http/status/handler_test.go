package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/dao/catalog"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *catalog.MemStore {
	t.Helper()
	ctx := context.Background()
	s := catalog.NewMemStore()
	started := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id, err := s.StartRun(ctx, "run-"+string(rune('a'+i)), started.Add(time.Duration(i)*time.Hour), model.Counts{Regions: int64(i)}, 0)
		require.NoError(t, err)
		require.NoError(t, s.FinishRun(ctx, model.RunFinish{ID: id, Finished: started.Add(time.Duration(i)*time.Hour + time.Minute), Status: model.RunSucceeded, Requests: 10}))
	}
	return s
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := catalog.NewMemStore()
	h := New(s).Router()
	assert.Equal(t, http.StatusOK, do(t, h, "/healthz").Code)

	s.Fail("Ping", errors.New("connection refused"))
	rec := do(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db_unreachable")
}

func TestListRunsNewestFirst(t *testing.T) {
	h := New(seededStore(t)).Router()
	rec := do(t, h, "/runs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "run-c", got[0].Key)
	assert.Equal(t, model.RunSucceeded, got[1].Status)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs?offset=x").Code)
}

func TestGetRun(t *testing.T) {
	h := New(seededStore(t)).Router()
	rec := do(t, h, "/runs/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-b", got.Key)
	assert.Equal(t, int64(10), got.Requests)
	require.NotNil(t, got.Finished)

	assert.Equal(t, http.StatusNotFound, do(t, h, "/runs/99").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/runs/abc").Code)
}

func TestStats(t *testing.T) {
	s := catalog.NewMemStore()
	s.SeedRestaurant(model.Restaurant{ID: 1}, true)
	s.SeedRestaurant(model.Restaurant{ID: 2}, false)
	rec := do(t, New(s).Router(), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.StatsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(2), got.Counts.Restaurants)
	assert.Equal(t, int64(1), got.ActiveRestaurants)
}
