package thumbnail

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStale(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-6 * 24 * time.Hour)
	old := now.Add(-8 * 24 * time.Hour)

	assert.True(t, Stale(nil, now))
	assert.False(t, Stale(&fresh, now))
	assert.True(t, Stale(&old, now))
}

func TestLoggingRefresher(t *testing.T) {
	var buf bytes.Buffer
	r := Logging{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	require.NoError(t, r.Refresh(context.Background(), 42, "https://img.example.test/42.jpg"))
	assert.Contains(t, buf.String(), "restaurant_id=42")
}
