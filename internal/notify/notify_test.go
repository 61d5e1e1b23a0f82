package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/logging"
	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsEmbed(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhook(config.NotifyConfig{
		WebhookURL:   srv.URL,
		EmbedColor:   "#2f3136",
		ThumbnailURL: "https://img.example.test/thumb.png",
	})
	require.NoError(t, err)
	end := model.Counts{Regions: 2, Dishes: 12345}
	err = n.Notify(context.Background(), Summary{
		RunKey:    "01HXYZ",
		Phase:     PhaseFinished,
		EndCounts: &end,
		Elapsed:   1500 * time.Millisecond,
		Requests:  42,
		Success:   true,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, 0x2f3136, e.Color)
	assert.Contains(t, e.Description, "`1.50` seconds")
	assert.Contains(t, e.Fields[0].Value, "Dishes: `12,345`")
	require.NotNil(t, e.Thumbnail)
	assert.Nil(t, e.Image)
	assert.True(t, strings.HasSuffix(e.Footer.Text, "01HXYZ"))
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	n, err := NewWebhook(config.NotifyConfig{WebhookURL: srv.URL})
	require.NoError(t, err)
	err = n.Notify(context.Background(), Summary{Phase: PhaseStarted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

type failing struct{ calls int }

func (f *failing) Notify(context.Context, Summary) error {
	f.calls++
	return errors.New("discord down")
}

func TestSafeSwallowsErrors(t *testing.T) {
	f := &failing{}
	n := Safe(f, logging.Discard())
	assert.NoError(t, n.Notify(context.Background(), Summary{Phase: PhaseFailed}))
	assert.Equal(t, 1, f.calls)
}

func TestNewWithoutURLIsNop(t *testing.T) {
	n, err := New(config.NotifyConfig{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)

	_, err = New(config.NotifyConfig{WebhookURL: "http://x", EmbedColor: "zz"}, logging.Discard())
	assert.Error(t, err)
}
