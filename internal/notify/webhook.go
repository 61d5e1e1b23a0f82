package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flarebyte/crous-sync/internal/config"
	"github.com/flarebyte/crous-sync/internal/model"
)

// Webhook posts embeds to a Discord-compatible webhook.
type Webhook struct {
	URL          string
	Color        int
	ThumbnailURL string
	ImageURL     string
	HTTP         *http.Client
}

// NewWebhook parses the hex embed colour from cfg.
func NewWebhook(cfg config.NotifyConfig) (*Webhook, error) {
	color := 0
	if c := strings.TrimPrefix(strings.TrimSpace(cfg.EmbedColor), "#"); c != "" {
		v, err := strconv.ParseInt(c, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("notify: invalid embed color %q: %w", cfg.EmbedColor, err)
		}
		color = int(v)
	}
	return &Webhook{
		URL:          cfg.WebhookURL,
		Color:        color,
		ThumbnailURL: cfg.ThumbnailURL,
		ImageURL:     cfg.ImageURL,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedURL struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Thumbnail   *embedURL    `json:"thumbnail,omitempty"`
	Image       *embedURL    `json:"image,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

// Embed renders the summary the way it is posted.
func (w *Webhook) Embed(s Summary) embed {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	e := embed{
		Title:     "crous-sync",
		Color:     w.Color,
		Timestamp: at.UTC().Format(time.RFC3339),
		Footer:    &embedFooter{Text: fmt.Sprintf("crous-sync · run %s", s.RunKey)},
	}
	counts := s.StartCounts
	switch s.Phase {
	case PhaseStarted:
		e.Description = "Sync started, loading data..."
	case PhaseFailed:
		e.Description = fmt.Sprintf("Sync failed after `%.2f` seconds and %s upstream requests.\n```%s```",
			s.Elapsed.Seconds(), humanize.Comma(s.Requests), s.Reason)
	default:
		e.Description = fmt.Sprintf("Sync finished, data loaded.\nElapsed: `%.2f` seconds, upstream requests: `%s`.",
			s.Elapsed.Seconds(), humanize.Comma(s.Requests))
	}
	if s.EndCounts != nil {
		counts = *s.EndCounts
	}
	e.Fields = []embedField{
		{Name: "Statistics", Value: statsBlock(counts)},
		{Name: "Active restaurants", Value: fmt.Sprintf("`%s`", humanize.Comma(int64(s.ActiveRestaurants))), Inline: true},
	}
	if w.ThumbnailURL != "" {
		e.Thumbnail = &embedURL{URL: w.ThumbnailURL}
	}
	if w.ImageURL != "" {
		e.Image = &embedURL{URL: w.ImageURL}
	}
	return e
}

func statsBlock(c model.Counts) string {
	rows := []struct {
		label string
		n     int64
	}{
		{"Regions", c.Regions},
		{"Restaurants", c.Restaurants},
		{"Restaurant types", c.RestaurantTypes},
		{"Menus", c.Menus},
		{"Meals", c.Meals},
		{"Categories", c.Categories},
		{"Dishes", c.Dishes},
		{"Compositions", c.Compositions},
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: `%s`\n", r.label, humanize.Comma(r.n))
	}
	return b.String()
}

// Notify posts the summary as a single embed.
func (w *Webhook) Notify(ctx context.Context, s Summary) error {
	body, err := json.Marshal(payload{Embeds: []embed{w.Embed(s)}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := w.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
