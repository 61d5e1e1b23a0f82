// Package crous is the HTTP client for the upstream catalog provider.
package crous

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client talks to the upstream API under BaseURL.
type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

// NewClient returns a client with a per-request timeout.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Regions lists every region.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	var out []Region
	if err := c.getJSON(ctx, "/regions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Restaurants lists the restaurants of a region.
func (c *Client) Restaurants(ctx context.Context, regionID int) ([]Restaurant, error) {
	var out []Restaurant
	if err := c.getJSON(ctx, fmt.Sprintf("/regions/%d/restaurants", regionID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Menus lists the published menus of a restaurant.
func (c *Client) Menus(ctx context.Context, regionID, restaurantID int) ([]Menu, error) {
	var out []Menu
	if err := c.getJSON(ctx, fmt.Sprintf("/regions/%d/restaurants/%d/menus", regionID, restaurantID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	url := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
