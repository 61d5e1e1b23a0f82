package crous

import (
	"bytes"
	"encoding/json"
	"time"
)

type Region struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Restaurant is one entry of the per-region restaurant listing. Structured
// fields are kept raw and stored as JSON.
type Restaurant struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Address       string          `json:"address"`
	Lat           float64         `json:"lat"`
	Lon           float64         `json:"lon"`
	Schedule      json.RawMessage `json:"schedule,omitempty"`
	Opening       bool            `json:"opening"`
	ImageURL      string          `json:"image_url,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Accessibility bool            `json:"accessibility"`
	Zone          string          `json:"zone"`
	Payment       json.RawMessage `json:"payment,omitempty"`
	Access        json.RawMessage `json:"access,omitempty"`
}

type Menu struct {
	ID    int64  `json:"id"`
	Date  string `json:"date"`
	Meals []Meal `json:"meals"`
}

type Meal struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

type Category struct {
	Name   string `json:"name"`
	Dishes []Dish `json:"dishes"`
}

type Dish struct {
	Name string `json:"name"`
}

// Day parses the menu date. Both YYYY-MM-DD and RFC 3339 forms are accepted.
func (m Menu) Day() (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, m.Date); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, m.Date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// OptionalJSON returns nil for absent, empty or null JSON values.
func OptionalJSON(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
