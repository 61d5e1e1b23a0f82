// Package model holds the persisted shapes of the catalog shared by the store
// implementations and the synchronizer.
package model

import (
	"encoding/json"
	"time"
)

// MaxDishLabelLength is the storage limit of a dish label, in characters.
const MaxDishLabelLength = 500

// Region is a top-level geographic grouping of restaurants.
type Region struct {
	ID   int
	Name string
}

// Restaurant is the full record written on every sighting. Structured
// metadata is kept as raw JSON and stored as JSONB; nil means absent.
type Restaurant struct {
	ID         int
	RegionID   int
	TypeID     int
	Name       string
	Address    string
	Latitude   float64
	Longitude  float64
	Schedule   json.RawMessage
	Open       bool
	ImageURL   string
	Email      string
	Phone      string
	Accessible bool
	Zone       string
	Payment    json.RawMessage
	Access     json.RawMessage
	UpdatedAt  time.Time
}

// MenuSnapshot is the complete content of one menu as it must be stored
// after a replace. Positions are 0-based and follow upstream order.
type MenuSnapshot struct {
	ID           int64
	RestaurantID int
	Date         time.Time
	Digest       string
	CheckedAt    time.Time
	Meals        []MealSnapshot
}

type MealSnapshot struct {
	Label      string
	Position   int
	Categories []CategorySnapshot
}

type CategorySnapshot struct {
	Label    string
	Position int
	Dishes   []Placement
}

// Placement is one dish label at a position inside a category.
type Placement struct {
	Label    string
	Position int
}

// Counts are per-entity row counts used for run statistics.
type Counts struct {
	Regions         int64 `json:"regions"`
	Restaurants     int64 `json:"restaurants"`
	RestaurantTypes int64 `json:"restaurant_types"`
	Menus           int64 `json:"menus"`
	Meals           int64 `json:"meals"`
	Categories      int64 `json:"categories"`
	Dishes          int64 `json:"dishes"`
	Compositions    int64 `json:"compositions"`
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID           int64
	Key          string
	Started      time.Time
	Finished     *time.Time
	Status       RunStatus
	ErrorMessage string
	StartCounts  Counts
	EndCounts    *Counts
	ActiveStart  int
	ActiveEnd    *int
	Requests     int64
}

// RunFinish carries what is known when a run ends, successfully or not.
type RunFinish struct {
	ID           int64
	Finished     time.Time
	Status       RunStatus
	ErrorMessage string
	EndCounts    *Counts
	ActiveEnd    *int
	Requests     int64
}

// StatsSnapshot is the materialized aggregate row read by status surfaces.
type StatsSnapshot struct {
	Counts            Counts    `json:"counts"`
	ActiveRestaurants int64     `json:"active_restaurants"`
	Refreshed         time.Time `json:"refreshed"`
}
