package runcmd

import (
	"testing"
	"time"

	"github.com/flarebyte/crous-sync/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCountRowsWithoutEnd(t *testing.T) {
	rows := countRows(model.Counts{Regions: 3, Dishes: 7}, nil)
	assert.Len(t, rows, 8)
	assert.Equal(t, []string{"regions", "3", "-"}, rows[0])
	assert.Equal(t, []string{"dishes", "7", "-"}, rows[6])
}

func TestCountRowsWithEnd(t *testing.T) {
	rows := countRows(model.Counts{Menus: 1}, &model.Counts{Menus: 4})
	assert.Equal(t, []string{"menus", "1", "4"}, rows[3])
}

func TestDurationAndActive(t *testing.T) {
	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	r := model.Run{Started: start, ActiveStart: 10}
	assert.Equal(t, "-", duration(r))
	assert.Equal(t, "10", active(r))

	fin := start.Add(90 * time.Second)
	end := 9
	r.Finished = &fin
	r.ActiveEnd = &end
	assert.Equal(t, "1m30s", duration(r))
	assert.Equal(t, "10 -> 9", active(r))
}
