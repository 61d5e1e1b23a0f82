// Package thumbnail is the hand-off point for restaurant image retrieval.
package thumbnail

import (
	"context"
	"log/slog"
	"time"
)

// MaxAge is how long a stored image stays fresh.
const MaxAge = 7 * 24 * time.Hour

// Refresher retrieves and stores the image of one restaurant.
type Refresher interface {
	Refresh(ctx context.Context, restaurantID int, url string) error
}

// Stale reports whether an image last updated at updated needs refreshing at now.
// A nil updated means the image was never fetched.
func Stale(updated *time.Time, now time.Time) bool {
	if updated == nil {
		return true
	}
	return now.Sub(*updated) > MaxAge
}

type Nop struct{}

func (Nop) Refresh(context.Context, int, string) error { return nil }

// Logging records each delegation at info level and does nothing else.
type Logging struct {
	Logger *slog.Logger
}

func (l Logging) Refresh(ctx context.Context, restaurantID int, url string) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "image refresh requested", "restaurant_id", restaurantID, "url", url)
	return nil
}
