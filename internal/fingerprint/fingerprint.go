// Package fingerprint computes content digests of upstream menus.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/flarebyte/crous-sync/internal/crous"
)

// Canonical returns the key-sorted JSON encoding of the menu content: its
// date and, in upstream order, meals, categories and dish labels. The menu id
// is not part of it.
func Canonical(m crous.Menu) ([]byte, error) {
	meals := make([]any, 0, len(m.Meals))
	for _, meal := range m.Meals {
		cats := make([]any, 0, len(meal.Categories))
		for _, cat := range meal.Categories {
			dishes := make([]string, 0, len(cat.Dishes))
			for _, d := range cat.Dishes {
				dishes = append(dishes, d.Name)
			}
			cats = append(cats, map[string]any{
				"name":   cat.Name,
				"dishes": dishes,
			})
		}
		meals = append(meals, map[string]any{
			"name":       meal.Name,
			"categories": cats,
		})
	}
	return json.Marshal(map[string]any{
		"date":  canonicalDate(m),
		"meals": meals,
	})
}

// Menu returns the lower-case hex SHA-256 of Canonical(m).
func Menu(m crous.Menu) (string, error) {
	b, err := Canonical(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalDate(m crous.Menu) string {
	if d, err := m.Day(); err == nil {
		return d.Format(time.DateOnly)
	}
	return m.Date
}
