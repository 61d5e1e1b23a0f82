package dbutil

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestParamSummary(t *testing.T) {
	var nilPtr *string
	label := "Poulet basquaise"
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "p=null"},
		{"nil pointer", nilPtr, "p=null"},
		{"pointer", &label, "p=len=16"},
		{"empty", "", "p=empty"},
		{"int", 42, "p=42"},
		{"bool", true, "p=true"},
		{"raw json", json.RawMessage(`{"a":1}`), "p=len=7"},
		{"nil raw json", json.RawMessage(nil), "p=null"},
		{"invalid text", pgtype.Text{}, "p=null"},
		{"date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "p=2024-03-01"},
		{"zero time", time.Time{}, "p=zero-time"},
		{"ids", []int{1, 2, 3}, "p=len=3"},
	}
	for _, tc := range cases {
		if got := ParamSummary("p", tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestErrWrap(t *testing.T) {
	if ErrWrap("op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	base := errors.New("boom")
	err := ErrWrap("menu.replace", base, ParamSummary("menu_id", 7), ParamSummary("digest", "abc"))
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error")
	}
	if !strings.Contains(err.Error(), "menu.replace: boom; menu_id=7,digest=len=3") {
		t.Fatalf("unexpected message: %s", err)
	}
}
