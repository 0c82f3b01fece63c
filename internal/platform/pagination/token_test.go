package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestTimeCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	token := EncodeTimeCursor(at, "rcpt-42")
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	gotAt, gotID, err := DecodeTimeCursor(token)
	if err != nil {
		t.Fatalf("DecodeTimeCursor returned error: %v", err)
	}
	if !gotAt.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, gotAt)
	}
	if gotID != "rcpt-42" {
		t.Fatalf("expected id rcpt-42, got %q", gotID)
	}
}

func TestDecodeTimeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "not-base64!!", "bm90LWpzb24"} {
		if _, _, err := DecodeTimeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("expected ErrInvalidPageToken for %q, got %v", token, err)
		}
	}
}

func TestDecodeTimeCursorRejectsIncomplete(t *testing.T) {
	token, err := EncodeToken(map[string]string{"id": "only-id"})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if _, _, err := DecodeTimeCursor(token); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestDecodeTokenIntoStruct(t *testing.T) {
	type cursor struct {
		Ref       string `json:"ref"`
		Available int64  `json:"available"`
	}

	token, err := EncodeToken(cursor{Ref: "part-9", Available: 3})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}

	var got cursor
	if err := DecodeToken(token, &got); err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if got.Ref != "part-9" || got.Available != 3 {
		t.Fatalf("unexpected cursor: %+v", got)
	}
}

func TestClampPageSize(t *testing.T) {
	cases := []struct {
		requested, def, max, want int
	}{
		{0, 50, 200, 50},
		{-3, 50, 200, 50},
		{25, 50, 200, 25},
		{500, 50, 200, 200},
		{10, 0, 200, 10},
		{0, 0, 200, 200},
		{0, 300, 200, 200},
	}
	for _, tc := range cases {
		if got := ClampPageSize(tc.requested, tc.def, tc.max); got != tc.want {
			t.Fatalf("ClampPageSize(%d, %d, %d) = %d, want %d", tc.requested, tc.def, tc.max, got, tc.want)
		}
	}
}
