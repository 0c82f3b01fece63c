// Package pagination provides the cursor token codec shared by the
// Firestore-backed list queries.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPageToken signals a token that could not be decoded. Callers map
// it to an invalid-argument response.
var ErrInvalidPageToken = errors.New("pagination: invalid page token")

// EncodeToken serialises the payload into a base64 URL-safe page token.
func EncodeToken(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a token produced by EncodeToken into the payload.
func DecodeToken(token string, payload any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidPageToken)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if err := json.Unmarshal(decoded, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return nil
}

type timeCursor struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// EncodeTimeCursor builds the token for queries ordered by a timestamp with
// the document ID as tie breaker.
func EncodeTimeCursor(at time.Time, id string) string {
	token, err := EncodeToken(timeCursor{At: at.UTC(), ID: id})
	if err != nil {
		return ""
	}
	return token
}

// DecodeTimeCursor reverses EncodeTimeCursor.
func DecodeTimeCursor(token string) (time.Time, string, error) {
	var cursor timeCursor
	if err := DecodeToken(token, &cursor); err != nil {
		return time.Time{}, "", err
	}
	if cursor.At.IsZero() || strings.TrimSpace(cursor.ID) == "" {
		return time.Time{}, "", fmt.Errorf("%w: incomplete cursor", ErrInvalidPageToken)
	}
	return cursor.At, cursor.ID, nil
}

// ClampPageSize normalises a requested page size against the given default
// and ceiling.
func ClampPageSize(requested, def, max int) int {
	if max <= 0 {
		max = 100
	}
	if def <= 0 || def > max {
		def = max
	}
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}
