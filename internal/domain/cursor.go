package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned when a cursor string cannot be decoded
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a position in the (created_at, id) message order
type Cursor struct {
	CreatedAt time.Time `json:"-"`
	ID        uint64    `json:"id"`
}

type cursorPayload struct {
	Timestamp int64  `json:"ts"`
	ID        uint64 `json:"id"`
}

// IsZero reports whether the cursor points nowhere
func (c Cursor) IsZero() bool {
	return c.ID == 0 && c.CreatedAt.IsZero()
}

// Before reports whether c sorts strictly before other (older)
func (c Cursor) Before(other Cursor) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// Encode returns an opaque URL-safe token
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	data, _ := json.Marshal(cursorPayload{Timestamp: c.CreatedAt.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by Cursor.Encode. Empty input yields a zero cursor.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: time.Unix(0, p.Timestamp).UTC(), ID: p.ID}, nil
}
