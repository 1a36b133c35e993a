package store

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// exhaustedToken is the wire form of an exhausted cursor.
const exhaustedToken = "-"

// MarshalText encodes the cursor as an opaque URL-safe token. Consumers must
// not interpret the token's contents; its only valid uses are equality and
// round-tripping back through UnmarshalText.
func (c *Cursor) MarshalText() ([]byte, error) {
	if c.Exhausted() {
		return []byte(exhaustedToken), nil
	}
	raw := c.createdAt.UTC().Format(time.RFC3339Nano) + "|" + c.id
	return []byte(base64.RawURLEncoding.EncodeToString([]byte(raw))), nil
}

// UnmarshalText decodes a token produced by MarshalText.
func (c *Cursor) UnmarshalText(text []byte) error {
	if string(text) == exhaustedToken {
		*c = Cursor{exhausted: true}
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid cursor token: %w", err)
	}
	pos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return fmt.Errorf("invalid cursor token")
	}
	at, err := time.Parse(time.RFC3339Nano, pos)
	if err != nil {
		return fmt.Errorf("invalid cursor token: %w", err)
	}
	*c = Cursor{createdAt: at, id: id}
	return nil
}

// ParseCursor decodes a cursor token. An empty token is not a valid cursor.
func ParseCursor(token string) (*Cursor, error) {
	var c Cursor
	if err := c.UnmarshalText([]byte(token)); err != nil {
		return nil, err
	}
	return &c, nil
}
