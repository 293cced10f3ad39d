package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

// Pagination carries the cursor request as bound from the query string.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor marks the last row of a page. CreatedAt is RFC3339Nano so the
// token stays comparable across drivers.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// ClampSize normalizes a requested page size into [1, MaxPageSize].
func ClampSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

func NewCursor(id string, createdAt time.Time) Cursor {
	return Cursor{ID: id, CreatedAt: createdAt.UTC().Format(time.RFC3339Nano)}
}

// Tokens are URL-safe base64 so they survive query strings unescaped.
func EncodeCursor(cursor Cursor) string {
	b, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Trim cuts an over-fetched page (size+1 rows) back to size and builds its
// page info from the last kept row.
func Trim[T any](rows []*T, size int, cursor func(*T) Cursor) ([]*T, *PageInfo) {
	size = ClampSize(size)
	if len(rows) <= size {
		return rows, &PageInfo{HasMore: false}
	}

	rows = rows[:size]
	last := rows[len(rows)-1]
	return rows, &PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(cursor(last)),
	}
}
