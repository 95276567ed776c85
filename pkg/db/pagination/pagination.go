package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

// Pagination binds the cursor query parameters shared by the list
// endpoints.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Limit clamps the requested page size.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 || p.PageSize > 250 {
		return 50
	}
	return p.PageSize
}

// Cursor decodes the page token, or returns nil for the first page.
func (p Pagination) Cursor() (*Cursor, error) {
	if p.PageToken == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(p.PageToken)
	if err != nil {
		return nil, ErrInvalidPageToken
	}
	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// Cursor marks the last row of a page. Primary keys are snowflakes, so
// descending id order is descending creation order and the id alone is a
// total cursor.
type Cursor struct {
	ID string `json:"id"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func encodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(b)
}

// Trim cuts an over-fetched result (limit+1 rows) down to the page and
// reports whether another page follows.
func Trim[T any](items []T, limit int, cursorOf func(T) Cursor) ([]T, *PageInfo) {
	if len(items) <= limit {
		return items, &PageInfo{HasMore: false}
	}
	items = items[:limit]
	return items, &PageInfo{
		HasMore:       true,
		NextPageToken: encodeCursor(cursorOf(items[len(items)-1])),
	}
}
