package pagination

import (
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

var (
	ErrInvalidCursor   = errors.New("pagination: invalid cursor")
	ErrUnsupportedSort = errors.New("pagination: unsupported sort field")
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort names the field to order by. Fields are validated against a
// per-entity whitelist before reaching a query.
type Sort struct {
	Field     string
	Direction Direction
}

func (s Sort) Validate(allowed []string) error {
	if s.Field == "" {
		return nil
	}
	for _, f := range allowed {
		if s.Field == f {
			return nil
		}
	}
	return ErrUnsupportedSort
}

// Request selects one page either by numeric offset or by an opaque After
// cursor tied to the sort order. When WithCount is false implementations
// must answer has-next with a one-extra-row probe instead of a count query.
type Request struct {
	Offset    int
	After     string
	Limit     int
	WithCount bool
}

func (r Request) Normalize() Request {
	if r.Limit <= 0 || r.Limit > MaxLimit {
		r.Limit = DefaultLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}

// Page is the envelope returned by every list operation.
type Page[T any] struct {
	Items      []T    `json:"items"`
	Total      *int64 `json:"total,omitempty"`
	HasNext    bool   `json:"hasNext"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// A cursor is the primary key of the last item already returned; the next
// page resumes strictly after that row in sort order.
func EncodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func DecodeCursor(s string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return "", ErrInvalidCursor
	}
	return string(raw), nil
}

// DecodeUUIDCursor decodes a cursor for repositories keyed by UUID.
func DecodeUUIDCursor(s string) (uuid.UUID, error) {
	raw, err := DecodeCursor(s)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidCursor
	}
	return id, nil
}
