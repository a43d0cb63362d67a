package handler

import (
	"net/http"
	"strconv"

	"github.com/loqui/chat-server-go/internal/pagination"
)

// ParsePagination reads limit/offset/after/withCount from the query. The
// request is normalized later; out-of-range values fall back to defaults
// rather than erroring.
func ParsePagination(r *http.Request) pagination.Request {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	withCount, _ := strconv.ParseBool(q.Get("withCount"))

	return pagination.Request{
		Limit:     limit,
		Offset:    offset,
		After:     q.Get("after"),
		WithCount: withCount,
	}
}

// ParseSort reads sort/order from the query.
func ParseSort(r *http.Request) pagination.Sort {
	q := r.URL.Query()
	s := pagination.Sort{Field: q.Get("sort")}
	if q.Get("order") == "desc" {
		s.Direction = pagination.Desc
	}
	return s
}
