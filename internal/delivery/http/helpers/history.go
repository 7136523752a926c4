package helpers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"eventstream/internal/domain"
)

// ParseHistoryQuery reads limit and before from the query string. A missing limit uses
// the default; an out-of-range limit is clamped. before must be RFC3339 when present.
func ParseHistoryQuery(r *http.Request) (domain.HistoryQuery, error) {
	var q domain.HistoryQuery
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("limit must be an integer")
		}
		q.Limit = v
	}
	if s := r.URL.Query().Get("before"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return q, fmt.Errorf("before must be an RFC3339 timestamp")
		}
		t = t.UTC()
		q.Before = &t
	}
	return q.Normalize(), nil
}
