package api

import (
	"net/http"
	"strconv"
)

// parseLimit parses the page size from an HTTP request, falling back to
// the default when absent or out of range. Paging position itself is
// carried by the opaque cursor, never by an offset.
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	return limit
}
