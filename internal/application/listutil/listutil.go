package listutil

import (
	"net/url"
	"strconv"
)

// ParseLimit reads the "limit" query value.
// PRE: 0 < def <= upper
// POST: Returns def when limit is missing, malformed, or outside 1..upper
func ParseLimit(q url.Values, def, upper int) int {
	n, err := strconv.Atoi(q.Get("limit"))
	if err != nil || n < 1 || n > upper {
		return def
	}
	return n
}

// OptionalString returns a pointer to the query value, or nil when it is empty.
func OptionalString(q url.Values, key string) *string {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	return &v
}
