package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const maxPageLimit = 500

type pageRange struct {
	offset int
	limit  int // 0 means no limit
}

// pageParams reads offset and limit query parameters.
func pageParams(w http.ResponseWriter, r *http.Request) (pageRange, bool) {
	var p pageRange
	var ok bool
	if p.offset, ok = intParam(w, r, "offset", 0); !ok {
		return p, false
	}
	if p.limit, ok = intParam(w, r, "limit", 0); !ok {
		return p, false
	}
	if p.limit > maxPageLimit {
		p.limit = maxPageLimit
	}
	return p, true
}

// intParam parses a non-negative integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		jsonError(w, fmt.Sprintf("%s must be a non-negative integer", name), http.StatusBadRequest)
		return 0, false
	}
	return n, true
}
