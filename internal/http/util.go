package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/target/console-api/internal/domain/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
// - defLimit: default limit when not specified
// - maxLimit: maximum allowed limit (values > maxLimit are clamped to maxLimit).
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	if maxLimit < 1 {
		maxLimit = 1
	}

	lim := parseIntQuery(r, "limit", defLimit)
	off := parseIntQuery(r, "offset", 0)
	if lim < 1 {
		lim = 1
	}
	if lim > maxLimit {
		lim = maxLimit
	}
	if off < 0 {
		off = 0
	}
	return lim, off
}

// parseJobListOptions reads ?status=&limit=&offset=. An unknown status is
// passed through for the service to reject.
func parseJobListOptions(r *http.Request) model.JobListOptions {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	opts := model.JobListOptions{Limit: limit, Offset: offset}
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		status := model.JobStatus(strings.ToLower(s))
		opts.Status = &status
	}
	return opts
}
