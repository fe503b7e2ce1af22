package apicache

import (
	"net/http"
	"slices"
)

// ShouldCache reports whether a response with status may be cached. The
// miss path evaluates it once and uses the result for both the
// cache-control header and the decision to store.
func ShouldCache(r *http.Request, status int, opts Options) bool {
	if opts.Toggle != nil && !opts.Toggle(r, status) {
		return false
	}

	codes := opts.StatusCodes
	if len(codes.Exclude) > 0 && slices.Contains(codes.Exclude, status) {
		return false
	}
	if len(codes.Include) > 0 && !slices.Contains(codes.Include, status) {
		return false
	}
	return true
}
