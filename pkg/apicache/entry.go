package apicache

import (
	"net/http"
	"strings"

	"github.com/pengqiangsheng/apicache/pkg/store"
)

// buildEntry captures a response for storage with blacklisted headers
// removed.
func buildEntry(status int, header http.Header, body []byte, blacklist []string) *store.Entry {
	return store.NewEntry(status, filterHeaders(header, blacklist), body)
}

// filterHeaders returns a copy of h without the blacklisted names.
// Names compare case-insensitively.
func filterHeaders(h http.Header, blacklist []string) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if blacklisted(name, blacklist) {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

func blacklisted(name string, blacklist []string) bool {
	for _, b := range blacklist {
		if strings.EqualFold(name, b) {
			return true
		}
	}
	return false
}
