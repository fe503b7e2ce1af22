package apicache

import "net/http"

// AppendKeySeparator joins the request part of a key and the AppendKey
// discriminator.
const AppendKeySeparator = "$$appendKey="

// DeriveKey builds the cache key for r.
// Format: path[?rawquery][$$appendKey=discriminator]
//
// Example:
//
//	/api/users?page=2$$appendKey=GET
func DeriveKey(r *http.Request, opts Options) string {
	key := r.URL.Path
	if !opts.StripQuery && r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	if opts.AppendKey != nil {
		key += AppendKeySeparator + opts.AppendKey(r)
	}
	return key
}
