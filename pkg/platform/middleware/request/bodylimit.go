package request

import (
	"net/http"
)

// DefaultMaxBodyBytes is enough for a query envelope with room to spare.
const DefaultMaxBodyBytes int64 = 4 << 10

// BodyLimit caps request bodies with http.MaxBytesReader. Reads past the limit fail,
// which the JSON decoder reports as a bad request.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
