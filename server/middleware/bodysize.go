package middleware

import (
	"net/http"

	"github.com/kbukum/diarizer/util"
)

const defaultMaxBodySize = 64 * 1024

// BodySizeLimit returns middleware that restricts the request body to the given
// size string (e.g. "64KB", "1MB").
func BodySizeLimit(maxSize string) Middleware {
	size := util.ParseSize(maxSize, defaultMaxBodySize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
