package middleware

import "net/http"

// KeyQueryParam is the query parameter carrying the rolling access key.
const KeyQueryParam = "key"

// KeyChecker decides whether a presented key is currently acceptable.
type KeyChecker interface {
	Check(key string) bool
}

// KeyGuard admits requests whose key query parameter passes checker.
// Rejected requests go to reject and never reach next.
func KeyGuard(checker KeyChecker, reject http.Handler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.Check(r.URL.Query().Get(KeyQueryParam)) {
				reject.ServeHTTP(w, r)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
