package errors

import "net/http"

// RecoveryMiddleware turns a panic below it into the standard 500
// problem document. The API group carries its own recoverer; this one
// guards routes mounted outside the group, such as the WebSocket
// upgrade endpoint.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
