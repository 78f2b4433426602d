package middleware

import (
	"context"
	"net/http"
)

// HeaderBrowserID carries the caller's browser id to the backend.
const HeaderBrowserID = "X-Browser-ID"

type browserIDKey struct{}

// BrowserID records the X-Browser-ID request header, if any, in the
// request context.
func BrowserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderBrowserID); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), browserIDKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

// GetBrowserID returns the browser id stored by BrowserID.
func GetBrowserID(ctx context.Context) string {
	id, _ := ctx.Value(browserIDKey{}).(string)
	return id
}
