package middleware

import (
	"context"
	"net/http"
	"strings"
)

// HeaderViewerKey carries the caller's wallet address. It is an identity
// claim used only to decide who may see private intent details.
const HeaderViewerKey = "X-Wallet-Address"

type viewerCtxKey struct{}

// Viewer stores the trimmed X-Wallet-Address header in the request context.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderViewerKey))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), key)))
	})
}

// WithViewer returns a copy of ctx carrying the viewer key.
func WithViewer(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, key)
}

// ViewerFromContext returns the viewer key, or "" for anonymous callers.
func ViewerFromContext(ctx context.Context) string {
	key, _ := ctx.Value(viewerCtxKey{}).(string)
	return key
}
