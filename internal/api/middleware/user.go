package middleware

import (
	"net/http"
	"strings"

	"github.com/vibeone/assistant/internal/identity"
)

// UserHeader names the header the frontends send the acting user in.
const UserHeader = "X-User-Id"

// UserExtractor installs a request-scoped identity from the X-User-Id
// header. Requests without the header pass through unscoped; handlers
// that need an identity reject them. The identity lives only on the
// request context, so concurrent requests cannot observe each other's
// value.
func UserExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := identity.WithUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
