package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ProfileCookie identifies a browser profile across reloads.
const ProfileCookie = "foodloop_profile"

const profileMaxAge = 365 * 24 * time.Hour

type profileKey struct{}

// Profile makes sure every request carries a client profile identifier,
// issuing a long-lived cookie when the client has none.
func Profile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(ProfileCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ProfileCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(profileMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithProfileID(r.Context(), id)))
	})
}

// WithProfileID stores id in ctx.
func WithProfileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, profileKey{}, id)
}

// ProfileID returns the profile identifier set by Profile.
func ProfileID(ctx context.Context) string {
	id, _ := ctx.Value(profileKey{}).(string)
	return id
}
