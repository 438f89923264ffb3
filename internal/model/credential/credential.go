package credential

import "time"

// RefreshBuffer is the safety window before ExpiresAt during which a cached
// credential is no longer handed out.
const RefreshBuffer = 5 * time.Minute

// Lifetime is the validity assumed for every freshly issued token. The
// issuer's own expiry is not inspected.
const Lifetime = time.Hour

// Credential is a bearer token together with its assumed expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Usable reports whether the credential may still be used at now.
func (c Credential) Usable(now time.Time) bool {
	return c.Token != "" && now.Add(RefreshBuffer).Before(c.ExpiresAt)
}
