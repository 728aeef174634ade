package auth

import (
	"net/http"
	"strings"
	"time"

	"vidshare/internal/domain/models"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookiePolicy controls the attributes of the token cookies.
type CookiePolicy struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ParseSameSite maps a config value to http.SameSite. Unknown values fall
// back to Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (p CookiePolicy) set(w http.ResponseWriter, pair models.TokenPair) {
	p.write(w, accessCookie, pair.AccessToken, p.AccessTTL)
	p.write(w, refreshCookie, pair.RefreshToken, p.RefreshTTL)
}

func (p CookiePolicy) clear(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   p.Secure,
			SameSite: p.SameSite,
		})
	}
}

func (p CookiePolicy) write(w http.ResponseWriter, name, value string, ttl time.Duration) {
	if value == "" {
		return
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
	if ttl > 0 {
		cookie.Expires = time.Now().Add(ttl).UTC()
		cookie.MaxAge = int(ttl.Seconds())
	}

	http.SetCookie(w, cookie)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
