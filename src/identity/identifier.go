package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const CookieName = "user_identifier"

// Browsers cap cookie lifetime well below this anyway; effectively "forever".
const CookieMaxAge = 10 * 365 * 24 * time.Hour

const maxIdentifierLength = 128

// A random token for a browser that has never identified itself. It is not
// tied to any account and the server never rotates it.
func NewIdentifier() string {
	return uuid.NewString()
}

func NewCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
		// The browser client reads this cookie directly.
		HttpOnly: false,
	}
}

// The identifier the client sent, or "" if it sent none we can use.
func FromRequest(req *http.Request) string {
	cookie, err := req.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return Normalize(cookie.Value)
}

func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > maxIdentifierLength {
		return ""
	}
	return value
}
