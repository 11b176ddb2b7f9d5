package chat

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const sessionCookie = "solace_session"

// signSession produces the HMAC tag binding a session id to this deployment's
// session secret.
func signSession(secret, sessionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// setSessionCookie issues the signed session cookie.
func setSessionCookie(w http.ResponseWriter, secret, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID + "." + signSession(secret, sessionID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionFromCookie extracts and verifies the session id from the cookie, if
// present and validly signed.
func sessionFromCookie(r *http.Request, secret string) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}

	id, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(signSession(secret, id))) {
		return "", false
	}
	return id, true
}
