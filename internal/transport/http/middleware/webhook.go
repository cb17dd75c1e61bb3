package middleware

import (
	"crypto/subtle"
	"net/http"
)

// WebhookSecretHeader carries the shared secret on call-service callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// RequireSecret rejects requests whose secret header does not match. An empty
// secret rejects everything.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid webhook secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
