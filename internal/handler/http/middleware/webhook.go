package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/handler/http/response"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret guards device push endpoints with a shared secret. An empty
// secret disables the endpoints entirely.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.HandleError(w, punch.ErrWebhookUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
