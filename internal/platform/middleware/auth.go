package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"medvault/pkg/requestcontext"
)

// OwnerVerifier validates a bearer token and returns the owner subject.
type OwnerVerifier interface {
	Verify(token string) (string, error)
}

// HMACVerifier verifies HS256 tokens signed with a shared key.
type HMACVerifier struct {
	key []byte
}

func NewHMACVerifier(key string) *HMACVerifier {
	return &HMACVerifier{key: []byte(key)}
}

func (v *HMACVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

// RequireOwner gates owner-facing mutations behind bearer-token auth and
// stashes the owner subject in the request context.
func RequireOwner(verifier OwnerVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			subject, err := verifier.Verify(raw)
			if err != nil || subject == "" {
				logger.WarnContext(r.Context(), "owner token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := requestcontext.WithOwner(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
