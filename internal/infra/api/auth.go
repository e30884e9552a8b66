package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"contentops-credits/internal/infra/logging"
)

type userIDKey struct{}

// UserID returns the authenticated user id resolved by UserAuth.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(logging.WithUserID(ctx, id), userIDKey{}, id)
}

// UserAuth resolves the calling user from the externally issued session
// token. Session management itself lives outside this service: we only
// verify the HMAC signature and take the subject claim. In dev mode an
// X-User-Id header may stand in for a token.
func UserAuth(secret string, dev bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dev {
				if id := r.Header.Get("X-User-Id"); id != "" {
					next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), id)))
					return
				}
			}

			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid || claims.Subject == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), claims.Subject)))
		})
	}
}

// KeyAuth provides simple Bearer token authentication for the admin catalog
// API and the internal webhook endpoint.
func KeyAuth(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
