package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"devotion-go/internal/auth"
	"devotion-go/internal/config"
	"devotion-go/internal/logger"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// UserIDKey is the context key holding the authenticated user's id.
const UserIDKey contextKey = "userID"

// AuthMiddleware validates the bearer JWT and stores the user id in the
// request context. Browsers cannot set headers on websocket upgrades, so a
// "token" query parameter is accepted as well.
func AuthMiddleware(next http.Handler, authCfg config.AuthConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, "missing or malformed authorization token", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(tokenString, authCfg.JWTSecretKey)
		if err != nil {
			logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected token")
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		t := r.URL.Query().Get("token")
		return t, t != ""
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
		return "", false
	}
	return headerParts[1], true
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserIDFromContext returns the user id stored by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
