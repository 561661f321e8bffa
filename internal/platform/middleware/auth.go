package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"correio/pkg/requestcontext"
)

// JWTValidator defines the interface for validating admin bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	Subject string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated subject as the acting user for downstream services.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				unauthorized(w, r.Context(), logger, "missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w, r.Context(), logger, "invalid or expired token")
				return
			}
			ctx := requestcontext.WithActorID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, ctx context.Context, logger *slog.Logger, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + desc + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response", "error", err)
	}
}
