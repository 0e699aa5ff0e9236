package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/pkg/logger"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorFromContext returns the authenticated profile id, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorContextKey).(string)
	return id, ok && id != ""
}

// WithActor returns a copy of ctx carrying the profile id.
func WithActor(ctx context.Context, profileID string) context.Context {
	return context.WithValue(ctx, actorContextKey, profileID)
}

// IssueToken signs an HS256 token whose subject is profileID.
func IssueToken(secret []byte, profileID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  profileID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// authenticate resolves the bearer token into the acting profile id.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "api.authenticate"
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.fail(w, r, errs.WrapKind(op, errs.ErrUnauthenticated, ErrMissingToken))
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || claims.Subject == "" {
			s.log.Debug(r.Context(), "rejected token", logger.Error(err))
			s.fail(w, r, errs.WrapKind(op, errs.ErrUnauthenticated, ErrInvalidToken))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Subject)))
	})
}
