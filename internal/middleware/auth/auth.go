// Package auth resolves the caller of every API request from a Bearer JWT
// and maps it to a local user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/services"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Claims are the identity claims issued by the sign-in provider.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// Resolver maps a verified identity to a local user.
type Resolver interface {
	EnsureUser(ctx context.Context, id services.Identity) (core.User, error)
}

type Middleware struct {
	secret   []byte
	users    Resolver
	onReject func(http.ResponseWriter, *http.Request, error)
	logger   *log.Logger
}

// NewMiddleware verifies HS256 tokens signed with secret. onReject writes the
// response for requests without a resolved identity: errors matching
// core.ErrUnauthorized are the caller's fault, anything else is ours. A nil
// onReject uses http.Error with 401 or 503.
func NewMiddleware(secret string, users Resolver, onReject func(http.ResponseWriter, *http.Request, error)) *Middleware {
	if onReject == nil {
		onReject = func(w http.ResponseWriter, _ *http.Request, err error) {
			if errors.Is(err, core.ErrUnauthorized) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			http.Error(w, "could not resolve user", http.StatusServiceUnavailable)
		}
	}
	return &Middleware{
		secret:   []byte(secret),
		users:    users,
		onReject: onReject,
		logger:   log.ForComponent(log.ComponentAuth),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.parse(r.Header.Get("Authorization"))
		if err != nil {
			m.logger.WarnContext(r.Context(), "Rejected request", log.FieldPath, r.URL.Path, log.FieldError, err)
			m.onReject(w, r, err)
			return
		}

		user, err := m.users.EnsureUser(r.Context(), services.Identity{
			Subject:  claims.Subject,
			Email:    claims.Email,
			Name:     claims.Name,
			ImageURL: claims.Picture,
		})
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) {
				m.logger.WarnContext(r.Context(), "Rejected identity", "subject", claims.Subject, log.FieldError, err)
			} else {
				m.logger.ErrorContext(r.Context(), "Resolve user failed", "subject", claims.Subject, log.FieldError, err)
			}
			m.onReject(w, r, err)
			return
		}

		ctx := WithUserID(r.Context(), user.ID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) parse(header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", core.ErrUnauthorized)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", core.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", core.ErrUnauthorized)
	}
	// users are keyed by email as well; reports and alerts need it
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token has no email", core.ErrUnauthorized)
	}
	return claims, nil
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "" outside an authenticated
// request.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
