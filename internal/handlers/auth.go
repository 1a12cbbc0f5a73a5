package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/havenlab/apiserver/internal/auth"
)

// SessionClaims are the custom claims carried in provider-issued session
// tokens. Subject is the provider user id.
type SessionClaims struct {
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	jwt.RegisteredClaims
}

// RequireSession parses the bearer token and injects the caller's Principal
// into the request context. Requests without a valid token are rejected.
func RequireSession(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			principal, err := parseSession(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability gates a route on an explicit capability decision.
// 401 when no caller identity was established, 403 when the capability is
// denied.
func RequireCapability(cap auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := principalFromContext(r.Context())
			if !principal.Authenticated() {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !auth.Authorize(principal, cap) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseSession(tokenString string, secret []byte) (auth.Principal, error) {
	claims := SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return auth.Principal{}, err
	}
	if !token.Valid {
		return auth.Principal{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return auth.Principal{}, errors.New("missing subject")
	}
	return auth.Principal{
		UserID:   claims.Subject,
		Role:     claims.Role,
		Approved: claims.Approved,
	}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
