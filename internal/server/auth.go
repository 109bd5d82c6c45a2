package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const devTokenTTL = 12 * time.Hour

type AuthConfig struct {
	JWTSecret string
	// DevLogin enables POST /auth/dev/login.
	DevLogin bool
}

type Principal struct {
	ActorID string
	Source  string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.ActorID != "" {
		return p.ActorID, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{ActorID: claims.Subject, Source: "jwt"}, nil
}

func signDevToken(secret, actorID string, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := jwtClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   actorID,
		Issuer:    "pairwise-dev",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// isPublic reports whether a request under basePath needs no credentials.
// route may be a concrete path or an OpenAPI template.
func isPublic(basePath, method, route string) bool {
	rel := strings.Trim(strings.TrimPrefix(route, basePath), "/")
	segs := strings.Split(rel, "/")
	switch {
	case method == http.MethodGet && rel == "health":
		return true
	case method == http.MethodPost && rel == "auth/dev/login":
		return true
	case method == http.MethodPost && len(segs) == 3 && segs[0] == "groups" && segs[2] == "participants":
		return true
	case method == http.MethodPost && len(segs) == 5 && segs[0] == "groups" && segs[2] == "participants" && segs[4] == "leave":
		return true
	case method == http.MethodGet && len(segs) == 4 && segs[0] == "groups" && segs[2] == "rounds" && segs[3] == "latest":
		return true
	}
	return false
}

func newAuthMiddleware(basePath string, cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if strings.HasSuffix(req.URL.Path, "/openapi.json") || isPublic(basePath, req.Method, req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				logger.Debug("rejected bearer token", zap.Error(err))
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
