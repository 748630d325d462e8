package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims are issued by the identity service; this service only verifies them.
// The subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

var (
	errMissingToken = errors.New("authorization header required")
	errBadSubject   = errors.New("token subject is not a user id")
)

// Authenticate verifies an HS256 bearer token and stores the caller in the
// request context.
func Authenticate(secret []byte, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := parseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				log.Warn("Unauthorized request",
					logger.StringField("path", r.URL.Path),
					logger.ErrorField("error", err))
				writeError(w, http.StatusUnauthorized, "Not authorized, invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Not authorized")
				return
			}
			if !p.IsAdmin() {
				log.Warn("Admin access denied",
					logger.UUIDField("user_id", p.UserID),
					logger.StringField("path", r.URL.Path))
				writeError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseBearer(header string, secret []byte) (Principal, error) {
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return Principal{}, errMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, errBadSubject
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Principal{UserID: userID, Role: role}, nil
}
