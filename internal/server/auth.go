package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hivedesk/hivedesk/internal/logging"
)

// TokenService wraps JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a token service with the given signing secret
// and token lifetime.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Create issues a token for the given username.
func (t *TokenService) Create(username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns its subject.
func (t *TokenService) Parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", jwt.ErrTokenMalformed
	}
	return sub, nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks a password against its bcrypt hash.
func VerifyPassword(plain, hashed string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

type contextKey string

const userContextKey contextKey = "currentUser"

// CurrentUser extracts the authenticated user from the request, if any.
func CurrentUser(r *http.Request) *User {
	if v := r.Context().Value(userContextKey); v != nil {
		if u, ok := v.(*User); ok {
			return u
		}
	}
	return nil
}

// AuthMiddleware validates the auth header and attaches the user to the
// request context. Both "Token <t>" (the portal's legacy scheme) and
// "Bearer <t>" are accepted.
func AuthMiddleware(tokens *TokenService, store *Store) func(http.Handler) http.Handler {
	log := logging.Component("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r.Header.Get("Authorization"))
			if tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			sub, err := tokens.Parse(tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := store.UserByUsername(r.Context(), sub)
			if err != nil {
				log.Debug().Err(err).Str("sub", sub).Msg("token subject lookup failed")
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(header string) string {
	header = strings.TrimSpace(header)
	lower := strings.ToLower(header)
	for _, scheme := range []string{"token ", "bearer "} {
		if strings.HasPrefix(lower, scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}
