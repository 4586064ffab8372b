package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"VibeHealth_V0.1/internal/utility"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const AccessTokenDuration = 24 * time.Hour

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Config holds the HS256 secret and the expected issuer. An empty Secret disables auth.
type Config struct {
	Secret string
	Issuer string
}

// Enabled reports whether bearer tokens are required.
func (c Config) Enabled() bool {
	return c.Secret != ""
}

// ParseToken validates tokenString and returns the numeric user id in its subject.
func ParseToken(tokenString string, cfg Config) (int64, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}

// GenerateAccessToken signs a token for userID.
func GenerateAccessToken(userID int64, cfg Config) (string, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// JwtAuthMiddleware requires a valid bearer token when cfg is enabled and stores
// the token's user id in the echo context. It is a no-op otherwise.
func JwtAuthMiddleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !cfg.Enabled() {
			return next
		}
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": ErrMissingToken.Error()})
			}

			userID, err := ParseToken(strings.TrimSpace(authHeader[len("Bearer "):]), cfg)
			if err != nil {
				log.Warn().Err(err).Msg("Token validation error")
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": ErrInvalidToken.Error()})
			}

			c.Set(utility.ContextUserIDKey, userID)
			return next(c)
		}
	}
}
