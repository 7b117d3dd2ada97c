package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const approverContextKey = "approver"

// IssueToken mints an HS256 decision token for the named approver.
func IssueToken(signKey []byte, approver string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   approver,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(signKey)
}

// RequireToken authenticates requests with a Bearer decision token.
//
// The approver identity (the token subject) is stored on the request
// context so decision handlers can record who decided.
func RequireToken(signKey []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return echo.NewHTTPError(http.StatusUnauthorized, "decision token required")
			}

			claims := jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(
				raw, &claims,
				func(*jwt.Token) (any, error) { return signKey, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid decision token")
			}
			if claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "decision token has no subject")
			}

			c.Set(approverContextKey, claims.Subject)
			return next(c)
		}
	}
}

// Approver returns the authenticated approver identity, if any.
func Approver(c echo.Context) string {
	if s, ok := c.Get(approverContextKey).(string); ok {
		return s
	}
	return ""
}
