package utility

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextUserIDKey is the echo context key the auth middleware stores the token identity under.
const ContextUserIDKey = "user_id"

var (
	ErrMissingUserID = errors.New("user_id is required")
	ErrInvalidUserID = errors.New("user_id must be a positive integer")
	ErrUserMismatch  = errors.New("user_id does not match the authenticated user")
)

// GetRealIP is a helper function to get the user's real IP address
// It checks proxy headers first.
func GetRealIP(c echo.Context) string {
	// This header can be a list: "client, proxy1, proxy2"
	xForwardedFor := c.Request().Header.Get("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	xRealIP := c.Request().Header.Get("X-Real-IP")
	if xRealIP != "" {
		return xRealIP
	}

	return c.RealIP()
}

// GetUserIDFromContext returns the authenticated user id, if the request carried a token.
func GetUserIDFromContext(c echo.Context) (int64, bool) {
	userID, ok := c.Get(ContextUserIDKey).(int64)
	return userID, ok && userID > 0
}

// ResolveUserID combines the explicit user id of a request (0 when absent) with
// the authenticated identity. An explicit id that disagrees with the token is rejected.
func ResolveUserID(c echo.Context, explicit int64) (int64, error) {
	tokenID, authenticated := GetUserIDFromContext(c)

	switch {
	case explicit < 0:
		return 0, ErrInvalidUserID
	case explicit == 0 && authenticated:
		return tokenID, nil
	case explicit == 0:
		return 0, ErrMissingUserID
	case authenticated && explicit != tokenID:
		return 0, ErrUserMismatch
	default:
		return explicit, nil
	}
}

// QueryUserID resolves the user id from the "user_id" query parameter.
func QueryUserID(c echo.Context) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam("user_id"))
	if raw == "" {
		return ResolveUserID(c, 0)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return ResolveUserID(c, id)
}

// UserIDErrorStatus maps an identity error to its HTTP status.
func UserIDErrorStatus(err error) int {
	if errors.Is(err, ErrUserMismatch) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}
