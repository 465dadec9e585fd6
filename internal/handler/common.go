package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatswap/internal/middleware"
	"github.com/iliyamo/seatswap/internal/service"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated caller set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errNoUser
	}
	return id, nil
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt reads an optional integer query parameter; ok is false only
// for a present but malformed value.
func queryInt(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// writeError maps the service error taxonomy onto HTTP.  Only
// unexpected errors are logged.
func writeError(c echo.Context, err error) error {
	var pr *service.PaymentRequiredError
	switch {
	case errors.As(err, &pr):
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error":            "insufficient credits",
			"credits_required": pr.CreditsRequired,
			"current_credits":  pr.CurrentCredits,
		})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		return unauthorized(c)
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
