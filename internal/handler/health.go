package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health reports liveness and whether the database and Redis answer.
// Redis is optional, so only a database failure turns the check red.
type Health struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (h *Health) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"status": "ok", "db": "skipped", "redis": "disabled"}
	if h.DB != nil {
		body["db"] = "ok"
		if err := h.DB.PingContext(ctx); err != nil {
			body["db"], body["status"] = "down", "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		body["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = "down"
		}
	}
	return c.JSON(status, body)
}
