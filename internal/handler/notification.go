package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatswap/internal/model"
)

type NotificationService interface {
	List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID uint64) (int64, error)
	MarkRead(ctx context.Context, id, userID uint64) error
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
}

type NotificationHandler struct {
	Notifications NotificationService
}

func NewNotificationHandler(s NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: s}
}

// List handles GET /v1/notifications?unread=true&limit=20
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	unread := false
	if v := c.QueryParam("unread"); v != "" {
		if unread, err = strconv.ParseBool(v); err != nil {
			return badRequest(c, "invalid unread")
		}
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	items, err := h.Notifications.List(c.Request().Context(), uid, unread, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	n, err := h.Notifications.UnreadCount(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// MarkRead always answers 204 for a well-formed id; ids that belong to
// someone else simply change nothing.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	if err := h.Notifications.MarkRead(c.Request().Context(), id, uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	n, err := h.Notifications.MarkAllRead(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
