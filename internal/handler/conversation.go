package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatswap/internal/model"
)

type ConversationService interface {
	StartOrGet(ctx context.Context, userID, otherUserID uint64, listingID *uint64) (*model.Conversation, error)
	Get(ctx context.Context, id, userID uint64) (*model.Conversation, error)
	List(ctx context.Context, userID uint64, archived *bool, limit, offset int) ([]model.Conversation, error)
	SetArchived(ctx context.Context, id, userID uint64, archived bool) error
	Complete(ctx context.Context, id, userID uint64) (*model.Conversation, error)
}

type MessageService interface {
	Send(ctx context.Context, conversationID, senderID uint64, text string) (*model.Message, error)
	List(ctx context.Context, conversationID, userID, beforeID uint64, limit int) ([]model.Message, error)
}

type ConversationHandler struct {
	Conversations ConversationService
	Messages      MessageService
}

func NewConversationHandler(convs ConversationService, msgs MessageService) *ConversationHandler {
	return &ConversationHandler{Conversations: convs, Messages: msgs}
}

type startReq struct {
	OtherUserID uint64  `json:"other_user_id"`
	ListingID   *uint64 `json:"listing_id"`
}

// Start handles POST /v1/conversations.  An existing conversation for
// the same pair and listing is returned instead of creating another.
func (h *ConversationHandler) Start(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req startReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.OtherUserID == 0 {
		return badRequest(c, "other_user_id required")
	}
	if req.ListingID != nil && *req.ListingID == 0 {
		req.ListingID = nil
	}
	conv, err := h.Conversations.StartOrGet(c.Request().Context(), uid, req.OtherUserID, req.ListingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// List handles GET /v1/conversations?archived=&limit=&offset=
func (h *ConversationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var archived *bool
	if v := c.QueryParam("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid archived")
		}
		archived = &b
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return badRequest(c, "invalid offset")
	}
	items, err := h.Conversations.List(c.Request().Context(), uid, archived, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ConversationHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	conv, err := h.Conversations.Get(c.Request().Context(), id, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

type archiveReq struct {
	Archived *bool `json:"archived"`
}

// Archive handles POST /v1/conversations/:id/archive.  The body is
// optional and defaults to archiving.
func (h *ConversationHandler) Archive(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	var req archiveReq
	_ = c.Bind(&req)
	archived := req.Archived == nil || *req.Archived
	if err := h.Conversations.SetArchived(c.Request().Context(), id, uid, archived); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "archived": archived})
}

func (h *ConversationHandler) Complete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	conv, err := h.Conversations.Complete(c.Request().Context(), id, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

type sendReq struct {
	Text string `json:"text"`
}

// SendMessage handles POST /v1/conversations/:id/messages.
func (h *ConversationHandler) SendMessage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	m, err := h.Messages.Send(c.Request().Context(), id, uid, req.Text)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListMessages handles GET /v1/conversations/:id/messages?before_id=&limit=
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	var before uint64
	if v := c.QueryParam("before_id"); v != "" {
		if before, err = strconv.ParseUint(v, 10, 64); err != nil {
			return badRequest(c, "invalid before_id")
		}
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	items, err := h.Messages.List(c.Request().Context(), id, uid, before, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
