package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/service"
)

type CreditService interface {
	Balance(ctx context.Context, userID uint64) (int64, error)
	Purchase(ctx context.Context, userID uint64, amount int64) (int64, model.CreditTransaction, error)
	History(ctx context.Context, userID uint64, limit int) ([]model.CreditTransaction, error)
	Verify(ctx context.Context, userID uint64) (service.LedgerCheck, error)
}

type CreditHandler struct {
	Credits CreditService
}

func NewCreditHandler(s CreditService) *CreditHandler { return &CreditHandler{Credits: s} }

// Get handles GET /v1/credits: balance plus recent history.
func (h *CreditHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	balance, err := h.Credits.Balance(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return badRequest(c, "invalid limit")
	}
	history, err := h.Credits.History(ctx, uid, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": balance, "transactions": history})
}

type purchaseReq struct {
	Amount int64 `json:"amount"`
}

// Purchase handles POST /v1/credits/purchase.  Credits are internal
// points; no payment provider is involved.
func (h *CreditHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	balance, tx, err := h.Credits.Purchase(c.Request().Context(), uid, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"credits": balance, "transaction": tx})
}
