package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminHandler exposes maintenance endpoints reserved for ADMIN.
type AdminHandler struct {
	Listings ListingService
	Credits  CreditService
}

func NewAdminHandler(l ListingService, cr CreditService) *AdminHandler {
	return &AdminHandler{Listings: l, Credits: cr}
}

// ExpireListings handles POST /v1/admin/listings/expire.
func (h *AdminHandler) ExpireListings(c echo.Context) error {
	n, err := h.Listings.ExpirePast(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// VerifyCredits handles GET /v1/admin/users/:id/credits/verify.
func (h *AdminHandler) VerifyCredits(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	check, err := h.Credits.Verify(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, check)
}
