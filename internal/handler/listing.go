package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/repository"
	"github.com/iliyamo/seatswap/internal/service"
)

// ListingService is what the listing endpoints need from the service
// layer.
type ListingService interface {
	Create(ctx context.Context, ownerID uint64, in service.ListingInput) (*model.Listing, error)
	Get(ctx context.Context, id uint64) (*model.Listing, error)
	Search(ctx context.Context, q repository.ListingQuery) ([]model.Listing, int64, error)
	Related(ctx context.Context, id uint64) ([]model.MatchResult, error)
	UpdateStatus(ctx context.Context, id, ownerID uint64, status model.ListingStatus) error
	Boost(ctx context.Context, id, ownerID uint64) (int64, error)
	Delete(ctx context.Context, id, ownerID uint64) error
	ExpirePast(ctx context.Context) (int64, error)
}

type ListingHandler struct {
	Listings ListingService
}

func NewListingHandler(s ListingService) *ListingHandler { return &ListingHandler{Listings: s} }

// Create handles POST /v1/listings.  Match notifications are produced in
// the background after the response.
func (h *ListingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Kind = model.ListingKind(strings.ToUpper(strings.TrimSpace(string(in.Kind))))
	l, err := h.Listings.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	l, err := h.Listings.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

// Search handles GET /v1/listings?team_id=&kind=&status=&from=&to=&page=&page_size=
func (h *ListingHandler) Search(c echo.Context) error {
	var q repository.ListingQuery
	if v := c.QueryParam("team_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid team_id")
		}
		q.TeamID = n
	}
	if v := c.QueryParam("owner_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid owner_id")
		}
		q.OwnerID = n
	}
	q.Kind = model.ListingKind(strings.ToUpper(c.QueryParam("kind")))
	q.Status = model.ListingStatus(strings.ToUpper(c.QueryParam("status")))
	for name, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		if v := c.QueryParam(name); v != "" {
			d, err := time.Parse("2006-01-02", v)
			if err != nil {
				return badRequest(c, "invalid "+name+" (YYYY-MM-DD)")
			}
			*dst = &d
		}
	}
	var ok bool
	if q.Page, ok = queryInt(c, "page", 1); !ok {
		return badRequest(c, "invalid page")
	}
	if q.PageSize, ok = queryInt(c, "page_size", 20); !ok {
		return badRequest(c, "invalid page_size")
	}

	items, total, err := h.Listings.Search(c.Request().Context(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      max(q.Page, 1),
		"page_size": q.PageSize,
	})
}

// Related handles GET /v1/listings/:id/related.
func (h *ListingHandler) Related(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	res, err := h.Listings.Related(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": res})
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *ListingHandler) UpdateStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	status := model.ListingStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err := h.Listings.UpdateStatus(c.Request().Context(), id, uid, status); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": status})
}

func (h *ListingHandler) Boost(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	balance, err := h.Listings.Boost(c.Request().Context(), id, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "boosted": true, "credits": balance})
}

func (h *ListingHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid listing id")
	}
	if err := h.Listings.Delete(c.Request().Context(), id, uid); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
