package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/model"
	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// LotHandler serves lot management (admin) and lot browsing (any
// authenticated role).  Every mutation commits its audit row in the
// same transaction as the change.
type LotHandler struct {
	LotRepo   *repository.LotRepo
	AuditRepo *repository.AuditRepo
}

// NewLotHandler constructs a LotHandler.  Both repositories must be
// non-nil.
func NewLotHandler(lotRepo *repository.LotRepo, auditRepo *repository.AuditRepo) *LotHandler {
	if lotRepo == nil || auditRepo == nil {
		panic("nil repository passed to NewLotHandler")
	}
	return &LotHandler{LotRepo: lotRepo, AuditRepo: auditRepo}
}

type lotCreateReq struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	TotalSpaces     uint32 `json:"total_spaces"`
	FeePerHourCents uint32 `json:"fee_per_hour_cents"`
}

// Create handles POST /v1/lots.  A new lot starts with every space
// available.  Returns 409 when the code is already taken.
func (h *LotHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req lotCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and name are required"})
	}
	if req.TotalSpaces == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_spaces must be positive"})
	}
	ctx := c.Request().Context()
	tx, err := h.LotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	lot := &model.ParkingLot{
		Code:            req.Code,
		Name:            req.Name,
		Location:        req.Location,
		TotalSpaces:     req.TotalSpaces,
		FeePerHourCents: req.FeePerHourCents,
	}
	if err := h.LotRepo.CreateTx(ctx, tx, lot); err != nil {
		if errors.Is(err, repository.ErrLotCodeExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "lot code already exists"})
		}
		return dbErr(c, err, "failed to create lot")
	}
	entry := &model.AuditLog{
		Action:       model.ActionLotCreated,
		ActingUserID: &userID,
		LotCode:      &lot.Code,
		Detail:       fmt.Sprintf("created lot %s with %d spaces", lot.Code, lot.TotalSpaces),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	return c.JSON(http.StatusCreated, toLotJSON(lot))
}

// List handles GET /v1/lots.  Returns one page of lots ordered by code.
func (h *LotHandler) List(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	items, totalPages, err := h.LotRepo.List(c.Request().Context(), page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list lots"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       toLotListJSON(items),
		"page":        page,
		"total_pages": totalPages,
	})
}

// ListAvailable handles GET /v1/lots/available.  Like List but limited
// to lots with at least one free space.
func (h *LotHandler) ListAvailable(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	items, totalPages, err := h.LotRepo.ListAvailable(c.Request().Context(), page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list lots"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       toLotListJSON(items),
		"page":        page,
		"total_pages": totalPages,
	})
}

// Get handles GET /v1/lots/:code.
func (h *LotHandler) Get(c echo.Context) error {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot code"})
	}
	lot, err := h.LotRepo.GetByCode(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toLotJSON(lot))
}

type lotUpdateReq struct {
	Name            *string `json:"name"`
	Location        *string `json:"location"`
	TotalSpaces     *uint32 `json:"total_spaces"`
	FeePerHourCents *uint32 `json:"fee_per_hour_cents"`
}

// Update handles PATCH /v1/lots/:code.  Capacity may shrink only down
// to the current occupancy; going below it returns 409.
func (h *LotHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot code"})
	}
	var req lotUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name must not be empty"})
	}
	if req.TotalSpaces != nil && *req.TotalSpaces == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_spaces must be positive"})
	}
	ctx := c.Request().Context()
	tx, err := h.LotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	lot, err := h.LotRepo.UpdateTx(ctx, tx, code, req.Name, req.Location, req.FeePerHourCents, req.TotalSpaces)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "total_spaces below current occupancy"})
		default:
			return dbErr(c, err, "failed to update lot")
		}
	}
	entry := &model.AuditLog{
		Action:       model.ActionLotUpdated,
		ActingUserID: &userID,
		LotCode:      &lot.Code,
		Detail:       fmt.Sprintf("updated lot %s", lot.Code),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	return c.JSON(http.StatusOK, toLotJSON(lot))
}

// Delete handles DELETE /v1/lots/:code.  Lots with parked cars cannot
// be deleted; close or move their sessions first.
func (h *LotHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot code"})
	}
	ctx := c.Request().Context()
	tx, err := h.LotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.LotRepo.DeleteTx(ctx, tx, code); err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "lot has open sessions"})
		case errors.Is(err, repository.ErrLotHasSessions):
			return c.JSON(http.StatusConflict, echo.Map{"error": "lot has recorded sessions"})
		default:
			return dbErr(c, err, "failed to delete lot")
		}
	}
	entry := &model.AuditLog{
		Action:       model.ActionLotDeleted,
		ActingUserID: &userID,
		LotCode:      &code,
		Detail:       fmt.Sprintf("deleted lot %s", code),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	return c.NoContent(http.StatusNoContent)
}
