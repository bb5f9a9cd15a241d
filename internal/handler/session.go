package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/billing"
	"github.com/iliyamo/parking-lot-service/internal/model"
	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// SessionHandler serves ticket lookups, open-session listings, per-plate
// history and the administrative correction endpoints.  Corrections
// re-derive lot capacity whenever they move a session between lots or
// flip it between open and closed, so the availability counters stay
// consistent with the set of open sessions no matter what an admin
// rewrites.
type SessionHandler struct {
	SessionRepo *repository.SessionRepo
	LotRepo     *repository.LotRepo
	AuditRepo   *repository.AuditRepo
}

// NewSessionHandler constructs a SessionHandler.  All repositories must
// be non-nil.
func NewSessionHandler(sessionRepo *repository.SessionRepo, lotRepo *repository.LotRepo, auditRepo *repository.AuditRepo) *SessionHandler {
	if sessionRepo == nil || lotRepo == nil || auditRepo == nil {
		panic("nil repository passed to NewSessionHandler")
	}
	return &SessionHandler{SessionRepo: sessionRepo, LotRepo: lotRepo, AuditRepo: auditRepo}
}

// ListOpen handles GET /v1/sessions/open.  Returns one page of open
// sessions, newest first, optionally filtered to a single lot with
// ?lot_code=CODE.
func (h *SessionHandler) ListOpen(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	items, totalPages, err := h.SessionRepo.ListOpen(c.Request().Context(), c.QueryParam("lot_code"), page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list sessions"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       toSessionListJSON(items),
		"page":        page,
		"total_pages": totalPages,
	})
}

// History handles GET /v1/sessions/history/:plate.  Returns one page of
// the plate's sessions, open and closed, newest entries first.
func (h *SessionHandler) History(c echo.Context) error {
	plate := normalizePlate(c.Param("plate"))
	if plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plate"})
	}
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	items, totalPages, err := h.SessionRepo.HistoryByPlate(c.Request().Context(), plate, page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load history"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       toSessionListJSON(items),
		"page":        page,
		"total_pages": totalPages,
	})
}

// GetTicket handles GET /v1/tickets/:code.  Looks a session up by its
// ticket code.
func (h *SessionHandler) GetTicket(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket code"})
	}
	sess, err := h.SessionRepo.GetByTicketCode(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toSessionJSON(sess))
}

type sessionUpdateReq struct {
	PlateNumber  *string    `json:"plate_number"`
	LotCode      *string    `json:"lot_code"`
	EntryTime    *time.Time `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time"`
	HoursBilled  *uint32    `json:"hours_billed"`
	ChargedCents *uint64    `json:"charged_cents"`
	Reopen       bool       `json:"reopen"`
}

// Update handles PATCH /v1/sessions/:code, the admin correction
// endpoint.  Any subset of fields may be supplied; "reopen": true
// clears the exit and zeroes the bill.  Moving a session between lots
// or flipping it open/closed adjusts the affected lots' availability in
// the same transaction.  When the exit or entry time of a closed
// session changes the bill is recomputed at the lot's current rate
// unless an explicit override is supplied.
func (h *SessionHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket code"})
	}
	var req sessionUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Reopen && req.ExitTime != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reopen conflicts with exit_time"})
	}
	if req.PlateNumber != nil && normalizePlate(*req.PlateNumber) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate_number must not be empty"})
	}
	ctx := c.Request().Context()
	tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	sess, err := h.SessionRepo.GetByTicketCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return dbErr(c, err, "database error")
	}
	beforeOpen := sess.Open()
	beforeLot := sess.LotCode

	if req.PlateNumber != nil {
		sess.PlateNumber = normalizePlate(*req.PlateNumber)
	}
	if req.LotCode != nil {
		sess.LotCode = *req.LotCode
	}
	timesChanged := false
	if req.EntryTime != nil {
		sess.EntryTime = req.EntryTime.UTC()
		timesChanged = true
	}
	if req.ExitTime != nil {
		t := req.ExitTime.UTC()
		sess.ExitTime = &t
		timesChanged = true
	}
	if req.Reopen {
		sess.ExitTime = nil
	}
	if sess.ExitTime != nil && sess.ExitTime.Before(sess.EntryTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "exit_time before entry_time"})
	}
	afterOpen := sess.Open()
	lotChanged := sess.LotCode != beforeLot

	// Rebalance capacity: a session leaving a lot (by closing or by
	// moving away) frees a space there, and an open session arriving at
	// a lot (by reopening or by moving in) consumes one.
	if beforeOpen && (!afterOpen || lotChanged) {
		if err := h.LotRepo.ReleaseSpaceTx(ctx, tx, beforeLot); err != nil {
			return dbErr(c, err, "failed to release space")
		}
	}
	if afterOpen && (!beforeOpen || lotChanged) {
		if _, err := h.LotRepo.ReserveSpaceTx(ctx, tx, sess.LotCode); err != nil {
			switch {
			case errors.Is(err, repository.ErrLotNotFound):
				return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
			case errors.Is(err, repository.ErrCapacityExhausted):
				return c.JSON(http.StatusConflict, echo.Map{"error": "lot is full"})
			default:
				return dbErr(c, err, "failed to reserve space")
			}
		}
	} else if lotChanged {
		// Closed session moved between lots: no capacity change, but the
		// target lot must still exist.
		if _, err := h.LotRepo.GetByCodeForUpdateTx(ctx, tx, sess.LotCode); err != nil {
			if errors.Is(err, repository.ErrLotNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
			}
			return dbErr(c, err, "database error")
		}
	}

	// Rebill.  An open session carries no charge; a closed one keeps an
	// explicit override verbatim, otherwise the bill follows the
	// corrected times at the lot's current rate.
	if afterOpen {
		sess.HoursBilled = 0
		sess.ChargedCents = 0
	} else {
		switch {
		case req.HoursBilled != nil || req.ChargedCents != nil:
			if req.HoursBilled != nil {
				sess.HoursBilled = *req.HoursBilled
			}
			if req.ChargedCents != nil {
				sess.ChargedCents = *req.ChargedCents
			}
		case timesChanged || lotChanged:
			lot, err := h.LotRepo.GetByCodeForUpdateTx(ctx, tx, sess.LotCode)
			if err != nil {
				return dbErr(c, err, "database error")
			}
			sess.HoursBilled = billing.BilledHours(sess.EntryTime, *sess.ExitTime)
			sess.ChargedCents = billing.ChargeCents(sess.HoursBilled, lot.FeePerHourCents)
		}
	}

	if err := h.SessionRepo.UpdateTx(ctx, tx, sess); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyOpen) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate already has an open session"})
		}
		return dbErr(c, err, "failed to update session")
	}
	entry := &model.AuditLog{
		Action:       model.ActionSessionUpdated,
		ActingUserID: &userID,
		TicketCode:   &sess.TicketCode,
		LotCode:      &sess.LotCode,
		Detail:       fmt.Sprintf("admin corrected session %s", sess.TicketCode),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	return c.JSON(http.StatusOK, toSessionJSON(sess))
}

// Delete handles DELETE /v1/sessions/:code.  Removing an open session
// returns its space to the lot so the availability counter never leaks.
func (h *SessionHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket code"})
	}
	ctx := c.Request().Context()
	tx, err := h.SessionRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	sess, err := h.SessionRepo.GetByTicketCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		}
		return dbErr(c, err, "database error")
	}
	if sess.Open() {
		if err := h.LotRepo.ReleaseSpaceTx(ctx, tx, sess.LotCode); err != nil {
			return dbErr(c, err, "failed to release space")
		}
	}
	if err := h.SessionRepo.DeleteTx(ctx, tx, sess.ID); err != nil {
		return dbErr(c, err, "failed to delete session")
	}
	entry := &model.AuditLog{
		Action:       model.ActionSessionDeleted,
		ActingUserID: &userID,
		TicketCode:   &sess.TicketCode,
		LotCode:      &sess.LotCode,
		Detail:       fmt.Sprintf("admin deleted session %s for plate %s", sess.TicketCode, sess.PlateNumber),
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
