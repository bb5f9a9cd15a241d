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
	"github.com/iliyamo/parking-lot-service/internal/utils"
)

// CarHandler implements the attendant-facing entry and exit endpoints.
// Both operations run inside a single transaction that touches the
// session row, the lot's availability counter and the audit log, so a
// ticket is only ever issued for a space that was actually reserved and
// a charge is only ever recorded for a session that actually closed.
// Row locks are always taken plate first, then lot, to keep concurrent
// entries and exits from deadlocking each other.
type CarHandler struct {
	SessionRepo *repository.SessionRepo // session rows and the open-plate lock
	LotRepo     *repository.LotRepo     // capacity ledger
	AuditRepo   *repository.AuditRepo   // append-only audit trail
	Strict      bool                    // reject entry while the plate is already parked
}

// NewCarHandler constructs a CarHandler.  All repositories must be
// non-nil.
func NewCarHandler(sessionRepo *repository.SessionRepo, lotRepo *repository.LotRepo, auditRepo *repository.AuditRepo, strict bool) *CarHandler {
	if sessionRepo == nil || lotRepo == nil || auditRepo == nil {
		panic("nil repository passed to NewCarHandler")
	}
	return &CarHandler{SessionRepo: sessionRepo, LotRepo: lotRepo, AuditRepo: auditRepo, Strict: strict}
}

// ticket code collisions are astronomically unlikely but cheap to retry.
const maxTicketAttempts = 3

// RegisterEntry handles POST /v1/cars/entry.  The body names a plate
// and a lot; on success one space is consumed from the lot and a new
// open session is created with a freshly generated ticket code.
// Returns 404 when the lot does not exist, 409 when the lot is full or
// the plate already has an open session.
func (h *CarHandler) RegisterEntry(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		PlateNumber string `json:"plate_number"`
		LotCode     string `json:"lot_code"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	plate := normalizePlate(body.PlateNumber)
	if plate == "" || len(plate) > 16 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate_number is required"})
	}
	if body.LotCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lot_code is required"})
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
	// Lock the plate's open session first (if any).  In strict mode a
	// parked plate is rejected outright; otherwise the unique open_plate
	// index still stops a second open session at insert time.
	if h.Strict {
		if _, err := h.SessionRepo.OpenByPlateForUpdateTx(ctx, tx, plate); err == nil {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate already has an open session"})
		} else if !errors.Is(err, repository.ErrNoOpenSession) {
			return dbErr(c, err, "database error")
		}
	}
	lot, err := h.LotRepo.ReserveSpaceTx(ctx, tx, body.LotCode)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lot not found"})
		case errors.Is(err, repository.ErrCapacityExhausted):
			return c.JSON(http.StatusConflict, echo.Map{"error": "lot is full"})
		default:
			return dbErr(c, err, "failed to reserve space")
		}
	}
	sess := &model.Session{
		PlateNumber: plate,
		LotCode:     lot.Code,
		EntryTime:   time.Now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		code, err := utils.NewTicketCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate ticket code"})
		}
		sess.TicketCode = code
		err = h.SessionRepo.CreateTx(ctx, tx, sess)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrSessionAlreadyOpen) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate already has an open session"})
		}
		if errors.Is(err, repository.ErrTicketCodeExists) && attempt < maxTicketAttempts {
			continue
		}
		return dbErr(c, err, "failed to create session")
	}
	entry := &model.AuditLog{
		Action:       model.ActionSessionOpened,
		ActingUserID: &userID,
		TicketCode:   &sess.TicketCode,
		LotCode:      &sess.LotCode,
		Detail:       fmt.Sprintf("plate %s entered lot %s", plate, lot.Code),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	return c.JSON(http.StatusCreated, toSessionJSON(sess))
}

// RegisterExit handles POST /v1/cars/exit.  The body names a plate;
// its open session is closed, the bill is computed from whole hours
// rounded up at the lot's current fee, and one space is returned to the
// lot.  Returns 404 for a plate that never entered and 409 for one
// whose session is already closed; either way the first close's
// recorded charge is never recomputed.
func (h *CarHandler) RegisterExit(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		PlateNumber string `json:"plate_number"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	plate := normalizePlate(body.PlateNumber)
	if plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate_number is required"})
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
	sess, err := h.SessionRepo.OpenByPlateForUpdateTx(ctx, tx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenSession) {
			// A plate with only closed sessions already exited; a plate
			// with none never entered.
			if known, histErr := h.SessionRepo.HasAnyByPlateTx(ctx, tx, plate); histErr == nil && known {
				return c.JSON(http.StatusConflict, echo.Map{"error": "session already closed"})
			}
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no open session for plate"})
		}
		return dbErr(c, err, "database error")
	}
	// Lock the lot after the session to keep the ordering consistent
	// with entry; the fee is read under the lock so a concurrent rate
	// change cannot land mid-exit.
	lot, err := h.LotRepo.GetByCodeForUpdateTx(ctx, tx, sess.LotCode)
	if err != nil {
		if errors.Is(err, repository.ErrLotNotFound) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lot missing for open session"})
		}
		return dbErr(c, err, "database error")
	}
	exitTime := time.Now().UTC()
	hours := billing.BilledHours(sess.EntryTime, exitTime)
	charged := billing.ChargeCents(hours, lot.FeePerHourCents)
	if err := h.SessionRepo.CloseTx(ctx, tx, sess.ID, exitTime, hours, charged); err != nil {
		if errors.Is(err, repository.ErrNoOpenSession) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no open session for plate"})
		}
		return dbErr(c, err, "failed to close session")
	}
	if err := h.LotRepo.ReleaseSpaceTx(ctx, tx, lot.Code); err != nil {
		return dbErr(c, err, "failed to release space")
	}
	entry := &model.AuditLog{
		Action:       model.ActionSessionClosed,
		ActingUserID: &userID,
		TicketCode:   &sess.TicketCode,
		LotCode:      &sess.LotCode,
		Detail:       fmt.Sprintf("plate %s left lot %s after %d billed hour(s), charged %d cents", plate, lot.Code, hours, charged),
	}
	if err := h.AuditRepo.AppendTx(ctx, tx, entry); err != nil {
		return dbErr(c, err, "failed to record audit entry")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(c, err, "failed to commit transaction")
	}
	committed = true
	publishAudit(*entry)
	sess.ExitTime = &exitTime
	sess.HoursBilled = hours
	sess.ChargedCents = charged
	return c.JSON(http.StatusOK, toSessionJSON(sess))
}
