package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/model"
	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// LogHandler exposes the audit trail to admins.  The trail itself is
// append-only; this endpoint only reads it.
type LogHandler struct {
	AuditRepo *repository.AuditRepo
}

// NewLogHandler constructs a LogHandler.
func NewLogHandler(auditRepo *repository.AuditRepo) *LogHandler {
	if auditRepo == nil {
		panic("nil repository passed to NewLogHandler")
	}
	return &LogHandler{AuditRepo: auditRepo}
}

type auditLogJSON struct {
	ID           uint64    `json:"id"`
	Action       string    `json:"action"`
	ActingUserID *uint64   `json:"acting_user_id"`
	TicketCode   *string   `json:"ticket_code"`
	LotCode      *string   `json:"lot_code"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

// List handles GET /v1/logs.  Returns one page of audit rows, newest
// first, optionally filtered with ?action=TAG.  Unknown tags are
// rejected rather than silently matching nothing.
func (h *LogHandler) List(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	action := strings.ToUpper(strings.TrimSpace(c.QueryParam("action")))
	if action != "" && !model.ValidAuditAction(action) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
	}
	items, totalPages, err := h.AuditRepo.List(c.Request().Context(), action, page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load logs"})
	}
	out := make([]auditLogJSON, 0, len(items))
	for i := range items {
		e := &items[i]
		out = append(out, auditLogJSON{
			ID:           e.ID,
			Action:       e.Action,
			ActingUserID: e.ActingUserID,
			TicketCode:   e.TicketCode,
			LotCode:      e.LotCode,
			Detail:       e.Detail,
			CreatedAt:    e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       out,
		"page":        page,
		"total_pages": totalPages,
	})
}
