package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// ReportHandler serves the admin reporting endpoints.  All reports
// accept an optional ?start / ?end RFC3339 window; end defaults to now
// and start to the beginning of time.
type ReportHandler struct {
	ReportRepo *repository.ReportRepo
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(reportRepo *repository.ReportRepo) *ReportHandler {
	if reportRepo == nil {
		panic("nil repository passed to NewReportHandler")
	}
	return &ReportHandler{ReportRepo: reportRepo}
}

// EntriesExits handles GET /v1/reports/entries-exits.  Two paginated
// listings share the window: cars that entered in it and cars that
// left in it, the latter with the sum charged across the whole window.
func (h *ReportHandler) EntriesExits(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid time window"})
	}
	ctx := c.Request().Context()
	entries, entryPages, err := h.ReportRepo.EntriesInWindow(ctx, start, end, page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load entries"})
	}
	exits, exitPages, charged, err := h.ReportRepo.ExitsInWindow(ctx, start, end, page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load exits"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"window": echo.Map{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
		"page": page,
		"entries": echo.Map{
			"items":       entries,
			"total_pages": entryPages,
		},
		"exits": echo.Map{
			"items":               exits,
			"total_pages":         exitPages,
			"total_charged_cents": charged,
		},
	})
}

// Revenue handles GET /v1/reports/revenue.  Charged totals of closed
// sessions grouped by lot, highest first, with the grand total across
// the window.
func (h *ReportHandler) Revenue(c echo.Context) error {
	page, ok := parsePage(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	start, end, ok := parseWindow(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid time window"})
	}
	items, totalPages, grand, err := h.ReportRepo.RevenueByLot(c.Request().Context(), start, end, page)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load revenue"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"window": echo.Map{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
		"items":             items,
		"page":              page,
		"total_pages":       totalPages,
		"grand_total_cents": grand,
	})
}

// Occupancy handles GET /v1/reports/occupancy.  Current fill level of
// every lot; not windowed since it reflects the live counters.
func (h *ReportHandler) Occupancy(c echo.Context) error {
	items, err := h.ReportRepo.Occupancy(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load occupancy"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
