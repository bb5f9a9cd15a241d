package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/model"
	"github.com/iliyamo/parking-lot-service/internal/queue"
	"github.com/iliyamo/parking-lot-service/internal/repository"
	queue_publisher "github.com/iliyamo/parking-lot-service/internal/service"
)

// getUserID extracts the authenticated user's ID from echo.Context and
// converts it to uint64.  JWT numeric claims decode as float64, so a
// type switch covers the representations the middleware may store.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parsePage reads the 1-based ?page query parameter, defaulting to 1.
// A malformed or non-positive value is reported as invalid.
func parsePage(c echo.Context) (int, bool) {
	raw := strings.TrimSpace(c.QueryParam("page"))
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseWindow reads the optional ?start and ?end query parameters as
// RFC3339 timestamps.  A missing start means "from the beginning of
// time" and a missing end means "until now"; malformed values are
// rejected so a typo is not silently treated as an unbounded window.
func parseWindow(c echo.Context) (start, end time.Time, ok bool) {
	end = time.Now().UTC()
	if raw := strings.TrimSpace(c.QueryParam("start")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, false
		}
		start = t.UTC()
	}
	if raw := strings.TrimSpace(c.QueryParam("end")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, false
		}
		end = t.UTC()
	}
	if end.Before(start) {
		return start, end, false
	}
	return start, end, true
}

// sessionJSON is the wire shape of a session/ticket across endpoints.
type sessionJSON struct {
	TicketCode   string     `json:"ticket_code"`
	PlateNumber  string     `json:"plate_number"`
	LotCode      string     `json:"lot_code"`
	EntryTime    time.Time  `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time"`
	HoursBilled  uint32     `json:"hours_billed"`
	ChargedCents uint64     `json:"charged_cents"`
	Open         bool       `json:"open"`
}

func toSessionJSON(s *model.Session) sessionJSON {
	return sessionJSON{
		TicketCode:   s.TicketCode,
		PlateNumber:  s.PlateNumber,
		LotCode:      s.LotCode,
		EntryTime:    s.EntryTime,
		ExitTime:     s.ExitTime,
		HoursBilled:  s.HoursBilled,
		ChargedCents: s.ChargedCents,
		Open:         s.Open(),
	}
}

func toSessionListJSON(items []model.Session) []sessionJSON {
	out := make([]sessionJSON, 0, len(items))
	for i := range items {
		out = append(out, toSessionJSON(&items[i]))
	}
	return out
}

// lotJSON is the wire shape of a parking lot.
type lotJSON struct {
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	TotalSpaces     uint32    `json:"total_spaces"`
	AvailableSpaces uint32    `json:"available_spaces"`
	FeePerHourCents uint32    `json:"fee_per_hour_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

func toLotJSON(l *model.ParkingLot) lotJSON {
	return lotJSON{
		Code:            l.Code,
		Name:            l.Name,
		Location:        l.Location,
		TotalSpaces:     l.TotalSpaces,
		AvailableSpaces: l.AvailableSpaces,
		FeePerHourCents: l.FeePerHourCents,
		CreatedAt:       l.CreatedAt,
	}
}

func toLotListJSON(items []model.ParkingLot) []lotJSON {
	out := make([]lotJSON, 0, len(items))
	for i := range items {
		out = append(out, toLotJSON(&items[i]))
	}
	return out
}

// dbErr answers for a database error that no specific sentinel matched.
// Lock contention (deadlock or lock wait timeout) rolled the work back
// without changing anything, so it is reported as a retryable 409;
// everything else is an internal error carrying msg.
func dbErr(c echo.Context, err error, msg string) error {
	if repository.IsLockContention(err) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent update, please retry"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

// publishAudit fans the committed audit row out to the message broker.
// It runs in the background with its own timeout: the row is already
// durable, so a broker outage must not fail or slow the request.
func publishAudit(e model.AuditLog) {
	ev := queue.AuditEvent{
		AuditID:      e.ID,
		Action:       e.Action,
		ActingUserID: e.ActingUserID,
		TicketCode:   e.TicketCode,
		LotCode:      e.LotCode,
		Detail:       e.Detail,
		OccurredAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue_publisher.PublishAuditEvent(ctx, ev)
	}()
}

// normalizePlate uppercases and trims a plate number so lookups are
// insensitive to how the attendant typed it.
func normalizePlate(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
