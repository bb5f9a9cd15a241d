package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// Validation failures must be rejected before any database work, so
// these tests run the handlers against repositories with no backing
// connection; reaching the database would panic the test.

func newJSONContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testCarHandler() *CarHandler {
	return NewCarHandler(repository.NewSessionRepo(nil), repository.NewLotRepo(nil), repository.NewAuditRepo(nil), true)
}

func TestRegisterEntryValidation(t *testing.T) {
	h := testCarHandler()

	// No authenticated user in context.
	c, rec := newJSONContext(t, http.MethodPost, "/v1/cars/entry", `{"plate_number":"AB-12","lot_code":"L1"}`)
	if err := h.RegisterEntry(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", rec.Code)
	}

	cases := []struct {
		name string
		body string
	}{
		{"missing plate", `{"lot_code":"L1"}`},
		{"blank plate", `{"plate_number":"   ","lot_code":"L1"}`},
		{"oversized plate", `{"plate_number":"0123456789ABCDEF0","lot_code":"L1"}`},
		{"missing lot", `{"plate_number":"AB-12"}`},
		{"malformed json", `{"plate_number":`},
	}
	for _, tt := range cases {
		c, rec := newJSONContext(t, http.MethodPost, "/v1/cars/entry", tt.body)
		c.Set("user_id", uint64(1))
		if err := h.RegisterEntry(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestRegisterExitValidation(t *testing.T) {
	h := testCarHandler()

	c, rec := newJSONContext(t, http.MethodPost, "/v1/cars/exit", `{"plate_number":"AB-12"}`)
	if err := h.RegisterExit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", rec.Code)
	}

	c, rec = newJSONContext(t, http.MethodPost, "/v1/cars/exit", `{"plate_number":"  "}`)
	c.Set("user_id", uint64(1))
	if err := h.RegisterExit(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank plate: status = %d, want 400", rec.Code)
	}
}

func TestLotCreateValidation(t *testing.T) {
	h := NewLotHandler(repository.NewLotRepo(nil), repository.NewAuditRepo(nil))

	cases := []struct {
		name string
		body string
	}{
		{"missing code", `{"name":"Central","total_spaces":10}`},
		{"missing name", `{"code":"L1","total_spaces":10}`},
		{"zero capacity", `{"code":"L1","name":"Central","total_spaces":0}`},
	}
	for _, tt := range cases {
		c, rec := newJSONContext(t, http.MethodPost, "/v1/lots", tt.body)
		c.Set("user_id", uint64(1))
		if err := h.Create(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestLotUpdateValidation(t *testing.T) {
	h := NewLotHandler(repository.NewLotRepo(nil), repository.NewAuditRepo(nil))

	cases := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"  "}`},
		{"zero capacity", `{"total_spaces":0}`},
	}
	for _, tt := range cases {
		c, rec := newJSONContext(t, http.MethodPatch, "/v1/lots/L1", tt.body)
		c.SetParamNames("code")
		c.SetParamValues("L1")
		c.Set("user_id", uint64(1))
		if err := h.Update(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestSessionUpdateValidation(t *testing.T) {
	h := NewSessionHandler(repository.NewSessionRepo(nil), repository.NewLotRepo(nil), repository.NewAuditRepo(nil))

	cases := []struct {
		name string
		body string
	}{
		{"reopen with exit time", `{"reopen":true,"exit_time":"2026-03-01T10:00:00Z"}`},
		{"blank plate", `{"plate_number":"  "}`},
	}
	for _, tt := range cases {
		c, rec := newJSONContext(t, http.MethodPatch, "/v1/sessions/TKT-AAAA", tt.body)
		c.SetParamNames("code")
		c.SetParamValues("TKT-AAAA")
		c.Set("user_id", uint64(1))
		if err := h.Update(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestLogListRejectsUnknownAction(t *testing.T) {
	h := NewLogHandler(repository.NewAuditRepo(nil))
	c, rec := newJSONContext(t, http.MethodGet, "/v1/logs?action=NOT_A_TAG", "")
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReportWindowValidation(t *testing.T) {
	h := NewReportHandler(repository.NewReportRepo(nil))
	c, rec := newJSONContext(t, http.MethodGet, "/v1/reports/revenue?start=notatime", "")
	if err := h.Revenue(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
