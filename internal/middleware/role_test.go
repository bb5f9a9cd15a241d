package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/utils"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		role     any
		allowed  []string
		wantCode int
	}{
		{"admin allowed", "ADMIN", []string{"ADMIN"}, http.StatusOK},
		{"attendant allowed among several", "ATTENDANT", []string{"ADMIN", "ATTENDANT"}, http.StatusOK},
		{"attendant blocked from admin route", "ATTENDANT", []string{"ADMIN"}, http.StatusForbidden},
		{"missing role", nil, []string{"ADMIN"}, http.StatusForbidden},
		{"non-string role", 42, []string{"ADMIN"}, http.StatusForbidden},
	}

	e := echo.New()
	for _, tt := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if tt.role != nil {
			c.Set("role", tt.role)
		}
		h := RequireRole(tt.allowed...)(okHandler)
		if err := h(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.wantCode)
		}
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()

	// Missing header is rejected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := JWTAuth(secret)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rec.Code)
	}

	// Garbage token is rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := JWTAuth(secret)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	// A valid token passes and populates the context.
	at, err := utils.NewAccessToken(secret, 7, "ATTENDANT", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+at.Token)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	var gotRole any
	inspect := func(c echo.Context) error {
		gotRole = c.Get("role")
		return c.String(http.StatusOK, "ok")
	}
	if err := JWTAuth(secret)(inspect)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rec.Code)
	}
	if role, _ := gotRole.(string); role != "ATTENDANT" {
		t.Errorf("role claim = %v, want ATTENDANT", gotRole)
	}
}
