package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newGetContext(t *testing.T, rawQuery string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+rawQuery, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		want   int
		wantOK bool
	}{
		{"default", "", 1, true},
		{"explicit", "page=3", 3, true},
		{"zero rejected", "page=0", 0, false},
		{"negative rejected", "page=-1", 0, false},
		{"garbage rejected", "page=abc", 0, false},
		{"trailing space tolerated", "page=" + url.QueryEscape(" 2 "), 2, true},
	}
	for _, tt := range cases {
		got, ok := parsePage(newGetContext(t, tt.query))
		if ok != tt.wantOK {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("%s: page = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	start := "2026-03-01T00:00:00Z"
	end := "2026-03-02T00:00:00Z"

	// Explicit bounds come back parsed and in UTC.
	s, e, ok := parseWindow(newGetContext(t, "start="+url.QueryEscape(start)+"&end="+url.QueryEscape(end)))
	if !ok {
		t.Fatal("valid window rejected")
	}
	if s.Format(time.RFC3339) != start || e.Format(time.RFC3339) != end {
		t.Errorf("window = [%v, %v], want [%s, %s]", s, e, start, end)
	}

	// Missing start means the zero time; missing end means roughly now.
	s, e, ok = parseWindow(newGetContext(t, ""))
	if !ok {
		t.Fatal("empty window rejected")
	}
	if !s.IsZero() {
		t.Errorf("default start = %v, want zero time", s)
	}
	if d := time.Since(e); d < 0 || d > time.Minute {
		t.Errorf("default end = %v, want approximately now", e)
	}

	// Malformed and inverted windows are rejected.
	if _, _, ok := parseWindow(newGetContext(t, "start=yesterday")); ok {
		t.Error("malformed start accepted")
	}
	if _, _, ok := parseWindow(newGetContext(t, "start="+url.QueryEscape(end)+"&end="+url.QueryEscape(start))); ok {
		t.Error("inverted window accepted")
	}
}

func TestNormalizePlate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ab-123-cd", "AB-123-CD"},
		{"  xy 99  ", "XY 99"},
		{"ALREADY", "ALREADY"},
		{"   ", ""},
	}
	for _, tt := range cases {
		if got := normalizePlate(tt.in); got != tt.want {
			t.Errorf("normalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDBErrMapsLockContention(t *testing.T) {
	e := echo.New()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"deadlock", errors.New("Error 1213 (40001): Deadlock found when trying to get lock; try restarting transaction"), http.StatusConflict},
		{"lock wait timeout", errors.New("Error 1205 (HY000): Lock wait timeout exceeded; try restarting transaction"), http.StatusConflict},
		{"other database error", errors.New("invalid connection"), http.StatusInternalServerError},
	}
	for _, tt := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if err := dbErr(c, tt.err, "failed to update"); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	cases := []struct {
		name    string
		val     any
		want    uint64
		wantErr bool
	}{
		{"uint64", uint64(9), 9, false},
		{"float64 from jwt claims", float64(12), 12, false},
		{"numeric string", "34", 34, false},
		{"missing", nil, 0, true},
		{"non-numeric string", "bob", 0, true},
	}
	for _, tt := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if tt.val != nil {
			c.Set("user_id", tt.val)
		}
		got, err := getUserID(c)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: id = %d, want %d", tt.name, got, tt.want)
		}
	}
}
