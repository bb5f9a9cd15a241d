package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/config"
	"github.com/iliyamo/parking-lot-service/internal/model"
	"github.com/iliyamo/parking-lot-service/internal/repository"
)

// These tests drive the handlers against a real MySQL instance so the
// transactional invariants (capacity ledger, one open session per
// plate, exactly-once close) are exercised end to end.  They are
// skipped unless TEST_DATABASE_DSN points at a disposable database:
//
//	TEST_DATABASE_DSN='root:secret@tcp(127.0.0.1:3306)/parking_test?parseTime=true&loc=UTC'
//
// The schema is applied from migrations/001_init.sql and all tables are
// emptied before each test.

type testEnv struct {
	db   *sql.DB
	cars *CarHandler
	lots *LotHandler
	auth *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping database: %v", err)
	}
	applySchema(t, db)
	for _, table := range []string{"audit_logs", "sessions", "refresh_tokens", "users", "parking_lots"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	sessions := repository.NewSessionRepo(db)
	lots := repository.NewLotRepo(db)
	audits := repository.NewAuditRepo(db)
	cfg := config.Config{JWTSecret: "integration-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	return &testEnv{
		db:   db,
		cars: NewCarHandler(sessions, lots, audits, true),
		lots: NewLotHandler(lots, audits),
		auth: NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), audits),
	}
}

func applySchema(t *testing.T, db *sql.DB) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			// 1050 = table already exists; reruns against the same
			// database are fine.
			if strings.Contains(strings.ToLower(err.Error()), "1050") {
				continue
			}
			t.Fatalf("apply schema: %v", err)
		}
	}
}

func (env *testEnv) seedLot(t *testing.T, code string, total, fee uint32) {
	t.Helper()
	_, err := env.db.Exec(
		`INSERT INTO parking_lots (code, name, location, total_spaces, available_spaces, fee_per_hour_cents) VALUES (?,?,?,?,?,?)`,
		code, code+" garage", "", total, total, fee)
	if err != nil {
		t.Fatalf("seed lot %s: %v", code, err)
	}
}

func (env *testEnv) availableSpaces(t *testing.T, code string) uint32 {
	t.Helper()
	var n uint32
	if err := env.db.QueryRow(`SELECT available_spaces FROM parking_lots WHERE code = ?`, code).Scan(&n); err != nil {
		t.Fatalf("read available_spaces for %s: %v", code, err)
	}
	return n
}

func (env *testEnv) call(t *testing.T, h func(c echo.Context) error, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	c, rec := newJSONContext(t, method, target, body)
	c.Set("user_id", uint64(1))
	if err := h(c); err != nil {
		t.Fatalf("%s %s: unexpected error: %v", method, target, err)
	}
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionJSON {
	t.Helper()
	var s sessionJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	return s
}

func TestEntryCapacityExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.seedLot(t, "PARK1", 1, 100)

	rec := env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"AAA-111","lot_code":"PARK1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first entry: status = %d, body %s", rec.Code, rec.Body)
	}
	if got := env.availableSpaces(t, "PARK1"); got != 0 {
		t.Fatalf("available_spaces after entry = %d, want 0", got)
	}

	rec = env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"BBB-222","lot_code":"PARK1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("entry into full lot: status = %d, want 409", rec.Code)
	}
	// The rejected entry must not have touched the ledger.
	if got := env.availableSpaces(t, "PARK1"); got != 0 {
		t.Errorf("available_spaces after rejection = %d, want 0", got)
	}
}

func TestEntryRejectsSecondOpenSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedLot(t, "PARK1", 5, 100)

	rec := env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"CCC-333","lot_code":"PARK1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first entry: status = %d, body %s", rec.Code, rec.Body)
	}

	// Strict mode spots the open session before reserving a space.
	rec = env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"CCC-333","lot_code":"PARK1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("strict duplicate entry: status = %d, want 409", rec.Code)
	}

	// Without the advisory check the unique open_plate index still
	// rejects the insert, and the rollback must restore the counter.
	lenient := NewCarHandler(env.cars.SessionRepo, env.cars.LotRepo, env.cars.AuditRepo, false)
	before := env.availableSpaces(t, "PARK1")
	rec = env.call(t, lenient.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"CCC-333","lot_code":"PARK1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("lenient duplicate entry: status = %d, want 409", rec.Code)
	}
	if got := env.availableSpaces(t, "PARK1"); got != before {
		t.Errorf("available_spaces after rolled-back entry = %d, want %d", got, before)
	}
}

func TestExitClosesExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedLot(t, "PARK1", 2, 100)

	rec := env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"DDD-444","lot_code":"PARK1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("entry: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.call(t, env.cars.RegisterExit, http.MethodPost, "/v1/cars/exit", `{"plate_number":"DDD-444"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("exit: status = %d, body %s", rec.Code, rec.Body)
	}
	closed := decodeSession(t, rec)
	if closed.Open || closed.HoursBilled < 1 {
		t.Errorf("closed session = %+v, want closed with at least one billed hour", closed)
	}
	if got := env.availableSpaces(t, "PARK1"); got != 2 {
		t.Errorf("available_spaces after exit = %d, want 2", got)
	}

	// A second exit is a conflict, not a missing plate, and must leave
	// the first close's charge untouched.
	rec = env.call(t, env.cars.RegisterExit, http.MethodPost, "/v1/cars/exit", `{"plate_number":"DDD-444"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second exit: status = %d, want 409", rec.Code)
	}
	var charged uint64
	if err := env.db.QueryRow(`SELECT charged_cents FROM sessions WHERE ticket_code = ?`, closed.TicketCode).Scan(&charged); err != nil {
		t.Fatalf("reread session: %v", err)
	}
	if charged != closed.ChargedCents {
		t.Errorf("charged_cents after second exit = %d, want %d", charged, closed.ChargedCents)
	}

	// A plate that never entered is not found.
	rec = env.call(t, env.cars.RegisterExit, http.MethodPost, "/v1/cars/exit", `{"plate_number":"ZZZ-999"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("exit for unknown plate: status = %d, want 404", rec.Code)
	}
}

func TestExitBillsCeilingHours(t *testing.T) {
	env := newTestEnv(t)
	env.seedLot(t, "PARK1", 1, 250)

	rec := env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"EEE-555","lot_code":"PARK1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("entry: status = %d, body %s", rec.Code, rec.Body)
	}
	// Backdate the entry so the stay is 61 minutes: one full hour plus
	// a started one, billed as two at 2.50/h.
	if _, err := env.db.Exec(`UPDATE sessions SET entry_time = DATE_SUB(entry_time, INTERVAL 61 MINUTE) WHERE exit_time IS NULL`); err != nil {
		t.Fatalf("backdate entry: %v", err)
	}

	rec = env.call(t, env.cars.RegisterExit, http.MethodPost, "/v1/cars/exit", `{"plate_number":"EEE-555"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("exit: status = %d, body %s", rec.Code, rec.Body)
	}
	closed := decodeSession(t, rec)
	if closed.HoursBilled != 2 || closed.ChargedCents != 500 {
		t.Errorf("bill = %dh / %d cents, want 2h / 500 cents", closed.HoursBilled, closed.ChargedCents)
	}
}

func TestLotDeleteBlockedBySessionHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedLot(t, "PARK1", 1, 100)
	env.seedLot(t, "EMPTY", 1, 100)

	rec := env.call(t, env.cars.RegisterEntry, http.MethodPost, "/v1/cars/entry", `{"plate_number":"FFF-666","lot_code":"PARK1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("entry: status = %d, body %s", rec.Code, rec.Body)
	}
	rec = env.call(t, env.cars.RegisterExit, http.MethodPost, "/v1/cars/exit", `{"plate_number":"FFF-666"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("exit: status = %d, body %s", rec.Code, rec.Body)
	}

	// No open sessions, but the closed one still references the lot.
	c, rec2 := newJSONContext(t, http.MethodDelete, "/v1/lots/PARK1", "")
	c.SetParamNames("code")
	c.SetParamValues("PARK1")
	c.Set("user_id", uint64(1))
	if err := env.lots.Delete(c); err != nil {
		t.Fatalf("delete lot: unexpected error: %v", err)
	}
	if rec2.Code != http.StatusConflict {
		t.Errorf("delete lot with history: status = %d, want 409, body %s", rec2.Code, rec2.Body)
	}
	if got := env.availableSpaces(t, "PARK1"); got != 1 {
		t.Errorf("lot mutated by failed delete: available_spaces = %d, want 1", got)
	}

	// A lot with no sessions at all deletes cleanly.
	c, rec2 = newJSONContext(t, http.MethodDelete, "/v1/lots/EMPTY", "")
	c.SetParamNames("code")
	c.SetParamValues("EMPTY")
	c.Set("user_id", uint64(1))
	if err := env.lots.Delete(c); err != nil {
		t.Fatalf("delete empty lot: unexpected error: %v", err)
	}
	if rec2.Code != http.StatusNoContent {
		t.Errorf("delete empty lot: status = %d, want 204, body %s", rec2.Code, rec2.Body)
	}
}

func TestRegisterCommitsAuditRowWithUser(t *testing.T) {
	env := newTestEnv(t)

	c, rec := newJSONContext(t, http.MethodPost, "/v1/auth/register",
		`{"first_name":"Ada","last_name":"L","email":"ada@example.com","password":"pw","role":"ADMIN"}`)
	if err := env.auth.Register(c); err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d, body %s", rec.Code, rec.Body)
	}

	var users, audits, tokens int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE action = ?`, model.ActionUserRegistered).Scan(&audits); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens`).Scan(&tokens); err != nil {
		t.Fatalf("count refresh tokens: %v", err)
	}
	if users != 1 || audits != 1 || tokens != 1 {
		t.Errorf("committed rows = %d users / %d audits / %d tokens, want 1/1/1", users, audits, tokens)
	}

	// A duplicate registration rolls back without leaving stray rows.
	c, rec = newJSONContext(t, http.MethodPost, "/v1/auth/register",
		`{"first_name":"Ada","last_name":"L","email":"ada@example.com","password":"pw"}`)
	if err := env.auth.Register(c); err != nil {
		t.Fatalf("duplicate register: unexpected error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", rec.Code)
	}
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE action = ?`, model.ActionUserRegistered).Scan(&audits); err != nil {
		t.Fatalf("recount audit rows: %v", err)
	}
	if audits != 1 {
		t.Errorf("audit rows after rejected register = %d, want 1", audits)
	}
}
