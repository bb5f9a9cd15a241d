package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/parking-lot-service/internal/model"
)

// SessionRepo provides CRUD operations for parking sessions.  A session
// is OPEN while exit_time is NULL and CLOSED afterwards; the schema
// backs the one-open-session-per-plate rule with a unique index on a
// generated column (open_plate) that is NULL once the session closes,
// so two racing entries for the same plate cannot both commit even if
// the advisory check is bypassed.  All timestamps are stored in UTC.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying handle for transaction management.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionColumns = `id, ticket_code, plate_number, lot_code, entry_time, exit_time, hours_billed, charged_cents, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var exit sql.NullTime
	err := row.Scan(&s.ID, &s.TicketCode, &s.PlateNumber, &s.LotCode, &s.EntryTime, &exit, &s.HoursBilled, &s.ChargedCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if exit.Valid {
		t := exit.Time
		s.ExitTime = &t
	}
	return &s, nil
}

// CreateTx inserts a new open session within the scope of an existing
// transaction and populates generated fields on the provided struct.
// A duplicate on the open_plate index means the plate already has an
// open session; a duplicate on the ticket code means the generated code
// collided and the caller should retry with a fresh one.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `INSERT INTO sessions (ticket_code, plate_number, lot_code, entry_time) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, s.TicketCode, s.PlateNumber, s.LotCode, s.EntryTime)
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "1062") {
			if strings.Contains(low, "open_plate") {
				return ErrSessionAlreadyOpen
			}
			return ErrTicketCodeExists
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	got, err := scanSession(tx.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// OpenByPlateForUpdateTx finds the plate's open session inside the
// transaction and locks it.  ErrNoOpenSession is returned when the
// plate is not currently parked, including the second call of a
// double exit: the first close clears exit_time IS NULL so the row no
// longer matches and the recorded charge stays untouched.
func (r *SessionRepo) OpenByPlateForUpdateTx(ctx context.Context, tx *sql.Tx, plate string) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE plate_number = ? AND exit_time IS NULL LIMIT 1 FOR UPDATE`
	s, err := scanSession(tx.QueryRowContext(ctx, q, plate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}
	return s, nil
}

// HasAnyByPlateTx reports whether the plate has any session at all,
// open or closed.  The exit path uses it to tell "already exited"
// apart from "never entered".
func (r *SessionRepo) HasAnyByPlateTx(ctx context.Context, tx *sql.Tx, plate string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE plate_number = ?`, plate).Scan(&n)
	return n > 0, err
}

// CloseTx marks an open session closed within the transaction, setting
// the exit time and the bill computed by the caller.  The WHERE clause
// requires exit_time IS NULL so the close happens exactly once; zero
// affected rows means the session was already closed.
func (r *SessionRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, exitTime time.Time, hoursBilled uint32, chargedCents uint64) error {
	const q = `UPDATE sessions SET exit_time = ?, hours_billed = ?, charged_cents = ? WHERE id = ? AND exit_time IS NULL`
	res, err := tx.ExecContext(ctx, q, exitTime, hoursBilled, chargedCents, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoOpenSession
	}
	return nil
}

// GetByTicketCode retrieves a session by its ticket code.  It returns
// ErrSessionNotFound when no row matches.
func (r *SessionRepo) GetByTicketCode(ctx context.Context, code string) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE ticket_code = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByTicketCodeForUpdateTx is the locked variant used by the
// administrative correction path.
func (r *SessionRepo) GetByTicketCodeForUpdateTx(ctx context.Context, tx *sql.Tx, code string) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE ticket_code = ? FOR UPDATE`
	s, err := scanSession(tx.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListOpen returns one page of open sessions, newest entries first,
// optionally filtered to a single lot.
func (r *SessionRepo) ListOpen(ctx context.Context, lotCode string, page int) ([]model.Session, int, error) {
	where := `exit_time IS NULL`
	args := []any{}
	if lotCode != "" {
		where += ` AND lot_code = ?`
		args = append(args, lotCode)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + where + ` ORDER BY entry_time DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, PageSize, Offset(page))...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]model.Session, 0, PageSize)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *s)
	}
	return items, TotalPages(total), rows.Err()
}

// HistoryByPlate returns one page of the plate's sessions, open and
// closed, ordered by entry time descending.
func (r *SessionRepo) HistoryByPlate(ctx context.Context, plate string, page int) ([]model.Session, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE plate_number = ?`, plate).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE plate_number = ? ORDER BY entry_time DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, plate, PageSize, Offset(page))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]model.Session, 0, PageSize)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *s)
	}
	return items, TotalPages(total), rows.Err()
}

// UpdateTx rewrites a session's mutable fields within the transaction.
// Only the administrative correction path uses this; the normal
// lifecycle goes through CreateTx and CloseTx.  The caller has already
// re-derived capacity for any lot or open/closed change.
func (r *SessionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	var exit any
	if s.ExitTime != nil {
		exit = *s.ExitTime
	}
	const q = `UPDATE sessions SET plate_number = ?, lot_code = ?, entry_time = ?, exit_time = ?, hours_billed = ?, charged_cents = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, s.PlateNumber, s.LotCode, s.EntryTime, exit, s.HoursBilled, s.ChargedCents, s.ID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrSessionAlreadyOpen
	}
	return err
}

// DeleteTx removes a session row within the transaction.
func (r *SessionRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}
