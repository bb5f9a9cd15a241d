package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/parking-lot-service/internal/model"
)

// LotRepo provides persistence for parking lots and owns the capacity
// ledger: the available-space counter on each lot row.  Capacity is
// only ever adjusted through ReserveSpaceTx and ReleaseSpaceTx inside
// a transaction that also writes the session row consuming or freeing
// the space, which keeps available_spaces + open sessions == total at
// every commit point.
type LotRepo struct {
	db *sql.DB
}

// NewLotRepo constructs a LotRepo with the given DB handle.
func NewLotRepo(db *sql.DB) *LotRepo { return &LotRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning lots, sessions and audit rows.
func (r *LotRepo) DB() *sql.DB { return r.db }

const lotColumns = `id, code, name, location, total_spaces, available_spaces, fee_per_hour_cents, created_at, updated_at`

func scanLot(row interface{ Scan(...any) error }) (*model.ParkingLot, error) {
	var l model.ParkingLot
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.Location, &l.TotalSpaces, &l.AvailableSpaces, &l.FeePerHourCents, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateTx inserts a new lot within the transaction, so the creation
// and its audit row commit together.  A fresh lot starts fully
// available: available_spaces == total_spaces.  Duplicate codes surface
// as ErrLotCodeExists.  After insert the row is read back so generated
// fields (id, timestamps) are populated on the passed struct.
func (r *LotRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.ParkingLot) error {
	const qInsert = `INSERT INTO parking_lots (code, name, location, total_spaces, available_spaces, fee_per_hour_cents)
					 VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, qInsert, l.Code, l.Name, l.Location, l.TotalSpaces, l.TotalSpaces, l.FeePerHourCents)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrLotCodeExists
		}
		return err
	}
	const qSelect = `SELECT ` + lotColumns + ` FROM parking_lots WHERE code = ?`
	got, err := scanLot(tx.QueryRowContext(ctx, qSelect, l.Code))
	if err != nil {
		return err
	}
	*l = *got
	return nil
}

// GetByCode retrieves a lot by its code.  It returns ErrLotNotFound
// when no row is found.
func (r *LotRepo) GetByCode(ctx context.Context, code string) (*model.ParkingLot, error) {
	const q = `SELECT ` + lotColumns + ` FROM parking_lots WHERE code = ?`
	l, err := scanLot(r.db.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return l, nil
}

// List returns one page of lots ordered by code, together with the
// total page count.
func (r *LotRepo) List(ctx context.Context, page int) ([]model.ParkingLot, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_lots`).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ` + lotColumns + ` FROM parking_lots ORDER BY code LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, PageSize, Offset(page))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	lots := make([]model.ParkingLot, 0, PageSize)
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, 0, err
		}
		lots = append(lots, *l)
	}
	return lots, TotalPages(total), rows.Err()
}

// ListAvailable returns one page of lots that currently have at least
// one free space, ordered by code.
func (r *LotRepo) ListAvailable(ctx context.Context, page int) ([]model.ParkingLot, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_lots WHERE available_spaces > 0`).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ` + lotColumns + ` FROM parking_lots WHERE available_spaces > 0 ORDER BY code LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, PageSize, Offset(page))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	lots := make([]model.ParkingLot, 0, PageSize)
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, 0, err
		}
		lots = append(lots, *l)
	}
	return lots, TotalPages(total), rows.Err()
}

// GetByCodeForUpdateTx loads a lot inside the transaction and takes a
// row lock on it.  Concurrent entries and exits on the same lot
// serialize on this lock, so the capacity checks that follow see a
// stable counter.
func (r *LotRepo) GetByCodeForUpdateTx(ctx context.Context, tx *sql.Tx, code string) (*model.ParkingLot, error) {
	const q = `SELECT ` + lotColumns + ` FROM parking_lots WHERE code = ? FOR UPDATE`
	l, err := scanLot(tx.QueryRowContext(ctx, q, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return l, nil
}

// ReserveSpaceTx decrements the lot's available-space counter by one
// within the transaction.  It returns ErrLotNotFound for unknown codes
// and ErrCapacityExhausted when no space is free.  The UPDATE is
// guarded by available_spaces > 0 so the counter can never underflow
// even if a caller skips the locked read.
func (r *LotRepo) ReserveSpaceTx(ctx context.Context, tx *sql.Tx, code string) (*model.ParkingLot, error) {
	l, err := r.GetByCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if l.AvailableSpaces == 0 {
		return nil, ErrCapacityExhausted
	}
	const q = `UPDATE parking_lots SET available_spaces = available_spaces - 1 WHERE code = ? AND available_spaces > 0`
	res, err := tx.ExecContext(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrCapacityExhausted
	}
	l.AvailableSpaces--
	return l, nil
}

// ReleaseSpaceTx increments the lot's available-space counter by one
// within the transaction.  The UPDATE is guarded by
// available_spaces < total_spaces; zero affected rows means an
// increment would break the capacity invariant, which is reported as
// ErrCapacityOverflow so the caller aborts the transaction.
func (r *LotRepo) ReleaseSpaceTx(ctx context.Context, tx *sql.Tx, code string) error {
	if _, err := r.GetByCodeForUpdateTx(ctx, tx, code); err != nil {
		return err
	}
	const q = `UPDATE parking_lots SET available_spaces = available_spaces + 1 WHERE code = ? AND available_spaces < total_spaces`
	res, err := tx.ExecContext(ctx, q, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCapacityOverflow
	}
	return nil
}

// OpenSessionCountTx counts the sessions currently occupying spaces in
// the lot, inside the transaction.  Used to guard lot deletion and
// capacity shrinking.
func (r *LotRepo) OpenSessionCountTx(ctx context.Context, tx *sql.Tx, code string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE lot_code = ? AND exit_time IS NULL`, code).Scan(&n)
	return n, err
}

// UpdateTx applies an administrative update to a lot inside the
// transaction.  Name, location and fee change freely; total_spaces may
// change as long as it does not drop below the current occupancy, and
// available_spaces is rebased so occupied spaces stay accounted for.
func (r *LotRepo) UpdateTx(ctx context.Context, tx *sql.Tx, code string, name, location *string, feePerHourCents *uint32, totalSpaces *uint32) (*model.ParkingLot, error) {
	l, err := r.GetByCodeForUpdateTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if name != nil {
		l.Name = *name
	}
	if location != nil {
		l.Location = *location
	}
	if feePerHourCents != nil {
		l.FeePerHourCents = *feePerHourCents
	}
	if totalSpaces != nil {
		occupied := l.TotalSpaces - l.AvailableSpaces
		if *totalSpaces < occupied {
			return nil, ErrConflict
		}
		l.TotalSpaces = *totalSpaces
		l.AvailableSpaces = *totalSpaces - occupied
	}
	const q = `UPDATE parking_lots SET name = ?, location = ?, fee_per_hour_cents = ?, total_spaces = ?, available_spaces = ? WHERE code = ?`
	if _, err := tx.ExecContext(ctx, q, l.Name, l.Location, l.FeePerHourCents, l.TotalSpaces, l.AvailableSpaces, code); err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteTx removes a lot inside the transaction.  Lots with open
// sessions cannot be deleted; the caller receives ErrConflict.  A lot
// that only closed sessions still reference trips the fk_sessions_lot
// foreign key (MySQL error 1451), which is reported as
// ErrLotHasSessions so it surfaces as a conflict rather than an
// internal error.
func (r *LotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, code string) error {
	if _, err := r.GetByCodeForUpdateTx(ctx, tx, code); err != nil {
		return err
	}
	open, err := r.OpenSessionCountTx(ctx, tx, code)
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrConflict
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE code = ?`, code)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1451") {
		return ErrLotHasSessions
	}
	return err
}
