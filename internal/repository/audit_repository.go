package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/parking-lot-service/internal/model"
)

// AuditRepo appends and lists audit log rows.  The table is append-only:
// there is no update or delete path, and AppendTx runs inside the same
// transaction as the state change it records so a logged action is
// always an action that durably happened.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// AppendTx inserts one audit row within the transaction.  The entry's
// ID and CreatedAt are populated from the inserted row.
func (r *AuditRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.AuditLog) error {
	const q = `INSERT INTO audit_logs (action, acting_user_id, ticket_code, lot_code, detail) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.Action, e.ActingUserID, e.TicketCode, e.LotCode, e.Detail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT created_at FROM audit_logs WHERE id = ?`, e.ID).Scan(&e.CreatedAt)
}

// Append inserts one audit row in its own short transaction.  Used for
// events that have no surrounding state change, such as failed logins.
func (r *AuditRepo) Append(ctx context.Context, e *model.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.AppendTx(ctx, tx, e); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// List returns one page of audit rows, newest first, optionally
// filtered to a single action tag.
func (r *AuditRepo) List(ctx context.Context, action string, page int) ([]model.AuditLog, int, error) {
	where := `1=1`
	args := []any{}
	if action != "" {
		where = `action = ?`
		args = append(args, action)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT id, action, acting_user_id, ticket_code, lot_code, detail, created_at FROM audit_logs WHERE ` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, PageSize, Offset(page))...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]model.AuditLog, 0, PageSize)
	for rows.Next() {
		var e model.AuditLog
		var actingUser sql.NullInt64
		var ticket, lot sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &actingUser, &ticket, &lot, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if actingUser.Valid {
			uid := uint64(actingUser.Int64)
			e.ActingUserID = &uid
		}
		if ticket.Valid {
			tc := ticket.String
			e.TicketCode = &tc
		}
		if lot.Valid {
			lc := lot.String
			e.LotCode = &lc
		}
		items = append(items, e)
	}
	return items, TotalPages(total), rows.Err()
}
