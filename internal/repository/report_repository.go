package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parking-lot-service/internal/model"
)

// ReportRepo serves the read-only projections behind the reporting
// endpoints.  These queries run outside any transaction: reports are
// informational and never gate a session transition, so plain
// read-committed reads are sufficient.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo returns a new ReportRepo bound to the given database.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// EntryRow is one line of the entry listing: a car that entered within
// the requested window.
type EntryRow struct {
	TicketCode  string    `json:"ticket_code"`
	PlateNumber string    `json:"plate_number"`
	LotCode     string    `json:"lot_code"`
	EntryTime   time.Time `json:"entry_time"`
}

// ExitRow is one line of the exit listing: a closed session whose exit
// fell within the requested window, with the amount charged.
type ExitRow struct {
	TicketCode   string    `json:"ticket_code"`
	PlateNumber  string    `json:"plate_number"`
	LotCode      string    `json:"lot_code"`
	ExitTime     time.Time `json:"exit_time"`
	HoursBilled  uint32    `json:"hours_billed"`
	ChargedCents uint64    `json:"charged_cents"`
}

// EntriesInWindow lists sessions whose entry_time lies in [start, end],
// newest first, paginated.
func (r *ReportRepo) EntriesInWindow(ctx context.Context, start, end time.Time, page int) ([]EntryRow, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE entry_time BETWEEN ? AND ?`, start, end).Scan(&total); err != nil {
		return nil, 0, err
	}
	const q = `SELECT ticket_code, plate_number, lot_code, entry_time
			   FROM sessions WHERE entry_time BETWEEN ? AND ?
			   ORDER BY entry_time DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, start, end, PageSize, Offset(page))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]EntryRow, 0, PageSize)
	for rows.Next() {
		var e EntryRow
		if err := rows.Scan(&e.TicketCode, &e.PlateNumber, &e.LotCode, &e.EntryTime); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, TotalPages(total), rows.Err()
}

// ExitsInWindow lists closed sessions whose exit_time lies in
// [start, end], newest first, paginated, together with the sum charged
// over the whole window (not just the page).
func (r *ReportRepo) ExitsInWindow(ctx context.Context, start, end time.Time, page int) ([]ExitRow, int, uint64, error) {
	var total int
	var sum sql.NullInt64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(charged_cents), 0) FROM sessions WHERE exit_time IS NOT NULL AND exit_time BETWEEN ? AND ?`,
		start, end).Scan(&total, &sum); err != nil {
		return nil, 0, 0, err
	}
	const q = `SELECT ticket_code, plate_number, lot_code, exit_time, hours_billed, charged_cents
			   FROM sessions WHERE exit_time IS NOT NULL AND exit_time BETWEEN ? AND ?
			   ORDER BY exit_time DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, start, end, PageSize, Offset(page))
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()
	items := make([]ExitRow, 0, PageSize)
	for rows.Next() {
		var e ExitRow
		if err := rows.Scan(&e.TicketCode, &e.PlateNumber, &e.LotCode, &e.ExitTime, &e.HoursBilled, &e.ChargedCents); err != nil {
			return nil, 0, 0, err
		}
		items = append(items, e)
	}
	return items, TotalPages(total), uint64(sum.Int64), rows.Err()
}

// RevenueRow aggregates the charged amounts for one lot within the
// requested window.
type RevenueRow struct {
	LotCode        string `json:"lot_code"`
	ClosedSessions int    `json:"closed_sessions"`
	RevenueCents   uint64 `json:"revenue_cents"`
}

// RevenueByLot groups the charged totals of closed sessions with
// exit_time in [start, end] by lot, highest revenue first, paginated by
// lot group.  The grand total across all groups is returned alongside.
func (r *ReportRepo) RevenueByLot(ctx context.Context, start, end time.Time, page int) ([]RevenueRow, int, uint64, error) {
	var groups int
	var grand sql.NullInt64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT lot_code), COALESCE(SUM(charged_cents), 0)
		 FROM sessions WHERE exit_time IS NOT NULL AND exit_time BETWEEN ? AND ?`,
		start, end).Scan(&groups, &grand); err != nil {
		return nil, 0, 0, err
	}
	const q = `SELECT lot_code, COUNT(*), SUM(charged_cents)
			   FROM sessions WHERE exit_time IS NOT NULL AND exit_time BETWEEN ? AND ?
			   GROUP BY lot_code ORDER BY SUM(charged_cents) DESC, lot_code
			   LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, start, end, PageSize, Offset(page))
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()
	items := make([]RevenueRow, 0, PageSize)
	for rows.Next() {
		var row RevenueRow
		if err := rows.Scan(&row.LotCode, &row.ClosedSessions, &row.RevenueCents); err != nil {
			return nil, 0, 0, err
		}
		items = append(items, row)
	}
	return items, TotalPages(groups), uint64(grand.Int64), rows.Err()
}

// OccupancyRow reports how full one lot is right now.
type OccupancyRow struct {
	LotCode        string  `json:"lot_code"`
	Name           string  `json:"name"`
	TotalSpaces    uint32  `json:"total_spaces"`
	OccupiedSpaces uint32  `json:"occupied_spaces"`
	OccupancyRate  float64 `json:"occupancy_rate"`
}

// Occupancy returns current occupancy for every lot.  Occupied spaces
// derive from the capacity counter (total - available), which matches
// the count of open sessions by the ledger invariant.  A lot with zero
// total spaces reports a rate of 0 rather than dividing by zero.
func (r *ReportRepo) Occupancy(ctx context.Context) ([]OccupancyRow, error) {
	const q = `SELECT code, name, total_spaces, available_spaces FROM parking_lots ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OccupancyRow{}
	for rows.Next() {
		var l model.ParkingLot
		if err := rows.Scan(&l.Code, &l.Name, &l.TotalSpaces, &l.AvailableSpaces); err != nil {
			return nil, err
		}
		row := OccupancyRow{
			LotCode:        l.Code,
			Name:           l.Name,
			TotalSpaces:    l.TotalSpaces,
			OccupiedSpaces: l.TotalSpaces - l.AvailableSpaces,
		}
		if l.TotalSpaces > 0 {
			row.OccupancyRate = float64(row.OccupiedSpaces) / float64(l.TotalSpaces) * 100
		}
		items = append(items, row)
	}
	return items, rows.Err()
}
