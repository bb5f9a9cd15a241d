package model

import "time"

// Session records a single parking visit in the `sessions` table: one
// car occupying one space from entry until exit.  A session is OPEN
// while ExitTime is nil and CLOSED once it is set; the close happens
// exactly once and fixes ChargedCents.  Any later change goes through
// the audited administrative correction path, never through the normal
// entry/exit flow.
//
// Fields:
//  ID           – primary key identifier.
//  TicketCode   – unique code printed on the ticket, generated at entry.
//  PlateNumber  – licence plate of the parked car.
//  LotCode      – code of the lot the car occupies.
//  EntryTime    – when the car entered (UTC).
//  ExitTime     – when the car left; nil while the session is open.
//  HoursBilled  – ceiling-rounded parked hours; 0 while open.
//  ChargedCents – amount charged at close; 0 while open.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Session struct {
	ID           uint64     // sessions.id
	TicketCode   string     // sessions.ticket_code
	PlateNumber  string     // sessions.plate_number
	LotCode      string     // sessions.lot_code
	EntryTime    time.Time  // sessions.entry_time
	ExitTime     *time.Time // sessions.exit_time (nullable)
	HoursBilled  uint32     // sessions.hours_billed
	ChargedCents uint64     // sessions.charged_cents
	CreatedAt    time.Time  // sessions.created_at
	UpdatedAt    time.Time  // sessions.updated_at
}

// Open reports whether the session is still occupying a space.
func (s *Session) Open() bool { return s.ExitTime == nil }
