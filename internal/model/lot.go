package model

import "time"

// ParkingLot represents a physical parking facility as stored in the
// `parking_lots` table.  The available-space counter is the only
// mutable piece of capacity state; it is adjusted exclusively inside
// database transactions together with the session rows that consume
// or free the spaces, so that at every quiescent point
// available + open sessions == total.
//
// Fields:
//  ID              – primary key identifier.
//  Code            – unique, human-assigned lot code (immutable).
//  Name            – display name of the lot.
//  Location        – free-form address or description.
//  TotalSpaces     – fixed capacity of the lot.
//  AvailableSpaces – free spaces right now; 0 <= available <= total.
//  FeePerHourCents – hourly fee in the currency's smallest unit.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type ParkingLot struct {
	ID              uint64    // parking_lots.id
	Code            string    // parking_lots.code
	Name            string    // parking_lots.name
	Location        string    // parking_lots.location
	TotalSpaces     uint32    // parking_lots.total_spaces
	AvailableSpaces uint32    // parking_lots.available_spaces
	FeePerHourCents uint32    // parking_lots.fee_per_hour_cents
	CreatedAt       time.Time // parking_lots.created_at
	UpdatedAt       time.Time // parking_lots.updated_at
}
