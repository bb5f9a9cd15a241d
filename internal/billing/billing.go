// Package billing implements the fee arithmetic applied when a parking
// session closes.  It is deliberately free of I/O so the rules can be
// unit tested and reused by the administrative correction path.
package billing

import "time"

// BilledHours converts a parked duration into billable hours.  Billing
// uses ceiling semantics: any started hour counts as a full hour, and a
// stay of any positive length is billed at least one hour.  A zero or
// negative duration (exit at or before entry, as can happen through an
// administrative correction) bills zero hours.
func BilledHours(entry, exit time.Time) uint32 {
	d := exit.Sub(entry)
	if d <= 0 {
		return 0
	}
	hours := d / time.Hour
	if d%time.Hour != 0 {
		hours++
	}
	return uint32(hours)
}

// ChargeCents returns the amount due for the given billable hours at the
// lot's hourly fee.  Both inputs and the result are in the currency's
// smallest unit, so the multiplication is exact and already rounded to
// two decimal places by construction.
func ChargeCents(hours uint32, feePerHourCents uint32) uint64 {
	return uint64(hours) * uint64(feePerHourCents)
}
