package billing

import (
	"testing"
	"time"
)

func TestBilledHours(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		parked time.Duration
		want   uint32
	}{
		{"zero duration", 0, 0},
		{"negative duration", -30 * time.Minute, 0},
		{"one minute rounds up", time.Minute, 1},
		{"59 minutes", 59 * time.Minute, 1},
		{"exactly one hour", time.Hour, 1},
		{"61 minutes", 61 * time.Minute, 2},
		{"90 minutes", 90 * time.Minute, 2},
		{"exactly two hours", 2 * time.Hour, 2},
		{"two hours one second", 2*time.Hour + time.Second, 3},
		{"full day", 24 * time.Hour, 24},
	}

	for _, tt := range cases {
		if got := BilledHours(base, base.Add(tt.parked)); got != tt.want {
			t.Errorf("%s: BilledHours=%d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestChargeCents(t *testing.T) {
	cases := []struct {
		hours uint32
		fee   uint32
		want  uint64
	}{
		{0, 250, 0},
		{1, 250, 250},
		{2, 200, 400},  // 90 minutes at 2.00/h bills 2 hours = 4.00
		{2, 250, 500},  // 61 minutes at 2.50/h bills 2 hours = 5.00
		{3, 0, 0},      // free lot
		{24, 150, 3600},
	}

	for _, tt := range cases {
		if got := ChargeCents(tt.hours, tt.fee); got != tt.want {
			t.Errorf("ChargeCents(%d, %d)=%d, want %d", tt.hours, tt.fee, got, tt.want)
		}
	}
}

// The charged amount is derived from entry/exit/fee alone, so closing
// the same ticket with the same timestamps always yields the same bill.
func TestBillingDeterministic(t *testing.T) {
	entry := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	exit := entry.Add(90 * time.Minute)
	first := ChargeCents(BilledHours(entry, exit), 200)
	for i := 0; i < 5; i++ {
		if got := ChargeCents(BilledHours(entry, exit), 200); got != first {
			t.Fatalf("charge changed between computations: %d vs %d", got, first)
		}
	}
	if first != 400 {
		t.Fatalf("charge = %d cents, want 400", first)
	}
}
