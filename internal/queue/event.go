// Package queue defines message payloads exchanged over the message broker.
package queue

// AuditEvent mirrors an audit log row that was just committed.  It is
// published after the owning transaction commits, so downstream
// consumers (ops log, notifications, analytics) never see an action
// that did not durably happen.  The database row remains the source of
// truth; this event is a best-effort fan-out.
type AuditEvent struct {
	AuditID      uint64  `json:"audit_id"`
	Action       string  `json:"action"`
	ActingUserID *uint64 `json:"acting_user_id,omitempty"`
	TicketCode   *string `json:"ticket_code,omitempty"`
	LotCode      *string `json:"lot_code,omitempty"`
	Detail       string  `json:"detail"`
	OccurredAt   string  `json:"occurred_at"`
}
