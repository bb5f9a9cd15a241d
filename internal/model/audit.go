package model

import "time"

// Audit log actions.  Every security-relevant or state-changing
// operation appends exactly one row tagged with one of these values,
// inside the same database transaction as the change itself.
const (
	ActionUserRegistered = "USER_REGISTERED"
	ActionLoginSucceeded = "LOGIN_SUCCEEDED"
	ActionLoginFailed    = "LOGIN_FAILED"
	ActionSessionOpened  = "SESSION_OPENED"
	ActionSessionClosed  = "SESSION_CLOSED"
	ActionSessionUpdated = "SESSION_UPDATED"
	ActionSessionDeleted = "SESSION_DELETED"
	ActionLotCreated     = "LOT_CREATED"
	ActionLotUpdated     = "LOT_UPDATED"
	ActionLotDeleted     = "LOT_DELETED"
)

// auditActions is the set of valid action tags, used to validate
// filter parameters on the log listing endpoint.
var auditActions = map[string]bool{
	ActionUserRegistered: true,
	ActionLoginSucceeded: true,
	ActionLoginFailed:    true,
	ActionSessionOpened:  true,
	ActionSessionClosed:  true,
	ActionSessionUpdated: true,
	ActionSessionDeleted: true,
	ActionLotCreated:     true,
	ActionLotUpdated:     true,
	ActionLotDeleted:     true,
}

// ValidAuditAction reports whether the given tag is a known audit action.
func ValidAuditAction(action string) bool { return auditActions[action] }

// AuditLog mirrors the append-only `audit_logs` table.  Rows are never
// updated or deleted.  ActingUserID is nil for unauthenticated events
// such as failed logins; TicketCode and LotCode are set when the action
// concerns a specific session or lot.
//
// Fields:
//  ID           – primary key identifier.
//  Action       – one of the Action* constants above.
//  ActingUserID – user who performed the action (nullable).
//  TicketCode   – related session's ticket code (nullable).
//  LotCode      – related lot's code (nullable).
//  Detail       – short human-readable summary of the change.
//  CreatedAt    – when the action happened.
type AuditLog struct {
	ID           uint64     // audit_logs.id
	Action       string     // audit_logs.action
	ActingUserID *uint64    // audit_logs.acting_user_id (nullable)
	TicketCode   *string    // audit_logs.ticket_code (nullable)
	LotCode      *string    // audit_logs.lot_code (nullable)
	Detail       string     // audit_logs.detail
	CreatedAt    time.Time  // audit_logs.created_at
}
