package model

import "testing"

func TestValidAuditAction(t *testing.T) {
	for _, action := range []string{
		ActionUserRegistered, ActionLoginSucceeded, ActionLoginFailed,
		ActionSessionOpened, ActionSessionClosed, ActionSessionUpdated,
		ActionSessionDeleted, ActionLotCreated, ActionLotUpdated,
		ActionLotDeleted,
	} {
		if !ValidAuditAction(action) {
			t.Errorf("known action %q reported invalid", action)
		}
	}
	for _, action := range []string{"", "session_opened", "DROPPED_TABLE"} {
		if ValidAuditAction(action) {
			t.Errorf("unknown action %q reported valid", action)
		}
	}
}

func TestSessionOpen(t *testing.T) {
	var s Session
	if !s.Open() {
		t.Error("session without exit time should be open")
	}
	exit := s.EntryTime
	s.ExitTime = &exit
	if s.Open() {
		t.Error("session with exit time should be closed")
	}
}
