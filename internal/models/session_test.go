package models

import (
	"testing"
	"time"
)

func TestSessionStatusTransitions(t *testing.T) {
	tests := []struct {
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{SessionScheduled, SessionOngoing, true},
		{SessionScheduled, SessionCancelled, true},
		{SessionScheduled, SessionCompleted, false},
		{SessionOngoing, SessionCompleted, true},
		{SessionOngoing, SessionCancelled, true},
		{SessionOngoing, SessionScheduled, false},
		{SessionCompleted, SessionOngoing, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCancelled, SessionOngoing, false},
		{SessionCancelled, SessionScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestSyncStatusTransitions(t *testing.T) {
	outcomes := []SyncStatus{SyncSynced, SyncFailed, SyncPartial}

	for _, from := range []SyncStatus{SyncPending, SyncSynced, SyncFailed, SyncPartial} {
		for _, to := range outcomes {
			if !from.CanTransitionTo(to) {
				t.Errorf("Expected %s -> %s to be allowed", from, to)
			}
		}
		if from.CanTransitionTo(SyncPending) {
			t.Errorf("Nothing may transition back to pending, %s did", from)
		}
	}
}

func TestSessionAttendeeLookup(t *testing.T) {
	s := &Session{Attendees: []*AttendeeSession{
		{Email: "a@example.com"},
		{Email: "b@example.com"},
	}}

	if got := s.Attendee("b@example.com"); got == nil || got.Email != "b@example.com" {
		t.Errorf("Attendee lookup failed, got %v", got)
	}
	if got := s.Attendee("missing@example.com"); got != nil {
		t.Errorf("Expected nil for unknown email, got %v", got)
	}
}

func TestAttendeeSessionIsOpen(t *testing.T) {
	left := time.Now()

	open := &AttendeeSession{}
	if !open.IsOpen() {
		t.Errorf("Record without leftAt must be open")
	}

	closed := &AttendeeSession{LeftAt: &left}
	if closed.IsOpen() {
		t.Errorf("Record with leftAt must be closed")
	}
}
