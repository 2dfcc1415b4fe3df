package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
	SyncPartial SyncStatus = "partial"
)

type AttendeeStatus string

const (
	AttendeeAttended    AttendeeStatus = "attended"
	AttendeeNotAttended AttendeeStatus = "not-attended"
	AttendeeLate        AttendeeStatus = "late"
	AttendeeExternal    AttendeeStatus = "external"
)

type JoinType string

const (
	JoinRosterEntry  JoinType = "roster-entry"
	JoinExternalLink JoinType = "external-link"
	JoinManual       JoinType = "manual"
)

// Session is one scheduled occurrence of an online class meeting. The
// attendee list is part of the aggregate and is always read and written as a
// whole; Version guards the read-modify-write cycle.
type Session struct {
	ID                     uuid.UUID          `json:"id"`
	ClassID                uuid.UUID          `json:"class_id"`
	Title                  string             `json:"title"`
	ScheduledTime          time.Time          `json:"scheduled_time"`
	PlannedDurationMinutes int                `json:"planned_duration_minutes"`
	ActualStartTime        *time.Time         `json:"actual_start_time"`
	ActualEndTime          *time.Time         `json:"actual_end_time"`
	Status                 SessionStatus      `json:"status"`
	ExternalSpaceID        *string            `json:"external_space_id"`
	SyncStatus             SyncStatus         `json:"sync_status"`
	LastSyncTime           *time.Time         `json:"last_sync_time"`
	Attendees              []*AttendeeSession `json:"attendees"`
	Stats                  SessionStats       `json:"stats"`
	Version                int64              `json:"-"`
	CreatedAt              time.Time          `json:"created_at"`
}

// AttendeeSession is one participant's presence record within a Session,
// keyed by lowercase email. Exactly one record exists per email per session.
type AttendeeSession struct {
	Email           string         `json:"email"`
	StudentID       *uuid.UUID     `json:"student_id,omitempty"`
	DisplayName     string         `json:"display_name"`
	JoinedAt        *time.Time     `json:"joined_at"`
	LeftAt          *time.Time     `json:"left_at"`
	LastHeartbeatAt *time.Time     `json:"last_heartbeat_at"`
	DurationMinutes *int           `json:"duration_minutes"`
	Status          AttendeeStatus `json:"status"`
	IsExternal      bool           `json:"is_external"`
	JoinType        JoinType       `json:"join_type"`
	AutoLeft        bool           `json:"auto_left"`
	AutoLeaveReason *string        `json:"auto_leave_reason,omitempty"`
	AttendanceScore int            `json:"attendance_score"`
}

// SessionStats is the computed aggregate, never hand-edited. It is recomputed
// on every attendee-list mutation before the aggregate is persisted.
type SessionStats struct {
	TotalEnrolled          int     `json:"total_enrolled"`
	TotalAttended          int     `json:"total_attended"`
	TotalExternal          int     `json:"total_external"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
	AttendancePercentage   int     `json:"attendance_percentage"`
}

// ExternalParticipant is one row of the conferencing provider's participant
// feed, already coerced into typed fields at the client boundary.
type ExternalParticipant struct {
	Email           string     `json:"email"`
	DisplayName     string     `json:"display_name"`
	JoinTime        time.Time  `json:"join_time"`
	LeaveTime       *time.Time `json:"leave_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	IsAnonymous     bool       `json:"is_anonymous"`
}

// Attendee returns the record for the given normalized email, or nil.
func (s *Session) Attendee(email string) *AttendeeSession {
	for _, a := range s.Attendees {
		if a.Email == email {
			return a
		}
	}
	return nil
}

// IsOpen reports whether the attendee is still considered present.
func (a *AttendeeSession) IsOpen() bool {
	return a.LeftAt == nil
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled: {SessionOngoing, SessionCancelled},
	SessionOngoing:   {SessionCompleted, SessionCancelled},
	SessionCompleted: {},
	SessionCancelled: {},
}

// CanTransitionTo reports whether the session state machine allows moving
// from s to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var syncTransitions = map[SyncStatus][]SyncStatus{
	SyncPending: {SyncSynced, SyncFailed, SyncPartial},
	SyncSynced:  {SyncSynced, SyncFailed, SyncPartial},
	SyncFailed:  {SyncSynced, SyncFailed, SyncPartial},
	SyncPartial: {SyncSynced, SyncFailed, SyncPartial},
}

// CanTransitionTo reports whether the sync state machine allows moving from
// s to next. Pending is only ever the initial state; every later sync attempt
// lands on one of the terminal-ish values.
func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	for _, allowed := range syncTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
