package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classpulse-backend/internal/models"
	"classpulse-backend/internal/repository"

	"github.com/google/uuid"
)

const autoLeaveReasonHeartbeatTimeout = "heartbeat-timeout"

// PresenceTracker mutates attendee records within a session aggregate from
// join/heartbeat/leave signals and from timeout-based inference. Every write
// runs lock -> load -> mutate -> recompute stats -> save, with per-session
// serialization so concurrent presence events cannot drop each other.
type PresenceTracker struct {
	store        SessionStore
	roster       ClassRoster
	locks        SessionLocker
	graceMinutes int
}

func NewPresenceTracker(store SessionStore, roster ClassRoster, locks SessionLocker, graceMinutes int) *PresenceTracker {
	return &PresenceTracker{
		store:        store,
		roster:       roster,
		locks:        locks,
		graceMinutes: graceMinutes,
	}
}

// NormalizeEmail lowercases and trims the merge key used across all presence
// sources.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordJoin registers a participant joining the session. Idempotent: a
// duplicate join for an open record only refreshes the heartbeat and never
// resets joinedAt or creates a second record. A join for a closed record
// reopens it, keeping the original joinedAt so the duration derived on the
// next leave spans the whole visit. The first join moves a scheduled session
// to ongoing.
func (t *PresenceTracker) RecordJoin(ctx context.Context, sessionID uuid.UUID, email, displayName string, joinType models.JoinType, at time.Time) (*models.Session, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, newValidationError("email", "Email is required")
	}
	switch joinType {
	case models.JoinRosterEntry, models.JoinExternalLink, models.JoinManual:
	default:
		return nil, newValidationError("join_type", "join_type must be roster-entry, external-link, or manual")
	}

	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if err := rejectPresenceWrite(session); err != nil {
			return err
		}

		if session.Status == models.SessionScheduled {
			session.Status = models.SessionOngoing
			if session.ActualStartTime == nil {
				startedAt := at
				session.ActualStartTime = &startedAt
			}
		}

		grace := time.Duration(t.graceMinutes) * time.Minute

		if existing := session.Attendee(email); existing != nil {
			heartbeat := at
			existing.LastHeartbeatAt = &heartbeat
			if !existing.IsOpen() {
				existing.LeftAt = nil
				existing.DurationMinutes = nil
				existing.AutoLeft = false
				existing.AutoLeaveReason = nil
				if existing.JoinedAt == nil {
					joinedAt := at
					existing.JoinedAt = &joinedAt
				}
				if existing.Status == models.AttendeeNotAttended {
					existing.Status = models.AttendeeAttended
					if existing.JoinedAt.After(session.ScheduledTime.Add(grace)) {
						existing.Status = models.AttendeeLate
					}
				}
				existing.AttendanceScore = attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, existing.JoinedAt, nil)
			}
			return nil
		}

		studentID, enrolled, err := t.roster.Match(ctx, session.ClassID, email)
		if err != nil {
			return fmt.Errorf("failed to match roster: %w", err)
		}

		status := models.AttendeeAttended
		if at.After(session.ScheduledTime.Add(grace)) {
			status = models.AttendeeLate
		}

		joinedAt := at
		heartbeat := at
		session.Attendees = append(session.Attendees, &models.AttendeeSession{
			Email:           email,
			StudentID:       studentID,
			DisplayName:     displayName,
			JoinedAt:        &joinedAt,
			LastHeartbeatAt: &heartbeat,
			Status:          status,
			IsExternal:      !enrolled,
			JoinType:        joinType,
			AttendanceScore: attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, &joinedAt, nil),
		})
		return nil
	})
}

// RecordHeartbeat refreshes the liveness timestamp of an open attendee
// record. The caller must have joined first.
func (t *PresenceTracker) RecordHeartbeat(ctx context.Context, sessionID uuid.UUID, email string, at time.Time) (*models.Session, error) {
	email = NormalizeEmail(email)

	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if err := rejectPresenceWrite(session); err != nil {
			return err
		}

		attendee := session.Attendee(email)
		if attendee == nil || !attendee.IsOpen() {
			return &NotFoundError{Message: "No open presence record for this email, join first"}
		}

		heartbeat := at
		attendee.LastHeartbeatAt = &heartbeat
		return nil
	})
}

// RecordLeave closes an open attendee record and derives its duration. A
// leave without a prior join is retained as a not-attended record rather than
// rejected, since some sources report leave-only signals.
func (t *PresenceTracker) RecordLeave(ctx context.Context, sessionID uuid.UUID, email string, at time.Time) (*models.Session, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, newValidationError("email", "Email is required")
	}

	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if err := rejectPresenceWrite(session); err != nil {
			return err
		}

		attendee := session.Attendee(email)
		if attendee == nil {
			leftAt := at
			session.Attendees = append(session.Attendees, &models.AttendeeSession{
				Email:    email,
				LeftAt:   &leftAt,
				Status:   models.AttendeeNotAttended,
				JoinType: models.JoinManual,
			})
			return nil
		}

		if !attendee.IsOpen() {
			return nil
		}

		leftAt := at
		attendee.LeftAt = &leftAt
		if attendee.JoinedAt != nil {
			duration := minutesBetween(*attendee.JoinedAt, at)
			attendee.DurationMinutes = &duration
		}
		attendee.AttendanceScore = attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, attendee.JoinedAt, attendee.DurationMinutes)
		return nil
	})
}

// DetectAutoLeave closes every open attendee record whose last heartbeat is
// older than staleAfter, using the stale heartbeat itself as the departure
// time. Idempotent: already-closed records are never touched, and the
// aggregate is only persisted when something changed.
func (t *PresenceTracker) DetectAutoLeave(ctx context.Context, sessionID uuid.UUID, staleAfter time.Duration, now time.Time) (int, error) {
	release, err := t.locks.Acquire(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	defer release()

	session, err := t.store.GetByID(ctx, sessionID)
	if err != nil {
		return 0, mapStoreError(err)
	}

	if session.Status == models.SessionCancelled {
		return 0, &SessionClosedError{Message: "Session is cancelled"}
	}

	closed := 0
	for _, attendee := range session.Attendees {
		if !attendee.IsOpen() || attendee.LastHeartbeatAt == nil {
			continue
		}
		if now.Sub(*attendee.LastHeartbeatAt) <= staleAfter {
			continue
		}

		leftAt := *attendee.LastHeartbeatAt
		attendee.LeftAt = &leftAt
		if attendee.JoinedAt != nil {
			duration := minutesBetween(*attendee.JoinedAt, leftAt)
			attendee.DurationMinutes = &duration
		}
		attendee.AutoLeft = true
		reason := autoLeaveReasonHeartbeatTimeout
		attendee.AutoLeaveReason = &reason
		attendee.AttendanceScore = attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, attendee.JoinedAt, attendee.DurationMinutes)
		closed++
	}

	if closed == 0 {
		return 0, nil
	}

	if err := t.recomputeAndSave(ctx, session); err != nil {
		return 0, err
	}
	return closed, nil
}

// Start is the explicit start signal: scheduled -> ongoing. Starting an
// already-ongoing session is a no-op.
func (t *PresenceTracker) Start(ctx context.Context, sessionID uuid.UUID, at time.Time) (*models.Session, error) {
	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if session.Status == models.SessionOngoing {
			return nil
		}
		if session.Status == models.SessionCancelled {
			return &SessionClosedError{Message: "Session is cancelled"}
		}
		if !session.Status.CanTransitionTo(models.SessionOngoing) {
			return newValidationError("status", fmt.Sprintf("Cannot start a %s session", session.Status))
		}
		session.Status = models.SessionOngoing
		startedAt := at
		session.ActualStartTime = &startedAt
		return nil
	})
}

// End is the explicit end signal: ongoing -> completed. Open attendee records
// are left for auto-leave or reconciliation to close.
func (t *PresenceTracker) End(ctx context.Context, sessionID uuid.UUID, at time.Time) (*models.Session, error) {
	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if session.Status == models.SessionCompleted {
			return nil
		}
		if session.Status == models.SessionCancelled {
			return &SessionClosedError{Message: "Session is cancelled"}
		}
		if !session.Status.CanTransitionTo(models.SessionCompleted) {
			return newValidationError("status", fmt.Sprintf("Cannot end a %s session", session.Status))
		}
		session.Status = models.SessionCompleted
		endedAt := at
		session.ActualEndTime = &endedAt
		return nil
	})
}

// Cancel moves a scheduled or ongoing session to the terminal cancelled
// state. No further presence or reconciliation writes are accepted after.
func (t *PresenceTracker) Cancel(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return t.withSession(ctx, sessionID, func(session *models.Session) error {
		if session.Status == models.SessionCancelled {
			return nil
		}
		if !session.Status.CanTransitionTo(models.SessionCancelled) {
			return newValidationError("status", fmt.Sprintf("Cannot cancel a %s session", session.Status))
		}
		session.Status = models.SessionCancelled
		return nil
	})
}

// withSession runs a mutation inside the per-session critical section and
// persists the aggregate with freshly computed stats.
func (t *PresenceTracker) withSession(ctx context.Context, sessionID uuid.UUID, mutate func(*models.Session) error) (*models.Session, error) {
	release, err := t.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := t.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := mutate(session); err != nil {
		return nil, err
	}

	if err := t.recomputeAndSave(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (t *PresenceTracker) recomputeAndSave(ctx context.Context, session *models.Session) error {
	enrolled, err := t.roster.EnrolledCount(ctx, session.ClassID)
	if err != nil {
		return fmt.Errorf("failed to count enrollment: %w", err)
	}
	session.Stats = ComputeStats(session.PlannedDurationMinutes, session.Attendees, enrolled)

	if err := t.store.Save(ctx, session); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func rejectPresenceWrite(session *models.Session) error {
	switch session.Status {
	case models.SessionCancelled:
		return &SessionClosedError{Message: "Session is cancelled"}
	case models.SessionCompleted:
		return &SessionClosedError{Message: "Session is completed"}
	}
	return nil
}

func mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Session not found"}
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return &ConflictError{Message: "Concurrent update lost the race, try again"}
	}
	return err
}
