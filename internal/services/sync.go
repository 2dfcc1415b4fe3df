package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"strings"
	"time"

	"classpulse-backend/internal/models"

	"github.com/google/uuid"
)

// SyncResult reports what a reconciliation run changed.
type SyncResult struct {
	SyncedCount   int // local records corrected from the external feed
	ExternalCount int // external-only attendees added by this run
}

// SyncService reconciles locally tracked presence with the authoritative
// participant log of the external conferencing provider. The provider fetch
// runs outside the per-session critical section; only merge-and-persist is
// serialized.
type SyncService struct {
	store        SessionStore
	roster       ClassRoster
	provider     AttendanceProvider
	locks        SessionLocker
	graceMinutes int
}

func NewSyncService(store SessionStore, roster ClassRoster, provider AttendanceProvider, locks SessionLocker, graceMinutes int) *SyncService {
	return &SyncService{
		store:        store,
		roster:       roster,
		provider:     provider,
		locks:        locks,
		graceMinutes: graceMinutes,
	}
}

// Sync fetches the provider's participant log for the session's external
// space and merges it into the stored attendee list. Local-only records are
// never removed; matched records have their timing corrected; unmatched
// external records are added. On provider failure the attendee list is left
// exactly as it was and only syncStatus=failed is persisted.
func (s *SyncService) Sync(ctx context.Context, sessionID uuid.UUID) (*SyncResult, error) {
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if session.Status == models.SessionCancelled {
		return nil, &SessionClosedError{Message: "Session is cancelled"}
	}

	spaceID, err := resolveSpaceID(session)
	if err != nil {
		return nil, err
	}

	// No lock held here: the fetch may take arbitrarily long and must not
	// block presence writes on the same session.
	participants, fetchErr := s.provider.FetchParticipants(ctx, spaceID)
	if fetchErr != nil {
		if markErr := s.markSyncFailed(ctx, sessionID); markErr != nil {
			log.Printf("Sync %s: failed to record failed sync status: %v", sessionID, markErr)
		}
		return nil, fetchErr
	}

	release, err := s.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Reload under the lock: presence writes may have landed during the
	// fetch, and the session may have been cancelled in flight.
	session, err = s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if session.Status == models.SessionCancelled {
		return nil, &SessionClosedError{Message: "Session was cancelled during sync, fetched data discarded"}
	}

	result := mergeParticipants(session, spaceID, participants, time.Duration(s.graceMinutes)*time.Minute)

	now := time.Now().UTC()
	session.LastSyncTime = &now
	session.SyncStatus = syncOutcome(session, participants)

	if earliest, latest, ok := externalBounds(participants); ok {
		if session.ActualStartTime == nil || earliest.Before(*session.ActualStartTime) {
			session.ActualStartTime = &earliest
		}
		if latest != nil {
			session.ActualEndTime = latest
			if session.Status == models.SessionOngoing && session.Status.CanTransitionTo(models.SessionCompleted) {
				session.Status = models.SessionCompleted
			}
		}
	}

	enrolled, err := s.roster.EnrolledCount(ctx, session.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrollment: %w", err)
	}
	session.Stats = ComputeStats(session.PlannedDurationMinutes, session.Attendees, enrolled)

	if err := s.store.Save(ctx, session); err != nil {
		return nil, mapStoreError(err)
	}

	log.Printf("Sync %s: %d participants fetched, %d matched, %d external added, status %s",
		sessionID, len(participants), result.SyncedCount, result.ExternalCount, session.SyncStatus)
	return result, nil
}

// markSyncFailed persists syncStatus=failed without touching the attendee
// list, so a failed attempt is visible but leaves presence data intact.
func (s *SyncService) markSyncFailed(ctx context.Context, sessionID uuid.UUID) error {
	release, err := s.locks.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return mapStoreError(err)
	}

	now := time.Now().UTC()
	session.SyncStatus = models.SyncFailed
	session.LastSyncTime = &now

	if err := s.store.Save(ctx, session); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func resolveSpaceID(session *models.Session) (string, error) {
	if session.ExternalSpaceID == nil || strings.TrimSpace(*session.ExternalSpaceID) == "" {
		return "", newValidationError("external_space_id", "InvalidExternalReference: session has no external conferencing space")
	}
	return strings.TrimSpace(*session.ExternalSpaceID), nil
}

// mergeParticipants merges the external feed into the attendee list. The
// merge key is lowercase email; anonymous rows get a stable synthetic key so
// re-running an unchanged feed stays idempotent. Local-only records are
// never deleted.
func mergeParticipants(session *models.Session, spaceID string, participants []models.ExternalParticipant, grace time.Duration) *SyncResult {
	result := &SyncResult{}

	for _, p := range participants {
		email := NormalizeEmail(p.Email)
		if email == "" || p.IsAnonymous {
			email = anonymousKey(spaceID, p)
		}

		duration := externalDuration(p)

		if existing := session.Attendee(email); existing != nil {
			applyExternalTiming(session, existing, p, duration, grace)
			result.SyncedCount++
			continue
		}

		joinedAt := p.JoinTime
		session.Attendees = append(session.Attendees, &models.AttendeeSession{
			Email:           email,
			DisplayName:     p.DisplayName,
			JoinedAt:        &joinedAt,
			LeftAt:          p.LeaveTime,
			DurationMinutes: duration,
			Status:          models.AttendeeExternal,
			IsExternal:      true,
			JoinType:        models.JoinExternalLink,
			AttendanceScore: attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, &joinedAt, duration),
		})
		result.ExternalCount++
	}

	return result
}

// applyExternalTiming overwrites timing fields from the authoritative record
// while preserving local identity fields (studentId, displayName, joinType).
func applyExternalTiming(session *models.Session, attendee *models.AttendeeSession, p models.ExternalParticipant, duration *int, grace time.Duration) {
	joinedAt := p.JoinTime
	attendee.JoinedAt = &joinedAt
	attendee.LeftAt = p.LeaveTime
	attendee.DurationMinutes = duration
	if attendee.DisplayName == "" {
		attendee.DisplayName = p.DisplayName
	}

	// A leave-only record gains its join from the feed; re-derive its status
	// from the corrected timing. External and already-attributed records keep
	// their status.
	if attendee.Status == models.AttendeeNotAttended {
		attendee.Status = models.AttendeeAttended
		if joinedAt.After(session.ScheduledTime.Add(grace)) {
			attendee.Status = models.AttendeeLate
		}
	}
	attendee.AttendanceScore = attendanceScore(session.ScheduledTime, session.PlannedDurationMinutes, attendee.JoinedAt, duration)
}

func externalDuration(p models.ExternalParticipant) *int {
	if p.DurationMinutes != nil {
		d := *p.DurationMinutes
		if d < 0 {
			d = 0
		}
		return &d
	}
	if p.LeaveTime != nil {
		d := minutesBetween(p.JoinTime, *p.LeaveTime)
		return &d
	}
	return nil
}

// anonymousKey derives a stable synthetic merge key for provider rows with no
// email, so identical feeds merge to the same record on every run.
func anonymousKey(spaceID string, p models.ExternalParticipant) string {
	sum := sha256.Sum256([]byte(spaceID + "|" + p.DisplayName + "|" + p.JoinTime.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("anon-%x@external.invalid", sum[:4])
}

// syncOutcome picks the post-merge sync status. A zero-participant feed on a
// session that was already synced with attendees signals a provider-side gap
// rather than an empty meeting.
func syncOutcome(session *models.Session, participants []models.ExternalParticipant) models.SyncStatus {
	if len(participants) == 0 && session.SyncStatus == models.SyncSynced && len(session.Attendees) > 0 {
		return models.SyncPartial
	}
	return models.SyncSynced
}

// externalBounds returns the earliest join and latest leave across the feed.
// The latest leave is nil when any participant is still present, in which
// case no end time is derivable.
func externalBounds(participants []models.ExternalParticipant) (time.Time, *time.Time, bool) {
	if len(participants) == 0 {
		return time.Time{}, nil, false
	}

	earliest := participants[0].JoinTime
	var latest *time.Time
	allLeft := true
	for i := range participants {
		p := participants[i]
		if p.JoinTime.Before(earliest) {
			earliest = p.JoinTime
		}
		if p.LeaveTime == nil {
			allLeft = false
			continue
		}
		if latest == nil || p.LeaveTime.After(*latest) {
			leave := *p.LeaveTime
			latest = &leave
		}
	}

	if !allLeft {
		latest = nil
	}
	return earliest, latest, true
}
