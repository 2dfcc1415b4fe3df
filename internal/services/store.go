package services

import (
	"context"

	"github.com/google/uuid"

	"classpulse-backend/internal/models"
)

// SessionStore owns durable storage of the Session aggregate. Save persists
// the whole aggregate (session row plus attendee list) and must fail with
// repository.ErrVersionConflict when the stored version no longer matches.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByClass(ctx context.Context, classID uuid.UUID) ([]*models.Session, error)
	ListByStatus(ctx context.Context, status models.SessionStatus) ([]uuid.UUID, error)
	Save(ctx context.Context, session *models.Session) error
}

// ClassRoster is the enrollment collaborator. It supplies the denominator for
// attendance percentage and the roster match for studentId; it never gates
// presence recording.
type ClassRoster interface {
	EnrolledCount(ctx context.Context, classID uuid.UUID) (int, error)
	Match(ctx context.Context, classID uuid.UUID, email string) (studentID *uuid.UUID, enrolled bool, err error)
}

// AttendanceProvider is the external conferencing collaborator. Fetch errors
// are *ProviderError; the implementation owns timeouts and transient retries.
type AttendanceProvider interface {
	FetchParticipants(ctx context.Context, spaceID string) ([]models.ExternalParticipant, error)
}
