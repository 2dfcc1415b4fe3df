package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"classpulse-backend/internal/models"
	"classpulse-backend/internal/repository"
)

// fakeStore keeps aggregates in memory with the same copy-on-read and
// version-checked save semantics as the pg-backed store.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	saves    int
}

func newFakeStore(sessions ...*models.Session) *fakeStore {
	s := &fakeStore{sessions: make(map[uuid.UUID]*models.Session)}
	for _, session := range sessions {
		if session.Version == 0 {
			session.Version = 1
		}
		s.sessions[session.ID] = cloneSession(session)
	}
	return s
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.Attendees = make([]*models.AttendeeSession, len(s.Attendees))
	for i, a := range s.Attendees {
		ac := *a
		c.Attendees[i] = &ac
	}
	return &c
}

func (f *fakeStore) Create(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.Status = models.SessionScheduled
	session.SyncStatus = models.SyncPending
	session.Version = 1
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(session), nil
}

func (f *fakeStore) ListByClass(ctx context.Context, classID uuid.UUID) ([]*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Session
	for _, s := range f.sessions {
		if s.ClassID == classID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, status models.SessionStatus) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range f.sessions {
		if s.Status == status {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) Save(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != session.Version {
		return repository.ErrVersionConflict
	}
	session.Version++
	f.sessions[session.ID] = cloneSession(session)
	f.saves++
	return nil
}

// mustGet returns the stored aggregate for assertions.
func (f *fakeStore) mustGet(id uuid.UUID) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSession(f.sessions[id])
}

type fakeRoster struct {
	enrolled int
	students map[string]uuid.UUID
}

func (f *fakeRoster) EnrolledCount(ctx context.Context, classID uuid.UUID) (int, error) {
	return f.enrolled, nil
}

func (f *fakeRoster) Match(ctx context.Context, classID uuid.UUID, email string) (*uuid.UUID, bool, error) {
	id, ok := f.students[email]
	if !ok {
		return nil, false, nil
	}
	return &id, true, nil
}

type fakeProvider struct {
	participants []models.ExternalParticipant
	err          error
	calls        int
	onFetch      func() // runs before returning, simulates in-flight changes
}

func (f *fakeProvider) FetchParticipants(ctx context.Context, spaceID string) ([]models.ExternalParticipant, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.participants, nil
}
