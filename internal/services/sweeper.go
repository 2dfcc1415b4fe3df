package services

import (
	"context"
	"log"
	"time"

	"classpulse-backend/internal/models"
)

// AutoLeaveSweeper periodically infers departures from stale heartbeats
// across all ongoing sessions. Sessions are swept independently; one
// session's failure never blocks another's.
type AutoLeaveSweeper struct {
	store      SessionStore
	tracker    *PresenceTracker
	staleAfter time.Duration
	interval   time.Duration
	stopChan   chan struct{}
}

func NewAutoLeaveSweeper(store SessionStore, tracker *PresenceTracker, staleAfter, interval time.Duration) *AutoLeaveSweeper {
	return &AutoLeaveSweeper{
		store:      store,
		tracker:    tracker,
		staleAfter: staleAfter,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

func (s *AutoLeaveSweeper) Start() {
	go s.loop()
	log.Printf("Auto-leave sweeper started (stale after %v, every %v)", s.staleAfter, s.interval)
}

func (s *AutoLeaveSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *AutoLeaveSweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background(), time.Now().UTC())
		}
	}
}

// Sweep runs auto-leave detection once over every ongoing and completed
// session. Completed sessions are included because the explicit end signal
// leaves open records for auto-leave to close.
func (s *AutoLeaveSweeper) Sweep(ctx context.Context, now time.Time) {
	for _, status := range []models.SessionStatus{models.SessionOngoing, models.SessionCompleted} {
		ids, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			log.Printf("Auto-leave sweep: failed to list %s sessions: %v", status, err)
			continue
		}

		for _, id := range ids {
			closed, err := s.tracker.DetectAutoLeave(ctx, id, s.staleAfter, now)
			if err != nil {
				log.Printf("Auto-leave sweep: session %s: %v", id, err)
				continue
			}
			if closed > 0 {
				log.Printf("Auto-leave sweep: session %s: closed %d stale records", id, closed)
			}
		}
	}
}
