package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classpulse-backend/internal/models"
)

// SessionRepo stores the Session aggregate: one sessions row plus its
// attendee list, written as a whole. The version column guards against
// writers that bypassed the per-session lock.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Status = models.SessionScheduled
	s.SyncStatus = models.SyncPending
	s.Version = 1

	statsBytes, _ := json.Marshal(s.Stats)

	query := `
		INSERT INTO sessions (id, class_id, title, scheduled_time, planned_duration_minutes,
			status, external_space_id, sync_status, stats_json, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.ClassID, s.Title, s.ScheduledTime, s.PlannedDurationMinutes,
		s.Status, s.ExternalSpaceID, s.SyncStatus, statsBytes, s.Version,
	).Scan(&s.CreatedAt)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s := &models.Session{}
	var statsBytes []byte

	query := `SELECT id, class_id, title, scheduled_time, planned_duration_minutes,
			actual_start_time, actual_end_time, status, external_space_id,
			sync_status, last_sync_time, stats_json, version, created_at
		FROM sessions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ClassID, &s.Title, &s.ScheduledTime, &s.PlannedDurationMinutes,
		&s.ActualStartTime, &s.ActualEndTime, &s.Status, &s.ExternalSpaceID,
		&s.SyncStatus, &s.LastSyncTime, &statsBytes, &s.Version, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(statsBytes) > 0 {
		json.Unmarshal(statsBytes, &s.Stats)
	}

	if err := r.loadAttendees(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) ListByClass(ctx context.Context, classID uuid.UUID) ([]*models.Session, error) {
	query := `SELECT id FROM sessions WHERE class_id = $1 ORDER BY scheduled_time DESC`

	rows, err := r.pool.Query(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *SessionRepo) ListByStatus(ctx context.Context, status models.SessionStatus) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM sessions WHERE status = $1`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save persists the whole aggregate in one transaction and bumps the version.
// Fails with ErrVersionConflict when the stored version moved since the read.
func (r *SessionRepo) Save(ctx context.Context, s *models.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	statsBytes, _ := json.Marshal(s.Stats)

	tag, err := tx.Exec(ctx, `
		UPDATE sessions
		SET title = $1, scheduled_time = $2, planned_duration_minutes = $3,
			actual_start_time = $4, actual_end_time = $5, status = $6,
			external_space_id = $7, sync_status = $8, last_sync_time = $9,
			stats_json = $10, version = version + 1
		WHERE id = $11 AND version = $12`,
		s.Title, s.ScheduledTime, s.PlannedDurationMinutes,
		s.ActualStartTime, s.ActualEndTime, s.Status,
		s.ExternalSpaceID, s.SyncStatus, s.LastSyncTime,
		statsBytes, s.ID, s.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_attendees WHERE session_id = $1`, s.ID); err != nil {
		return err
	}

	for i, a := range s.Attendees {
		_, err := tx.Exec(ctx, `
			INSERT INTO session_attendees (session_id, email, student_id, display_name,
				joined_at, left_at, last_heartbeat_at, duration_minutes, status,
				is_external, join_type, auto_left, auto_leave_reason, attendance_score, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			s.ID, a.Email, a.StudentID, a.DisplayName,
			a.JoinedAt, a.LeftAt, a.LastHeartbeatAt, a.DurationMinutes, a.Status,
			a.IsExternal, a.JoinType, a.AutoLeft, a.AutoLeaveReason, a.AttendanceScore, i,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}

	s.Version++
	return nil
}

func (r *SessionRepo) loadAttendees(ctx context.Context, s *models.Session) error {
	query := `SELECT email, student_id, display_name, joined_at, left_at, last_heartbeat_at,
			duration_minutes, status, is_external, join_type, auto_left, auto_leave_reason, attendance_score
		FROM session_attendees WHERE session_id = $1 ORDER BY position`

	rows, err := r.pool.Query(ctx, query, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		a := &models.AttendeeSession{}
		err := rows.Scan(
			&a.Email, &a.StudentID, &a.DisplayName, &a.JoinedAt, &a.LeftAt, &a.LastHeartbeatAt,
			&a.DurationMinutes, &a.Status, &a.IsExternal, &a.JoinType, &a.AutoLeft, &a.AutoLeaveReason, &a.AttendanceScore,
		)
		if err != nil {
			return err
		}
		s.Attendees = append(s.Attendees, a)
	}
	return rows.Err()
}
