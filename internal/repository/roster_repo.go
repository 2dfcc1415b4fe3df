package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RosterRepo is the read-only boundary to class enrollment. It supplies the
// denominator for attendance percentage and the student match for presence
// records; enrollment itself is managed elsewhere.
type RosterRepo struct {
	pool *pgxpool.Pool
}

func NewRosterRepo(pool *pgxpool.Pool) *RosterRepo {
	return &RosterRepo{pool: pool}
}

func (r *RosterRepo) EnrolledCount(ctx context.Context, classID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE class_id = $1`, classID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *RosterRepo) Match(ctx context.Context, classID uuid.UUID, email string) (*uuid.UUID, bool, error) {
	var studentID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT s.id
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		WHERE e.class_id = $1 AND LOWER(s.email) = $2`,
		classID, email,
	).Scan(&studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &studentID, true, nil
}
