package services

import (
	"math"
	"time"

	"classpulse-backend/internal/models"
)

// ComputeStats derives the session aggregate statistics from the attendee
// list. Pure and order-independent; every write path calls it after mutating
// the list and before persisting, so stored stats never drift.
func ComputeStats(plannedMinutes int, attendees []*models.AttendeeSession, totalEnrolled int) models.SessionStats {
	stats := models.SessionStats{TotalEnrolled: totalEnrolled}

	durationSum := 0
	durationCount := 0
	for _, a := range attendees {
		if a.Status == models.AttendeeExternal {
			stats.TotalExternal++
		}
		if a.Status != models.AttendeeAttended && a.Status != models.AttendeeExternal {
			continue
		}
		stats.TotalAttended++
		if a.DurationMinutes != nil {
			durationSum += *a.DurationMinutes
			durationCount++
		}
	}

	if durationCount > 0 {
		stats.AverageDurationMinutes = float64(durationSum) / float64(durationCount)
	}

	if totalEnrolled > 0 {
		pct := int(math.Round(100 * float64(stats.TotalAttended) / float64(totalEnrolled)))
		stats.AttendancePercentage = clampInt(pct, 0, 100)
	}

	return stats
}

// attendanceScore applies the reference scoring formula: 100 minus a linear
// late-join penalty and a linear shortfall penalty, clamped to [0,100].
// Leave-only records (no join observed) score 0.
func attendanceScore(scheduled time.Time, plannedMinutes int, joinedAt *time.Time, durationMinutes *int) int {
	if joinedAt == nil {
		return 0
	}
	if plannedMinutes <= 0 {
		return 100
	}

	score := 100.0
	if joinedAt.After(scheduled) {
		late := joinedAt.Sub(scheduled).Minutes()
		score -= 100 * late / float64(plannedMinutes)
	}
	if durationMinutes != nil {
		ratio := float64(*durationMinutes) / float64(plannedMinutes)
		if ratio < 1 {
			score -= 100 * (1 - ratio)
		}
	}

	return clampInt(int(math.Round(score)), 0, 100)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// minutesBetween returns the whole minutes from start to end, clamped at 0.
func minutesBetween(start, end time.Time) int {
	m := int(end.Sub(start).Minutes())
	if m < 0 {
		return 0
	}
	return m
}
