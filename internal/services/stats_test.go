package services

import (
	"testing"
	"time"

	"classpulse-backend/internal/models"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestComputeStats(t *testing.T) {
	attended := func(duration *int) *models.AttendeeSession {
		return &models.AttendeeSession{Status: models.AttendeeAttended, DurationMinutes: duration}
	}

	tests := []struct {
		name      string
		attendees []*models.AttendeeSession
		enrolled  int
		want      models.SessionStats
	}{
		{
			name:      "two of ten attended",
			attendees: []*models.AttendeeSession{attended(intPtr(50)), attended(intPtr(40))},
			enrolled:  10,
			want: models.SessionStats{
				TotalAttended:          2,
				TotalEnrolled:          10,
				AverageDurationMinutes: 45,
				AttendancePercentage:   20,
			},
		},
		{
			name: "external counts toward attendance",
			attendees: []*models.AttendeeSession{
				attended(intPtr(60)),
				{Status: models.AttendeeExternal, DurationMinutes: intPtr(30)},
			},
			enrolled: 4,
			want: models.SessionStats{
				TotalAttended:          2,
				TotalExternal:          1,
				TotalEnrolled:          4,
				AverageDurationMinutes: 45,
				AttendancePercentage:   50,
			},
		},
		{
			name: "late and not-attended excluded",
			attendees: []*models.AttendeeSession{
				attended(intPtr(55)),
				{Status: models.AttendeeLate, DurationMinutes: intPtr(40)},
				{Status: models.AttendeeNotAttended},
			},
			enrolled: 10,
			want: models.SessionStats{
				TotalAttended:          1,
				TotalEnrolled:          10,
				AverageDurationMinutes: 55,
				AttendancePercentage:   10,
			},
		},
		{
			name:      "unknown duration skipped in average",
			attendees: []*models.AttendeeSession{attended(intPtr(30)), attended(nil)},
			enrolled:  2,
			want: models.SessionStats{
				TotalAttended:          2,
				TotalEnrolled:          2,
				AverageDurationMinutes: 30,
				AttendancePercentage:   100,
			},
		},
		{
			name:      "zero enrollment yields zero percentage",
			attendees: []*models.AttendeeSession{attended(intPtr(60))},
			enrolled:  0,
			want: models.SessionStats{
				TotalAttended:          1,
				AverageDurationMinutes: 60,
			},
		},
		{
			name:     "empty session",
			enrolled: 10,
			want:     models.SessionStats{TotalEnrolled: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStats(60, tt.attendees, tt.enrolled)
			if got != tt.want {
				t.Errorf("ComputeStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeStats_OrderIndependent(t *testing.T) {
	a := &models.AttendeeSession{Status: models.AttendeeAttended, DurationMinutes: intPtr(50)}
	b := &models.AttendeeSession{Status: models.AttendeeExternal, DurationMinutes: intPtr(30)}
	c := &models.AttendeeSession{Status: models.AttendeeLate}

	forward := ComputeStats(60, []*models.AttendeeSession{a, b, c}, 10)
	reverse := ComputeStats(60, []*models.AttendeeSession{c, b, a}, 10)
	if forward != reverse {
		t.Errorf("Stats depend on attendee order: %+v vs %+v", forward, reverse)
	}
}

func TestAttendanceScore(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		planned  int
		joinedAt *time.Time
		duration *int
		want     int
	}{
		{"on time full duration", 60, timePtr(scheduled), intPtr(60), 100},
		{"on time unknown duration", 60, timePtr(scheduled), nil, 100},
		{"late join penalized", 60, timePtr(scheduled.Add(6 * time.Minute)), intPtr(54), 80},
		{"half duration", 60, timePtr(scheduled), intPtr(30), 50},
		{"overstay not rewarded", 60, timePtr(scheduled), intPtr(90), 100},
		{"penalties clamp at zero", 60, timePtr(scheduled.Add(50 * time.Minute)), intPtr(5), 0},
		{"leave only scores zero", 60, nil, intPtr(10), 0},
		{"early join no bonus", 60, timePtr(scheduled.Add(-10 * time.Minute)), intPtr(60), 100},
		{"zero planned duration", 0, timePtr(scheduled), intPtr(10), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attendanceScore(scheduled, tt.planned, tt.joinedAt, tt.duration)
			if got != tt.want {
				t.Errorf("attendanceScore() = %d, want %d", got, tt.want)
			}
		})
	}
}
