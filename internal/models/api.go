package models

import "time"

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type CreateSessionRequest struct {
	Title                  string  `json:"title"`
	ScheduledTime          string  `json:"scheduled_time"` // RFC 3339
	PlannedDurationMinutes int     `json:"planned_duration_minutes"`
	ExternalSpaceID        *string `json:"external_space_id"`
}

type JoinRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	JoinType    string `json:"join_type"` // "roster-entry" | "external-link" | "manual"
	At          string `json:"at,omitempty"`
}

type HeartbeatRequest struct {
	Email string `json:"email"`
	At    string `json:"at,omitempty"`
}

type LeaveRequest struct {
	Email string `json:"email"`
	At    string `json:"at,omitempty"`
}

// SyncResponse matches the documented sync contract: syncedCount is the
// number of matched local records corrected from the feed, externalCount the
// number of newly discovered external attendees.
type SyncResponse struct {
	Success       bool   `json:"success"`
	SyncedCount   int    `json:"syncedCount"`
	ExternalCount int    `json:"externalCount"`
	Error         string `json:"error,omitempty"`
}

// ParseEventTime parses an optional client-supplied event timestamp, falling
// back to now. Presence sources that batch-report events carry their own
// timestamps; live clients omit the field.
func ParseEventTime(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
