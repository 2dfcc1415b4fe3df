package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"classpulse-backend/internal/models"
)

// MeetClient fetches the authoritative participant log from the conferencing
// provider's REST API. It is an explicitly injected client with its own
// timeout; transient failures (network errors, 429, 5xx) are retried with
// exponential backoff, permanent failures are surfaced immediately.
type MeetClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewMeetClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *MeetClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &MeetClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
	}
}

// Close releases client resources. Present so the lifecycle is explicit at
// the wiring site; the underlying http.Client needs no teardown.
func (c *MeetClient) Close() {}

type meetParticipant struct {
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	JoinTime        string `json:"join_time"`
	LeaveTime       string `json:"leave_time,omitempty"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	IsAnonymous     bool   `json:"is_anonymous"`
}

type meetParticipantList struct {
	Participants []meetParticipant `json:"participants"`
}

// FetchParticipants returns the participant log for a conferencing space,
// coerced into typed records at this boundary. Errors are *ProviderError.
func (c *MeetClient) FetchParticipants(ctx context.Context, spaceID string) ([]models.ExternalParticipant, error) {
	path := fmt.Sprintf("/v1/spaces/%s/participants", url.PathEscape(spaceID))

	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var list meetParticipantList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("failed to parse participant list: %v", err)}
	}

	participants := make([]models.ExternalParticipant, 0, len(list.Participants))
	for _, p := range list.Participants {
		converted, err := convertParticipant(p)
		if err != nil {
			log.Printf("Meet client: skipping malformed participant row in space %s: %v", spaceID, err)
			continue
		}
		participants = append(participants, converted)
	}
	return participants, nil
}

func convertParticipant(p meetParticipant) (models.ExternalParticipant, error) {
	joinTime, err := time.Parse(time.RFC3339, p.JoinTime)
	if err != nil {
		return models.ExternalParticipant{}, fmt.Errorf("bad join_time %q: %w", p.JoinTime, err)
	}

	out := models.ExternalParticipant{
		Email:           p.Email,
		DisplayName:     p.DisplayName,
		JoinTime:        joinTime,
		DurationMinutes: p.DurationMinutes,
		IsAnonymous:     p.IsAnonymous,
	}
	if p.LeaveTime != "" {
		leaveTime, err := time.Parse(time.RFC3339, p.LeaveTime)
		if err != nil {
			return models.ExternalParticipant{}, fmt.Errorf("bad leave_time %q: %w", p.LeaveTime, err)
		}
		out.LeaveTime = &leaveTime
	}
	return out, nil
}

// doRequest performs the HTTP call with bounded retries on transient errors
// only. Non-transient API errors fail immediately.
func (c *MeetClient) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	requestURL := c.baseURL + path

	var lastErr *ProviderError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			log.Printf("Meet client: retry %d/%d for %s %s in %v", attempt, c.maxRetries, method, path, backoff)
			select {
			case <-ctx.Done():
				return nil, &ProviderError{Message: ctx.Err().Error(), Transient: true}
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
		if err != nil {
			return nil, &ProviderError{Message: fmt.Sprintf("failed to create request: %v", err)}
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &ProviderError{Message: fmt.Sprintf("provider request failed: %v", err), Transient: true}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &ProviderError{Message: fmt.Sprintf("failed to read provider response: %v", err), Transient: true}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &ProviderError{Message: fmt.Sprintf("provider returned %d", resp.StatusCode), Transient: true}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, &ProviderError{Message: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, string(body))}
		}

		return body, nil
	}

	return nil, &ProviderError{Message: fmt.Sprintf("retries exhausted: %s", lastErr.Message), Transient: true}
}
