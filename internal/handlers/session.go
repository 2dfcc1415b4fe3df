package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classpulse-backend/internal/models"
	"classpulse-backend/internal/repository"
	"classpulse-backend/internal/services"
)

type SessionHandler struct {
	store   services.SessionStore
	tracker *services.PresenceTracker
	sync    *services.SyncService
}

func NewSessionHandler(store services.SessionStore, tracker *services.PresenceTracker, syncService *services.SyncService) *SessionHandler {
	return &SessionHandler{store: store, tracker: tracker, sync: syncService}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	classID, err := uuid.Parse(chi.URLParam(r, "classID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid class ID", r))
		return
	}

	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	if req.Title == "" {
		fields["title"] = "Title is required"
	}
	if req.PlannedDurationMinutes <= 0 {
		fields["planned_duration_minutes"] = "Planned duration must be positive"
	}
	scheduledTime, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		fields["scheduled_time"] = "scheduled_time must be RFC 3339"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	session := &models.Session{
		ClassID:                classID,
		Title:                  req.Title,
		ScheduledTime:          scheduledTime,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
		ExternalSpaceID:        req.ExternalSpaceID,
	}

	if err := h.store.Create(r.Context(), session); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.store.GetByID(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) ListByClass(w http.ResponseWriter, r *http.Request) {
	classID, err := uuid.Parse(chi.URLParam(r, "classID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid class ID", r))
		return
	}

	sessions, err := h.store.ListByClass(r.Context(), classID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list sessions", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.tracker.Start(r.Context(), sessionID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.tracker.End(r.Context(), sessionID, time.Now().UTC())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	session, err := h.tracker.Cancel(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	at, err := models.ParseEventTime(req.At, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "at must be RFC 3339", r))
		return
	}

	joinType := models.JoinType(req.JoinType)
	if req.JoinType == "" {
		joinType = models.JoinRosterEntry
	}

	session, err := h.tracker.RecordJoin(r.Context(), sessionID, req.Email, req.DisplayName, joinType, at)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Join recorded",
		"stats":   session.Stats,
	})
}

func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	at, err := models.ParseEventTime(req.At, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "at must be RFC 3339", r))
		return
	}

	if _, err := h.tracker.RecordHeartbeat(r.Context(), sessionID, req.Email, at); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Heartbeat recorded"})
}

func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	at, err := models.ParseEventTime(req.At, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "at must be RFC 3339", r))
		return
	}

	session, err := h.tracker.RecordLeave(r.Context(), sessionID, req.Email, at)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Leave recorded",
		"stats":   session.Stats,
	})
}

// Sync reconciles the session with the external conferencing provider's
// participant log. A provider failure is reported with success=false after
// syncStatus=failed has already been persisted.
func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	result, err := h.sync.Sync(r.Context(), sessionID)
	if err != nil {
		var providerErr *services.ProviderError
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &providerErr):
			writeJSON(w, http.StatusInternalServerError, models.SyncResponse{
				Success: false,
				Error:   providerErr.Message,
			})
		case errors.As(err, &validationErr):
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("INVALID_EXTERNAL_REFERENCE", "Session has no usable external reference", validationErr.Fields, r))
		default:
			handleServiceError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, models.SyncResponse{
		Success:       true,
		SyncedCount:   result.SyncedCount,
		ExternalCount: result.ExternalCount,
	})
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return uuid.Nil, false
	}
	return sessionID, true
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *services.NotFoundError:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", e.Message, r))
	case *services.SessionClosedError:
		writeJSON(w, http.StatusConflict, errorResp("SESSION_CLOSED", e.Message, r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", e.Message, r))
	case *services.ProviderError:
		writeJSON(w, http.StatusInternalServerError, errorResp("PROVIDER_ERROR", e.Message, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
