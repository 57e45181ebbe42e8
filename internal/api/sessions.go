package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlscout/sqlscout/internal/agent"
)

type createSessionRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type sessionResponse struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	AwaitingApproval bool   `json:"awaiting_approval"`
}

type approvalResponse struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	AwaitingApproval bool   `json:"awaiting_approval"`
	SQL              string `json:"sql"`
	Explanation      string `json:"explanation"`
	Prompt           string `json:"prompt"`
}

type approvalRequest struct {
	Feedback string `json:"feedback"`
}

type resultResponse struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	ModelResponse string `json:"model_response"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON", false, nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", false, nil)
		return
	}

	sessionID, status, err := deps.Sessions.CreateSession(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse{
		SessionID: sessionID,
		Status:    string(status),
	})
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	status, awaiting, err := deps.Sessions.Status(r.Context(), sessionID)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:        sessionID,
		Status:           string(status),
		AwaitingApproval: awaiting,
	})
}

func handleGetApproval(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	interrupt, err := deps.Sessions.PendingApproval(r.Context(), sessionID)
	if errors.Is(err, agent.ErrNoPendingApproval) {
		writeError(r.Context(), w, http.StatusNotFound, "APPROVAL_NOT_PENDING", "session is not waiting for approval", false, nil)
		return
	}
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalResponse{
		SessionID:        sessionID,
		Status:           string(agent.StatusWaitingApproval),
		AwaitingApproval: true,
		SQL:              interrupt.SQL,
		Explanation:      interrupt.Explanation,
		Prompt:           "Execute this query? (y to approve, anything else to reject)",
	})
}

func handleSubmitApproval(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be valid JSON", false, nil)
		return
	}

	status, err := deps.Sessions.SubmitApproval(r.Context(), sessionID, req.Feedback)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse{
		SessionID: sessionID,
		Status:    string(status),
	})
}

func handleGetResult(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	status, message, err := deps.Sessions.Result(r.Context(), sessionID)
	if err != nil {
		writeSessionError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		SessionID:     sessionID,
		Status:        string(status),
		ModelResponse: message,
	})
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema context is not loaded", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": deps.Schema.FormatContext()})
}

func writeSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session with that id", false, nil)
	case errors.Is(err, agent.ErrResultNotReady):
		writeError(ctx, w, http.StatusNotFound, "RESULT_NOT_READY", "session has not produced a final message", true, nil)
	case errors.Is(err, agent.ErrNoPendingApproval):
		writeError(ctx, w, http.StatusConflict, "NO_PENDING_APPROVAL", "session is not waiting for approval", false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), true, nil)
	}
}
