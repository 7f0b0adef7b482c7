package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"voxpop/internal/model"
	"voxpop/internal/service"
	"voxpop/internal/transport/rest/middleware"
)

// SessionHandler handles respondent-facing session endpoints.
type SessionHandler struct {
	sessionSvc   *service.SessionService
	orchestrator *service.Orchestrator
}

func NewSessionHandler(sessionSvc *service.SessionService, orchestrator *service.Orchestrator) *SessionHandler {
	return &SessionHandler{
		sessionSvc:   sessionSvc,
		orchestrator: orchestrator,
	}
}

// StartSessionRequest is the request body for starting an interview.
type StartSessionRequest struct {
	SurveyID    string `json:"surveyId"`
	CountryCode string `json:"countryCode,omitempty"`
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := middleware.GetOrigin(r.Context())
	result, err := h.sessionSvc.Start(r.Context(), req.SurveyID, origin, r.UserAgent(), req.CountryCode)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// PostMessageRequest is the request body for one respondent message.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// PostMessage handles POST /v1/sessions/{token}/messages
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.HandleMessage(r.Context(), token, req.Text)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Pause handles POST /v1/sessions/{token}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	resumeToken, err := h.sessionSvc.Pause(r.Context(), token)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"resumeToken": resumeToken})
}

// ResumeRequest is the request body for resuming a paused session.
type ResumeRequest struct {
	ResumeToken string `json:"resumeToken"`
}

// Resume handles POST /v1/sessions/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessionSvc.Resume(r.Context(), req.ResumeToken)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sessionToken": session.Token})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP responses.
// Respondents never see internal error detail.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, model.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, model.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session is not active")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "another request for this session is in flight")
	case errors.Is(err, model.ErrContentFiltered):
		writeError(w, http.StatusUnprocessableEntity, "message could not be processed")
	case errors.Is(err, model.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "temporary problem, please try again")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
