package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/junyaoz/solace/backend/internal/fault"
	chatmodel "github.com/junyaoz/solace/backend/internal/model/chat"
	"github.com/junyaoz/solace/backend/internal/session"
	"github.com/junyaoz/solace/backend/pkg/utils"
)

// Handler exposes session creation, blocking chat and transcript reads.
type Handler struct {
	orchestrator *session.Orchestrator
	secret       string
}

// New creates the chat handler. secret signs the session cookie.
func New(orchestrator *session.Orchestrator, secret string) *Handler {
	return &Handler{orchestrator: orchestrator, secret: secret}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/chat", h.handleChat)
	r.Post("/chat/retry", h.handleRetry)
	r.Get("/history/{sessionID}", h.handleHistory)
	r.Get("/persona", h.handlePersona)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.orchestrator.StartSession()
	setSessionCookie(w, h.secret, sess.ID)

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"id":        sess.ID,
		"createdAt": sess.CreatedAt,
		"greeting":  h.orchestrator.Persona().OpeningLine,
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, string(fault.Validation), "invalid request body")
		return
	}

	sessionID, ok := h.resolveSession(r, payload.SessionID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, string(fault.Validation), "sessionId is required")
		return
	}

	reply, err := h.orchestrator.Submit(r.Context(), sessionID, payload.Message)
	if err != nil {
		respondFault(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply.Content})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, string(fault.Validation), "invalid request body")
		return
	}

	sessionID, ok := h.resolveSession(r, payload.SessionID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, string(fault.Validation), "sessionId is required")
		return
	}

	reply, err := h.orchestrator.RetryLast(r.Context(), sessionID)
	if err != nil {
		respondFault(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"reply": reply.Content})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, string(fault.Validation), "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	turns := h.orchestrator.History(sessionID, limit)
	if turns == nil {
		turns = []chatmodel.Turn{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (h *Handler) handlePersona(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.orchestrator.Persona())
}

// resolveSession prefers an explicit sessionId and falls back to the signed
// session cookie.
func (h *Handler) resolveSession(r *http.Request, explicit string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	return sessionFromCookie(r, h.secret)
}

// respondFault maps a failure kind onto the HTTP status the caller sees.
func respondFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	detail := ""
	if f, ok := fault.As(err); ok {
		detail = f.Detail
	}

	status := http.StatusInternalServerError
	switch kind {
	case fault.Validation:
		status = http.StatusBadRequest
	case fault.SessionBusy:
		status = http.StatusConflict
	case fault.RateLimited:
		status = http.StatusServiceUnavailable
	case fault.Timeout, fault.Network:
		status = http.StatusGatewayTimeout
	case fault.Auth, fault.Provider:
		status = http.StatusBadGateway
	}

	utils.RespondError(w, status, string(kind), detail)
}
