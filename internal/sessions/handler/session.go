package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"regdesk/internal/sessions/service"
	"regdesk/pkg/auth"
	apperrors "regdesk/pkg/errors"
	httputil "regdesk/pkg/http"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

type SessionHandler struct {
	service    service.SessionService
	authorizer auth.Authorizer
	log        *logger.Logger
}

func NewSessionHandler(service service.SessionService, authorizer auth.Authorizer, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service:    service,
		authorizer: authorizer,
		log:        log,
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	var session model.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &session); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, session); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

// GetByID is public: the enrollment form reads the session together with
// its live seat availability.
func (h *SessionHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	availability, err := h.service.GetAvailability(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	filter := model.SessionFilter{
		Status: query.Get("status"),
		Type:   query.Get("type"),
		Campus: query.Get("campus"),
		Level:  query.Get("level"),
	}
	// Unauthenticated listings only ever see published sessions.
	if !h.authorizer.Authorize(r, auth.ActionManageSessions) {
		filter.Status = model.SessionStatusPublished
	}

	sessions, total, err := h.service.GetAll(r.Context(), filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, sessions, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	var updates model.SessionUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), &updates); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Delete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

// Resync recomputes seats_taken from committed registrations.
func (h *SessionHandler) Resync(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	committed, err := h.service.Resync(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Resync", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int64{"seats_taken": committed}); err != nil {
		h.log.Error("failed to write success response", "handler", "Resync", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SessionHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.authorizer.Authorize(r, auth.ActionManageSessions) {
		return true
	}
	if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Admin token required")); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "authorize", "operation", "WriteError", "error", writeErr)
	}
	return false
}

func (h *SessionHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sessions", h.Create)
	router.GET("/api/v1/sessions", h.GetAll)
	router.GET("/api/v1/sessions/id/:id", h.GetByID)
	router.PATCH("/api/v1/sessions/id/:id", h.Update)
	router.DELETE("/api/v1/sessions/id/:id", h.Delete)
	router.POST("/api/v1/sessions/id/:id/resync", h.Resync)
}
