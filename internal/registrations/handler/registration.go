package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"regdesk/internal/registrations/service"
	"regdesk/pkg/auth"
	apperrors "regdesk/pkg/errors"
	httputil "regdesk/pkg/http"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

// Purger lets the handler expose a manual sweep endpoint backed by the
// seat lock manager.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type RegistrationHandler struct {
	service    service.RegistrationService
	purger     Purger
	authorizer auth.Authorizer
	log        *logger.Logger
}

func NewRegistrationHandler(service service.RegistrationService, purger Purger, authorizer auth.Authorizer, log *logger.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service:    service,
		purger:     purger,
		authorizer: authorizer,
		log:        log,
	}
}

func (h *RegistrationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	view, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, view); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *RegistrationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r, auth.ActionListRegistrations) {
		return
	}

	view, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RegistrationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r, auth.ActionListRegistrations) {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	query := r.URL.Query()
	filter := &model.RegistrationFilter{
		SessionID: query.Get("session_id"),
		Status:    query.Get("status"),
		Search:    query.Get("search"),
	}

	views, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, views, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *RegistrationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r, auth.ActionUpdateRegistration) {
		return
	}

	var update model.RegistrationUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	registration, err := h.service.UpdateStatus(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, registration); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r, auth.ActionCancelRegistration) {
		return
	}

	if _, err := h.service.Cancel(r.Context(), ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *RegistrationHandler) CancelByPaymentRef(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r, auth.ActionCancelRegistration) {
		return
	}

	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "CancelByPaymentRef", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	registration, err := h.service.CancelByPaymentRef(r.Context(), body.PaymentRef)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CancelByPaymentRef", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, registration); err != nil {
		h.log.Error("failed to write success response", "handler", "CancelByPaymentRef", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RegistrationHandler) PurgeExpired(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r, auth.ActionUpdateRegistration) {
		return
	}

	purged, err := h.purger.PurgeExpired(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, apperrors.Internal("Failed to purge expired seat holds", err)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "PurgeExpired", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int{"purged": purged}); err != nil {
		h.log.Error("failed to write success response", "handler", "PurgeExpired", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RegistrationHandler) authorize(w http.ResponseWriter, r *http.Request, action string) bool {
	if h.authorizer.Authorize(r, action) {
		return true
	}
	if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Admin token required")); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "authorize", "operation", "WriteError", "error", writeErr)
	}
	return false
}

func (h *RegistrationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/registrations", h.Create)
	router.GET("/api/v1/registrations", h.GetAll)
	router.GET("/api/v1/registrations/id/:id", h.GetByID)
	router.PATCH("/api/v1/registrations/id/:id", h.Update)
	router.DELETE("/api/v1/registrations/id/:id", h.Cancel)
	router.POST("/api/v1/registrations/cancel", h.CancelByPaymentRef)
	router.POST("/api/v1/registrations/purge-expired", h.PurgeExpired)
}
