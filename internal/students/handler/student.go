package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"regdesk/internal/students/service"
	"regdesk/pkg/auth"
	apperrors "regdesk/pkg/errors"
	httputil "regdesk/pkg/http"
	"regdesk/pkg/logger"
	"regdesk/pkg/model"
)

type StudentHandler struct {
	service    service.StudentService
	authorizer auth.Authorizer
	log        *logger.Logger
}

func NewStudentHandler(service service.StudentService, authorizer auth.Authorizer, log *logger.Logger) *StudentHandler {
	return &StudentHandler{
		service:    service,
		authorizer: authorizer,
		log:        log,
	}
}

func (h *StudentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	student, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, student); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StudentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	students, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, students, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	var student model.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), &student); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *StudentHandler) Merge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.authorize(w, r) {
		return
	}

	var req model.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Merge", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	moved, err := h.service.Merge(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Merge", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int64{"registrations_moved": moved}); err != nil {
		h.log.Error("failed to write success response", "handler", "Merge", "operation", "WriteSuccess", "error", err)
	}
}

func (h *StudentHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.authorizer.Authorize(r, auth.ActionManageStudents) {
		return true
	}
	if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Admin token required")); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "authorize", "operation", "WriteError", "error", writeErr)
	}
	return false
}

func (h *StudentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/students", h.GetAll)
	router.GET("/api/v1/students/id/:id", h.GetByID)
	router.PATCH("/api/v1/students/id/:id", h.Update)
	router.POST("/api/v1/students/merge", h.Merge)
}
