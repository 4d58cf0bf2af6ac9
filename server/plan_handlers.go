package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cratefm/logger"
	"cratefm/model"
)

type createPlanRequest struct {
	Prompt  model.Prompt `json:"prompt"`
	SeedIDs []string     `json:"seedIds,omitempty"`
}

type reviseRequest struct {
	Instructions string `json:"instructions"`
}

// CreatePlanHandler runs the planning pipeline for a prompt.
func (h *APIHandler) CreatePlanHandler(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.planner.CreatePlan(r.Context(), req.Prompt, req.SeedIDs)
	if err != nil {
		logger.Warn("Plan creation failed", logger.ErrorField(err))
		writeError(w, planErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// GetPlanHandler returns a stored plan by id.
func (h *APIHandler) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	plan, err := h.planRepo.GetPlanByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// ListPlansHandler returns recent plans, newest first.
func (h *APIHandler) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	plans, err := h.planRepo.ListPlans(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

// RevisePlanHandler applies a free-text instruction to a draft plan.
func (h *APIHandler) RevisePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.planRepo.GetPlanByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	revised, warnings, err := h.planner.Revise(r.Context(), plan, req.Instructions)
	if err != nil {
		logger.Warn("Plan revision failed",
			logger.String("planId", id),
			logger.ErrorField(err))
		writeError(w, planErrorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":     revised,
		"warnings": warnings,
	})
}

// FinalizePlanHandler locks a plan. Validation failures come back as a
// structured result with status 422, not as a server error.
func (h *APIHandler) FinalizePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	plan, err := h.planRepo.GetPlanByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	result, err := h.planner.Finalize(plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !result.IsValid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"validation": result,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":       plan,
		"validation": result,
	})
}

// planErrorStatus maps planner errors onto HTTP statuses: caller
// mistakes are 4xx, everything else is a 502 because the upstream
// model or source failed.
func planErrorStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "finalized"):
		return http.StatusConflict
	case strings.Contains(msg, "invalid prompt"),
		strings.Contains(msg, "too short"),
		strings.Contains(msg, "too long"),
		strings.Contains(msg, "seed"),
		strings.Contains(msg, "no candidates"):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
