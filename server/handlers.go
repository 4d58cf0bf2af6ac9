package server

import (
	"context"
	"encoding/json"
	"net/http"

	"cratefm/config"
	"cratefm/core/planner"
	"cratefm/core/spotify"
	"cratefm/repository"
	"cratefm/storage"
)

// searchImporter is the slice of the importer the API needs.
type searchImporter interface {
	SearchAndImport(ctx context.Context, query string, limit int) (*spotify.ImportResult, error)
}

// APIHandler handles all API requests.
type APIHandler struct {
	trackRepo repository.TrackRepository
	planRepo  repository.PlanRepository
	planner   *planner.Planner
	importer  searchImporter // nil when no source credentials are configured
	snapshots *storage.SnapshotStore
	cfg       *config.Config
}

// NewAPIHandler creates the API handler. importer and snapshots may be
// nil; their endpoints then answer 503.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	planRepo repository.PlanRepository,
	crtPlanner *planner.Planner,
	importer *spotify.Importer,
	snapshots *storage.SnapshotStore,
	cfg *config.Config,
) *APIHandler {
	h := &APIHandler{
		trackRepo: trackRepo,
		planRepo:  planRepo,
		planner:   crtPlanner,
		snapshots: snapshots,
		cfg:       cfg,
	}
	if importer != nil {
		h.importer = importer
	}
	return h
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
