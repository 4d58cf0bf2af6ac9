package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cratefm/core/catalog"
	"cratefm/logger"
	"cratefm/model"
)

type importSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// GetTracksHandler lists catalog tracks, optionally filtered by query
// parameters.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.TrackFilter{
		Genre:  q.Get("genre"),
		Artist: q.Get("artist"),
	}
	if v := q.Get("bpmMin"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.BPMMin = f
		}
	}
	if v := q.Get("bpmMax"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.BPMMax = f
		}
	}
	if v := q.Get("keys"); v != "" {
		filter.Keys = strings.Split(v, ",")
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	tracks, err := h.trackRepo.FilterTracks(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tracks)
}

// GetTrackHandler returns a single catalog track.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	track, err := h.trackRepo.GetTrackByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

// ImportSearchHandler searches the external source and imports the
// results into the catalog.
func (h *APIHandler) ImportSearchHandler(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "no metadata source configured")
		return
	}

	var req importSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.importer.SearchAndImport(r.Context(), req.Query, req.Limit)
	if err != nil {
		logger.Warn("Import search failed",
			logger.String("query", req.Query),
			logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateSnapshotHandler dumps the whole catalog to the snapshot bucket.
func (h *APIHandler) CreateSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}

	data, err := catalog.ExportAll(h.trackRepo)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name, err := h.snapshots.Upload(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"object": name,
		"bytes":  len(data),
	})
}

// ListSnapshotsHandler returns stored snapshot names, newest first.
func (h *APIHandler) ListSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}

	names, err := h.snapshots.List(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, names)
}
