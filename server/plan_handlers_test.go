package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratefm/config"
	"cratefm/core/planner"
	"cratefm/model"
)

type memTrackRepo struct {
	tracks map[string]*model.Track
}

func newMemTrackRepo(tracks ...*model.Track) *memTrackRepo {
	r := &memTrackRepo{tracks: make(map[string]*model.Track)}
	for _, tr := range tracks {
		r.tracks[tr.ID] = tr
	}
	return r
}

func (r *memTrackRepo) UpsertTrack(track *model.Track) error {
	r.tracks[track.ID] = track
	return nil
}

func (r *memTrackRepo) BulkUpsertTracks(tracks []*model.Track) error {
	for _, tr := range tracks {
		r.tracks[tr.ID] = tr
	}
	return nil
}

func (r *memTrackRepo) GetTrackByID(id string) (*model.Track, error) {
	return r.tracks[id], nil
}

func (r *memTrackRepo) GetTracksByIDs(ids []string) ([]*model.Track, error) {
	out := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		if tr, ok := r.tracks[id]; ok {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (r *memTrackRepo) ExistsByID(id string) (bool, error) {
	_, ok := r.tracks[id]
	return ok, nil
}

func (r *memTrackRepo) FilterTracks(filter model.TrackFilter) ([]*model.Track, error) {
	return r.AllTracks()
}

func (r *memTrackRepo) AllTracks() ([]*model.Track, error) {
	out := make([]*model.Track, 0, len(r.tracks))
	for _, tr := range r.tracks {
		out = append(out, tr)
	}
	return out, nil
}

func (r *memTrackRepo) DeleteTrack(id string) error {
	delete(r.tracks, id)
	return nil
}

func (r *memTrackRepo) DeleteAllTracks() error {
	r.tracks = make(map[string]*model.Track)
	return nil
}

func (r *memTrackRepo) CountTracks() (int64, error) {
	return int64(len(r.tracks)), nil
}

type memPlanRepo struct {
	plans map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: make(map[string]*model.Plan)}
}

func (r *memPlanRepo) CreatePlan(plan *model.Plan) error {
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *memPlanRepo) GetPlanByID(id string) (*model.Plan, error) {
	if p, ok := r.plans[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPlanRepo) UpdatePlan(plan *model.Plan) error {
	existing, ok := r.plans[plan.ID]
	if !ok {
		return fmt.Errorf("plan %s not found", plan.ID)
	}
	if existing.Finalized {
		return fmt.Errorf("plan %s is finalized and cannot be updated", plan.ID)
	}
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *memPlanRepo) ListPlans(limit int) ([]*model.Plan, error) {
	out := make([]*model.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memPlanRepo) DeletePlan(id string) error {
	delete(r.plans, id)
	return nil
}

type stubPool struct {
	ids []string
}

func (s *stubPool) BuildCandidatePool(ctx context.Context, intent *model.DerivedIntent) (*model.CandidatePool, error) {
	return &model.CandidatePool{TrackIDs: s.ids}, nil
}

func testRouter(t *testing.T, tracks []*model.Track, plans *memPlanRepo, poolIDs []string) *mux.Router {
	t.Helper()

	trackRepo := newMemTrackRepo(tracks...)
	cfg := config.PlannerConfig{DurationTolerance: 300, UseLLM: false, MaxCandidates: 50}
	p := planner.NewPlanner(trackRepo, plans, nil, &stubPool{ids: poolIDs}, cfg)
	h := NewAPIHandler(trackRepo, plans, p, nil, nil, &config.Config{})

	router := mux.NewRouter()
	router.HandleFunc("/api/plans", h.CreatePlanHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/plans", h.ListPlansHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/plans/{id}", h.GetPlanHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/plans/{id}/finalize", h.FinalizePlanHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/import/search", h.ImportSearchHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/health", h.HealthHandler).Methods(http.MethodGet)
	return router
}

func testTrack(id string, bpm float64, duration int) *model.Track {
	return &model.Track{
		ID: id, Artist: "Artist " + id, Title: "Title " + id,
		BPM: bpm, Key: "8A", Energy: 3, Duration: duration,
	}
}

func TestCreatePlanEndpoint(t *testing.T) {
	tracks := []*model.Track{
		testTrack("a", 120, 300),
		testTrack("b", 124, 300),
	}
	plans := newMemPlanRepo()
	router := testRouter(t, tracks, plans, []string{"a", "b"})

	body, _ := json.Marshal(createPlanRequest{Prompt: model.Prompt{TargetDuration: 600}})
	req := httptest.NewRequest(http.MethodPost, "/api/plans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var plan model.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, []string{"a", "b"}, plan.TrackIDs)
	assert.Equal(t, 600, plan.TotalDuration)

	// The plan is retrievable afterwards.
	req = httptest.NewRequest(http.MethodGet, "/api/plans/"+plan.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreatePlanEndpointRejectsBadPrompt(t *testing.T) {
	router := testRouter(t, nil, newMemPlanRepo(), nil)

	body, _ := json.Marshal(createPlanRequest{Prompt: model.Prompt{BPMMin: 150, BPMMax: 100}})
	req := httptest.NewRequest(http.MethodPost, "/api/plans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/plans", bytes.NewReader([]byte("{broken")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlanEndpointNotFound(t *testing.T) {
	router := testRouter(t, nil, newMemPlanRepo(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/plans/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFinalizeEndpointStructuredFailure(t *testing.T) {
	tracks := []*model.Track{testTrack("a", 120, 300), testTrack("b", 124, 300)}
	plans := newMemPlanRepo()
	router := testRouter(t, tracks, plans, nil)

	// Duplicate ids make the plan invalid; the response is a structured
	// validation payload, not a 500.
	bad := &model.Plan{ID: "bad", TrackIDs: []string{"a", "a"}}
	require.NoError(t, plans.CreatePlan(bad))

	req := httptest.NewRequest(http.MethodPost, "/api/plans/bad/finalize", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var payload struct {
		Validation struct {
			IsValid bool     `json:"isValid"`
			Errors  []string `json:"errors"`
		} `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.False(t, payload.Validation.IsValid)
	assert.NotEmpty(t, payload.Validation.Errors)

	good := &model.Plan{ID: "good", TrackIDs: []string{"a", "b"}, TotalDuration: 600}
	require.NoError(t, plans.CreatePlan(good))

	req = httptest.NewRequest(http.MethodPost, "/api/plans/good/finalize", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := plans.GetPlanByID("good")
	require.NoError(t, err)
	assert.True(t, stored.Finalized)
}

func TestImportSearchEndpointWithoutSource(t *testing.T) {
	router := testRouter(t, nil, newMemPlanRepo(), nil)

	body, _ := json.Marshal(importSearchRequest{Query: "techno"})
	req := httptest.NewRequest(http.MethodPost, "/api/import/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTrackEndpoints(t *testing.T) {
	tracks := []*model.Track{testTrack("a", 120, 300)}
	router := testRouter(t, tracks, newMemPlanRepo(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tracks/a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var track model.Track
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &track))
	assert.Equal(t, "a", track.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/tracks/ghost", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t, nil, newMemPlanRepo(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
