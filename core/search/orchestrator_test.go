package search

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratefm/core/spotify"
	"cratefm/model"
)

// fakeRepo implements the TrackRepository methods the orchestrator uses.
type fakeRepo struct {
	mu     sync.Mutex
	tracks map[string]*model.Track
}

func newFakeRepo(tracks ...*model.Track) *fakeRepo {
	r := &fakeRepo{tracks: make(map[string]*model.Track)}
	for _, tr := range tracks {
		r.tracks[tr.ID] = tr
	}
	return r
}

func (r *fakeRepo) UpsertTrack(track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[track.ID] = track
	return nil
}

func (r *fakeRepo) BulkUpsertTracks(tracks []*model.Track) error {
	for _, tr := range tracks {
		r.UpsertTrack(tr)
	}
	return nil
}

func (r *fakeRepo) GetTrackByID(id string) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracks[id], nil
}

func (r *fakeRepo) GetTracksByIDs(ids []string) ([]*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		if tr, ok := r.tracks[id]; ok {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (r *fakeRepo) ExistsByID(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tracks[id]
	return ok, nil
}

func (r *fakeRepo) FilterTracks(filter model.TrackFilter) ([]*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Track, 0)
	for _, tr := range r.tracks {
		if filter.BPMMin > 0 && tr.BPM < filter.BPMMin {
			continue
		}
		if filter.BPMMax > 0 && tr.BPM > filter.BPMMax {
			continue
		}
		if filter.Genre != "" && !strings.EqualFold(filter.Genre, tr.Genre) {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func (r *fakeRepo) AllTracks() ([]*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Track, 0, len(r.tracks))
	for _, tr := range r.tracks {
		out = append(out, tr)
	}
	return out, nil
}

func (r *fakeRepo) DeleteTrack(id string) error { delete(r.tracks, id); return nil }

func (r *fakeRepo) DeleteAllTracks() error {
	r.tracks = make(map[string]*model.Track)
	return nil
}

func (r *fakeRepo) CountTracks() (int64, error) { return int64(len(r.tracks)), nil }

// fakeSource replays canned import results.
type fakeSource struct {
	mu             sync.Mutex
	searchResults  map[string][]string
	recommendIDs   []string
	searchQueries  []string
	recommendCalls int
}

func (s *fakeSource) SearchAndImport(ctx context.Context, query string, limit int) (*spotify.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQueries = append(s.searchQueries, query)
	return &spotify.ImportResult{TrackIDs: s.searchResults[query]}, nil
}

func (s *fakeSource) RecommendAndImport(ctx context.Context, genres, artists, tracks []string, tunables model.RecommendTunables) (*spotify.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendCalls++
	return &spotify.ImportResult{TrackIDs: s.recommendIDs}, nil
}

func track(id string, bpm float64, key string, energy int, inferred bool) *model.Track {
	return &model.Track{
		ID: id, Artist: "Artist " + id, Title: "Title " + id,
		Duration: 300, BPM: bpm, Key: key, Energy: energy, Inferred: inferred,
	}
}

func smoothIntent() *model.DerivedIntent {
	intent := &model.DerivedIntent{
		BPMMin:         120,
		BPMMax:         128,
		Genres:         []string{"techno"},
		TargetDuration: 3600,
		MixStyle:       model.MixStyleSmooth,
	}
	intent.Normalize()
	return intent
}

func TestExternalPathMergesAndDeduplicates(t *testing.T) {
	repo := newFakeRepo(
		track("spotify:a", 124, "8A", 3, false),
		track("spotify:b", 126, "9A", 3, false),
		track("spotify:c", 150, "3B", 3, false), // outside bpm window
	)
	source := &fakeSource{
		searchResults: map[string][]string{
			"techno": {"spotify:a", "spotify:b"},
		},
		recommendIDs: []string{"spotify:b", "spotify:c"}, // b overlaps
	}

	o := NewOrchestrator(source, repo)
	pool, err := o.BuildCandidatePool(context.Background(), smoothIntent())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"spotify:a", "spotify:b"}, pool.TrackIDs)
	assert.Equal(t, 1, source.recommendCalls)
	assert.Contains(t, pool.FilterSummary, "external search")
}

func TestFallbackCatalogQueryWhenNoSource(t *testing.T) {
	repo := newFakeRepo(
		track("local:a", 124, "8A", 3, false),
		track("local:b", 126, "9A", 3, false),
		track("local:c", 170, "3B", 3, false),
	)

	o := NewOrchestrator(nil, repo)
	pool, err := o.BuildCandidatePool(context.Background(), smoothIntent())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"local:a", "local:b"}, pool.TrackIDs)
	assert.Contains(t, pool.FilterSummary, "catalog query")
}

func TestPostFilterWidensWindowForInferredTracks(t *testing.T) {
	intent := smoothIntent() // window 120-128, slack 8 / 15 inferred

	repo := newFakeRepo(
		track("spotify:exact", 124, "8A", 3, false),
		track("spotify:slack", 134, "8A", 3, false),    // within +8
		track("spotify:beyond", 138, "8A", 3, false),   // beyond +8
		track("spotify:inferred", 140, "8A", 3, true),  // within +15
		track("spotify:far", 160, "8A", 3, true),       // beyond +15
	)
	source := &fakeSource{
		searchResults: map[string][]string{
			"techno": {"spotify:exact", "spotify:slack", "spotify:beyond", "spotify:inferred", "spotify:far"},
		},
	}

	o := NewOrchestrator(source, repo)
	pool, err := o.BuildCandidatePool(context.Background(), intent)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"spotify:exact", "spotify:slack", "spotify:inferred"},
		pool.TrackIDs)
}

func TestPostFilterKeyAllowListAndEnergy(t *testing.T) {
	intent := smoothIntent()
	intent.Keys = []string{"8A", "9A"}

	repo := newFakeRepo(
		track("spotify:a", 124, "8A", 3, false),
		track("spotify:wrongkey", 124, "3B", 3, false),
		track("spotify:hot", 124, "9A", 5, false), // energy 5 fails smooth window
		track("spotify:noenergy", 124, "9A", 0, false),
	)
	source := &fakeSource{
		searchResults: map[string][]string{
			"techno": {"spotify:a", "spotify:wrongkey", "spotify:hot", "spotify:noenergy"},
		},
	}

	o := NewOrchestrator(source, repo)
	pool, err := o.BuildCandidatePool(context.Background(), intent)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"spotify:a", "spotify:noenergy"}, pool.TrackIDs)
}

func TestAvoidListsFilterCandidates(t *testing.T) {
	intent := smoothIntent()
	intent.AvoidTracks = []string{"spotify:banned"}
	intent.AvoidArtists = []string{"Artist spotify:dull"}

	repo := newFakeRepo(
		track("spotify:ok", 124, "8A", 3, false),
		track("spotify:banned", 124, "8A", 3, false),
		track("spotify:dull", 124, "8A", 3, false),
	)
	source := &fakeSource{
		searchResults: map[string][]string{
			"techno": {"spotify:ok", "spotify:banned", "spotify:dull"},
		},
	}

	o := NewOrchestrator(source, repo)
	pool, err := o.BuildCandidatePool(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, []string{"spotify:ok"}, pool.TrackIDs)
}

func TestBuildQueries(t *testing.T) {
	intent := smoothIntent()
	intent.Genres = []string{"techno", "trance", "house"}
	intent.IncludeArtists = []string{"Amelie Lens"}

	queries := buildQueries(intent)
	assert.Equal(t, []string{"techno", "trance", "techno Amelie Lens"}, queries)

	empty := &model.DerivedIntent{MixStyle: model.MixStyleSmooth}
	empty.Normalize()
	assert.Equal(t, []string{"smooth dj set"}, buildQueries(empty))
}
