package catalog

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratefm/model"
)

type memRepo struct {
	tracks map[string]*model.Track
}

func newMemRepo(tracks ...*model.Track) *memRepo {
	r := &memRepo{tracks: make(map[string]*model.Track)}
	for _, tr := range tracks {
		r.tracks[tr.ID] = tr
	}
	return r
}

func (r *memRepo) UpsertTrack(track *model.Track) error {
	r.tracks[track.ID] = track
	return nil
}

func (r *memRepo) BulkUpsertTracks(tracks []*model.Track) error {
	for _, tr := range tracks {
		r.tracks[tr.ID] = tr
	}
	return nil
}

func (r *memRepo) GetTrackByID(id string) (*model.Track, error) {
	return r.tracks[id], nil
}

func (r *memRepo) GetTracksByIDs(ids []string) ([]*model.Track, error) {
	out := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		if tr, ok := r.tracks[id]; ok {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (r *memRepo) ExistsByID(id string) (bool, error) {
	_, ok := r.tracks[id]
	return ok, nil
}

func (r *memRepo) FilterTracks(filter model.TrackFilter) ([]*model.Track, error) {
	return r.AllTracks()
}

func (r *memRepo) AllTracks() ([]*model.Track, error) {
	out := make([]*model.Track, 0, len(r.tracks))
	for _, tr := range r.tracks {
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) DeleteTrack(id string) error {
	delete(r.tracks, id)
	return nil
}

func (r *memRepo) DeleteAllTracks() error {
	r.tracks = make(map[string]*model.Track)
	return nil
}

func (r *memRepo) CountTracks() (int64, error) {
	return int64(len(r.tracks)), nil
}

func TestInterchangeRoundTrip(t *testing.T) {
	source := newMemRepo(
		&model.Track{
			ID: "spotify:a", Artist: "Amelie Lens", Title: "Higher", Genre: "techno",
			Duration: 372, BPM: 132, Key: "9A", Energy: 4, Year: 2019,
			Sections: []model.TrackSection{{Type: "intro", Start: 0, End: 32}},
			Inferred: true,
		},
		&model.Track{
			ID: "local:b", Artist: "Bonobo", Title: "Kerala", Genre: "downtempo",
			Duration: 241, BPM: 96, Key: "4A", Energy: 2,
			FilePath: "/music/bonobo/kerala.flac",
		},
	)

	data, err := ExportAll(source)
	require.NoError(t, err)

	target := newMemRepo()
	n, err := ImportAll(target, data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	restored, err := target.AllTracks()
	require.NoError(t, err)
	original, _ := source.AllTracks()
	require.Len(t, restored, len(original))
	for i := range original {
		assert.Equal(t, original[i].ID, restored[i].ID)
		assert.Equal(t, original[i].Artist, restored[i].Artist)
		assert.Equal(t, original[i].Title, restored[i].Title)
		assert.Equal(t, original[i].Genre, restored[i].Genre)
		assert.Equal(t, original[i].Duration, restored[i].Duration)
		assert.Equal(t, original[i].BPM, restored[i].BPM)
		assert.Equal(t, original[i].Key, restored[i].Key)
		assert.Equal(t, original[i].Energy, restored[i].Energy)
		assert.Equal(t, original[i].Sections, restored[i].Sections)
		assert.Equal(t, original[i].Inferred, restored[i].Inferred)
		assert.Equal(t, original[i].FilePath, restored[i].FilePath)
	}
}

func TestImportAllRejectsBadDocuments(t *testing.T) {
	repo := newMemRepo()

	_, err := ImportAll(repo, []byte("not json"))
	require.Error(t, err)

	_, err = ImportAll(repo, []byte(`{"version": 99, "trackCount": 0, "tracks": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported interchange version")

	_, err = ImportAll(repo, []byte(`{"version": 1, "trackCount": 3, "tracks": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inconsistent")
}

func TestResolveForExportRequiresFinalizedPlan(t *testing.T) {
	a := &model.Track{ID: "a", Artist: "x", Title: "y", Duration: 300, BPM: 120, Key: "8A"}
	repo := newMemRepo(a)
	opts := model.ExportOptions{Format: model.ExportFormatM3U}

	draft := &model.Plan{ID: "p1", TrackIDs: []string{"a"}}
	_, err := ResolveForExport(repo, draft, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not finalized")

	final := &model.Plan{ID: "p2", TrackIDs: []string{"a"}, Finalized: true, UpdatedAt: time.Now()}
	tracks, err := ResolveForExport(repo, final, opts)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "a", tracks[0].ID)

	_, err = ResolveForExport(repo, final, model.ExportOptions{Format: "vinyl"})
	require.Error(t, err)

	missing := &model.Plan{ID: "p3", TrackIDs: []string{"ghost"}, Finalized: true}
	_, err = ResolveForExport(repo, missing, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing from the catalog")
}
