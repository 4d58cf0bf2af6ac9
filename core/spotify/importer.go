package spotify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cratefm/core/camelot"
	"cratefm/logger"
	"cratefm/model"
	"cratefm/repository"
)

// IDPrefix marks catalog identifiers that originate from this source.
const IDPrefix = "spotify:"

// ImportResult summarizes one import call. Records already present in
// the catalog are duplicates: a warning, not an error. TrackIDs lists
// every catalog id the call touched, newly imported or duplicate, so
// callers can use imports as searches.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	TrackIDs []string `json:"trackIds"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

func newImportResult() *ImportResult {
	return &ImportResult{TrackIDs: []string{}, Warnings: []string{}, Errors: []string{}}
}

// Importer turns raw provider records into valid catalog tracks.
type Importer struct {
	client *Client
	repo   repository.TrackRepository
}

// NewImporter creates an importer over a configured client and the
// track catalog.
func NewImporter(client *Client, repo repository.TrackRepository) *Importer {
	return &Importer{client: client, repo: repo}
}

// Client exposes the underlying source handle (for quota observability).
func (im *Importer) Client() *Client {
	return im.client
}

// SearchAndImport searches the provider and imports every genuinely new
// hit. Duplicates are skipped with a warning; normalization failures
// count as failed records.
func (im *Importer) SearchAndImport(ctx context.Context, query string, limit int) (*ImportResult, error) {
	result := newImportResult()

	hits, err := im.client.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for i := range hits {
		im.importOne(ctx, &hits[i], query, result)
	}

	logger.Info("Search import finished",
		logger.String("query", query),
		logger.Int("imported", result.Imported),
		logger.Int("failed", result.Failed),
		logger.Int("duplicates", len(result.Warnings)))

	return result, nil
}

// ImportTrackByID imports exactly one record by provider id. An id that
// does not resolve upstream yields {Imported: 0, Failed: 1}.
func (im *Importer) ImportTrackByID(ctx context.Context, externalID string) (*ImportResult, error) {
	result := newImportResult()

	raw, err := im.client.GetTrack(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup of %s failed: %w", externalID, err)
	}
	if raw == nil {
		result.Failed = 1
		result.Errors = append(result.Errors, fmt.Sprintf("track %s not found upstream", externalID))
		return result, nil
	}

	im.importOne(ctx, raw, "", result)
	return result, nil
}

func (im *Importer) importOne(ctx context.Context, raw *model.SpotifyTrack, queryHint string, result *ImportResult) {
	id := IDPrefix + raw.ID

	exists, err := im.repo.ExistsByID(id)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("existence check for %s failed: %v", id, err))
		return
	}
	if exists {
		result.TrackIDs = append(result.TrackIDs, id)
		result.Warnings = append(result.Warnings, fmt.Sprintf("track %s already in catalog, skipped", id))
		return
	}

	track, err := im.normalize(ctx, raw, queryHint)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("normalization of %s failed: %v", id, err))
		return
	}

	if err := im.repo.UpsertTrack(track); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("upsert of %s failed: %v", id, err))
		return
	}

	result.TrackIDs = append(result.TrackIDs, id)
	result.Imported++
}

// RecommendAndImport runs a recommendation call and imports the results
// under the same contract as SearchAndImport.
func (im *Importer) RecommendAndImport(ctx context.Context, seedGenres, seedArtists, seedTracks []string, tunables model.RecommendTunables) (*ImportResult, error) {
	result := newImportResult()

	hits, err := im.client.Recommend(ctx, seedGenres, seedArtists, seedTracks, tunables)
	if err != nil {
		return nil, fmt.Errorf("recommendation failed: %w", err)
	}

	hint := strings.Join(seedGenres, " ")
	for i := range hits {
		im.importOne(ctx, &hits[i], hint, result)
	}

	return result, nil
}

// normalize maps a raw provider record into the internal track shape.
// Audio features come from the provider when the endpoint is open to
// this credential tier, otherwise from genre-signal inference.
func (im *Importer) normalize(ctx context.Context, raw *model.SpotifyTrack, queryHint string) (*model.Track, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("record has no id")
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("record %s has no title", raw.ID)
	}

	artistNames := make([]string, 0, len(raw.Artists))
	for _, a := range raw.Artists {
		artistNames = append(artistNames, a.Name)
	}
	artist := strings.Join(artistNames, ", ")
	if artist == "" {
		return nil, fmt.Errorf("record %s has no artist", raw.ID)
	}

	now := time.Now()
	track := &model.Track{
		ID:        IDPrefix + raw.ID,
		Artist:    artist,
		Title:     raw.Name,
		Duration:  raw.DurationMs / 1000,
		Album:     raw.Album.Name,
		Label:     raw.Album.Label,
		Year:      parseReleaseYear(raw.Album.ReleaseDate),
		CreatedAt: now,
		UpdatedAt: now,
	}

	features, err := im.client.GetAudioFeatures(ctx, raw.ID)
	switch {
	case err == nil && features != nil && features.Tempo > 0:
		track.BPM = features.Tempo
		track.Energy = energyScale(features.Energy)
		if key, kerr := camelot.PitchClassToKey(features.Key, features.Mode); kerr == nil {
			track.Key = key
		} else {
			track.Key = inferKey(track.ID, detectGenre(queryHint, artist))
			track.Inferred = true
		}
	case errors.Is(err, ErrFeaturesUnavailable):
		inferFeatures(track, raw, queryHint)
	case err != nil:
		// Transient feature failures should not sink the import either.
		logger.Warn("Audio features lookup failed, inferring",
			logger.String("trackId", track.ID),
			logger.ErrorField(err))
		inferFeatures(track, raw, queryHint)
	default:
		inferFeatures(track, raw, queryHint)
	}

	return track, nil
}

// energyScale maps the provider's 0-1 energy onto the catalog's 1-5 scale.
func energyScale(energy float64) int {
	if energy <= 0 {
		return 0
	}
	scaled := int(energy*5) + 1
	if scaled > 5 {
		scaled = 5
	}
	return scaled
}

func parseReleaseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}
