package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cratefm/cache"
	"cratefm/logger"
	"cratefm/model"
)

// maxRecommendSeeds is the provider's cap on total recommendation seeds.
const maxRecommendSeeds = 5

// ErrFeaturesUnavailable marks the audio-features endpoint as blocked
// for the configured credential tier. Callers fall back to inference.
var ErrFeaturesUnavailable = errors.New("audio features endpoint unavailable")

// SearchTracks searches the provider catalog for tracks matching query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]model.SpotifyTrack, error) {
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var result model.SpotifySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return result.Tracks.Items, nil
}

// GetTrack fetches one raw record by provider id. Returns (nil, nil)
// when the id does not resolve upstream.
func (c *Client) GetTrack(ctx context.Context, id string) (*model.SpotifyTrack, error) {
	body, err := c.get(ctx, "/tracks/"+url.PathEscape(id), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var track model.SpotifyTrack
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, fmt.Errorf("failed to decode track response: %w", err)
	}

	return &track, nil
}

// GetAudioFeatures fetches the provider's audio analysis for a track.
// A 403 means the calling application's credential tier has no access;
// this surfaces as ErrFeaturesUnavailable so importers can infer
// features instead of defaulting.
func (c *Client) GetAudioFeatures(ctx context.Context, id string) (*model.SpotifyAudioFeatures, error) {
	body, err := c.get(ctx, "/audio-features/"+url.PathEscape(id), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusNotFound) {
			return nil, ErrFeaturesUnavailable
		}
		return nil, err
	}

	var features model.SpotifyAudioFeatures
	if err := json.Unmarshal(body, &features); err != nil {
		return nil, fmt.Errorf("failed to decode audio features: %w", err)
	}

	return &features, nil
}

// Recommend asks the provider for recommendation-style candidates.
// Seeds are capped at 5 total across genres, artists and tracks, in
// that priority order (upstream constraint).
func (c *Client) Recommend(ctx context.Context, seedGenres, seedArtists, seedTracks []string, tunables model.RecommendTunables) ([]model.SpotifyTrack, error) {
	genres, artists, tracks := capSeeds(seedGenres, seedArtists, seedTracks)
	if len(genres)+len(artists)+len(tracks) == 0 {
		return nil, fmt.Errorf("at least one recommendation seed is required")
	}

	params := url.Values{}
	if len(genres) > 0 {
		params.Set("seed_genres", strings.Join(genres, ","))
	}
	if len(artists) > 0 {
		params.Set("seed_artists", strings.Join(artists, ","))
	}
	if len(tracks) > 0 {
		params.Set("seed_tracks", strings.Join(tracks, ","))
	}
	if tunables.MinBPM > 0 {
		params.Set("min_tempo", strconv.FormatFloat(tunables.MinBPM, 'f', -1, 64))
	}
	if tunables.MaxBPM > 0 {
		params.Set("max_tempo", strconv.FormatFloat(tunables.MaxBPM, 'f', -1, 64))
	}
	if tunables.TargetEnergy > 0 {
		params.Set("target_energy", strconv.FormatFloat(tunables.TargetEnergy, 'f', 2, 64))
	}
	if tunables.MinPopularity > 0 {
		params.Set("min_popularity", strconv.Itoa(tunables.MinPopularity))
	}
	if tunables.TargetKey >= 0 {
		params.Set("target_key", strconv.Itoa(tunables.TargetKey))
	}
	if tunables.TargetMode >= 0 {
		params.Set("target_mode", strconv.Itoa(tunables.TargetMode))
	}

	body, err := c.get(ctx, "/recommendations", params)
	if err != nil {
		return nil, err
	}

	var result model.SpotifyRecommendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	return result.Tracks, nil
}

// ListGenreSeeds returns the provider's recommendation genre seeds,
// served from the Redis cache when warm.
func (c *Client) ListGenreSeeds(ctx context.Context) ([]string, error) {
	if cache.RedisClient != nil {
		if cached, err := cache.GetGenreSeeds(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	body, err := c.get(ctx, "/recommendations/available-genre-seeds", nil)
	if err != nil {
		return nil, err
	}

	var result model.SpotifyGenreSeedsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode genre seeds: %w", err)
	}

	if cache.RedisClient != nil {
		if err := cache.PutGenreSeeds(ctx, result.Genres); err != nil {
			logger.Warn("Failed to cache genre seeds", logger.ErrorField(err))
		}
	}

	return result.Genres, nil
}

func capSeeds(genres, artists, tracks []string) ([]string, []string, []string) {
	budget := maxRecommendSeeds
	take := func(in []string) []string {
		if len(in) > budget {
			in = in[:budget]
		}
		budget -= len(in)
		return in
	}
	g := take(genres)
	a := take(artists)
	t := take(tracks)
	return g, a, t
}
