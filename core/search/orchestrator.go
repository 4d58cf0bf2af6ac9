// Package search turns a derived intent into a candidate pool, either
// through the external metadata source or through a deterministic
// catalog query when no source is wired in.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cratefm/cache"
	"cratefm/core/camelot"
	"cratefm/core/spotify"
	"cratefm/logger"
	"cratefm/model"
	"cratefm/repository"
)

// BPM post-filter slack around the intent range. Inferred tracks carry
// approximate tempos, so they get a wider window.
const (
	bpmSlack         = 8.0
	bpmSlackInferred = 15.0
)

// ExternalSource is the importer capability the orchestrator drives.
type ExternalSource interface {
	SearchAndImport(ctx context.Context, query string, limit int) (*spotify.ImportResult, error)
	RecommendAndImport(ctx context.Context, seedGenres, seedArtists, seedTracks []string, tunables model.RecommendTunables) (*spotify.ImportResult, error)
}

// Orchestrator merges external search results into candidate pools.
// source may be nil, in which case only the catalog path runs.
type Orchestrator struct {
	source       ExternalSource
	repo         repository.TrackRepository
	perQueryHits int
}

// NewOrchestrator wires an orchestrator. source may be nil.
func NewOrchestrator(source ExternalSource, repo repository.TrackRepository) *Orchestrator {
	return &Orchestrator{source: source, repo: repo, perQueryHits: 20}
}

// BuildCandidatePool gathers candidates for the intent. The external
// path fans out one import per query variant plus a recommendation
// call, merges by exact identifier, then post-filters; the fallback
// path is a deterministic catalog query. Both converge on the same
// pool shape.
func (o *Orchestrator) BuildCandidatePool(ctx context.Context, intent *model.DerivedIntent) (*model.CandidatePool, error) {
	if cache.RedisClient != nil {
		if cached, err := cache.GetCandidatePool(ctx, intent); err == nil && cached != nil {
			logger.Debug("Candidate pool served from cache",
				logger.Int("tracks", len(cached.TrackIDs)))
			return cached, nil
		}
	}

	var ids []string
	var summary string

	if o.source != nil {
		ids = o.externalCandidates(ctx, intent)
		summary = "external search"
	}

	if len(ids) == 0 {
		catalogIDs, err := o.catalogCandidates(intent)
		if err != nil {
			return nil, err
		}
		ids = catalogIDs
		summary = "catalog query"
	}

	tracks, err := o.repo.GetTracksByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve candidates: %w", err)
	}

	kept := make([]string, 0, len(tracks))
	for _, track := range tracks {
		if o.passesFilter(track, intent) {
			kept = append(kept, track.ID)
		}
	}

	pool := &model.CandidatePool{
		TrackIDs:      kept,
		FilterSummary: o.describeFilter(summary, intent, len(ids), len(kept)),
	}

	if cache.RedisClient != nil && len(pool.TrackIDs) > 0 {
		if err := cache.PutCandidatePool(ctx, intent, pool); err != nil {
			logger.Warn("Failed to cache candidate pool", logger.ErrorField(err))
		}
	}

	logger.Info("Built candidate pool",
		logger.String("source", summary),
		logger.Int("gathered", len(ids)),
		logger.Int("kept", len(kept)))

	return pool, nil
}

// externalCandidates issues the query variants and the recommendation
// call concurrently and merges the ids. The merge is a set union keyed
// by identifier, so it is idempotent under any interleaving. Individual
// upstream failures degrade the pool instead of failing it.
func (o *Orchestrator) externalCandidates(ctx context.Context, intent *model.DerivedIntent) []string {
	queries := buildQueries(intent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	merged := make([]string, 0)

	merge := func(ids []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				merged = append(merged, id)
			}
		}
	}

	for _, query := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			result, err := o.source.SearchAndImport(ctx, q, o.perQueryHits)
			if err != nil {
				logger.Warn("Candidate search failed",
					logger.String("query", q),
					logger.ErrorField(err))
				return
			}
			merge(result.TrackIDs)
		}(query)
	}

	if len(intent.Genres) > 0 || len(intent.IncludeArtists) > 0 || len(intent.IncludeTracks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := o.source.RecommendAndImport(ctx,
				intent.Genres, intent.IncludeArtists, stripSourcePrefix(intent.IncludeTracks),
				tunablesFromIntent(intent))
			if err != nil {
				logger.Warn("Recommendation fetch failed", logger.ErrorField(err))
				return
			}
			merge(result.TrackIDs)
		}()
	}

	wg.Wait()
	return merged
}

// catalogCandidates is the deterministic fallback query.
func (o *Orchestrator) catalogCandidates(intent *model.DerivedIntent) ([]string, error) {
	filter := model.TrackFilter{
		BPMMin: intent.BPMMin,
		BPMMax: intent.BPMMax,
		Keys:   intent.Keys,
	}
	if len(intent.Genres) > 0 {
		filter.Genre = intent.Genres[0]
	}

	tracks, err := o.repo.FilterTracks(filter)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}

	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}
	return ids, nil
}

// passesFilter applies the post-filter: BPM window (wider for inferred
// tracks), key allow-list, avoid lists, and a mix-style energy window.
func (o *Orchestrator) passesFilter(track *model.Track, intent *model.DerivedIntent) bool {
	slack := bpmSlack
	if track.Inferred {
		slack = bpmSlackInferred
	}
	if intent.BPMMin > 0 && track.BPM < intent.BPMMin-slack {
		return false
	}
	if intent.BPMMax > 0 && track.BPM > intent.BPMMax+slack {
		return false
	}

	if len(intent.Keys) > 0 {
		match := false
		for _, key := range intent.Keys {
			if camelot.IsValidKey(key) && strings.EqualFold(key, track.Key) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	for _, avoid := range intent.AvoidTracks {
		if avoid == track.ID {
			return false
		}
	}
	for _, avoid := range intent.AvoidArtists {
		if strings.EqualFold(avoid, track.Artist) {
			return false
		}
	}

	if track.Energy != 0 {
		switch intent.MixStyle {
		case model.MixStyleSmooth:
			if track.Energy < 2 || track.Energy > 4 {
				return false
			}
		case model.MixStyleEnergetic:
			if track.Energy < 3 {
				return false
			}
		}
		// Eclectic crates take any energy.
	}

	return true
}

func (o *Orchestrator) describeFilter(source string, intent *model.DerivedIntent, gathered, kept int) string {
	parts := []string{source}
	if intent.BPMMin > 0 || intent.BPMMax > 0 {
		parts = append(parts, fmt.Sprintf("bpm %g-%g", intent.BPMMin, intent.BPMMax))
	}
	if len(intent.Genres) > 0 {
		parts = append(parts, "genres "+strings.Join(intent.Genres, "/"))
	}
	if len(intent.Keys) > 0 {
		parts = append(parts, "keys "+strings.Join(intent.Keys, "/"))
	}
	parts = append(parts, fmt.Sprintf("%d gathered, %d kept", gathered, kept))
	return strings.Join(parts, ", ")
}

// buildQueries derives up to three plain-text search variants from the
// intent.
func buildQueries(intent *model.DerivedIntent) []string {
	queries := make([]string, 0, 3)

	for i, genre := range intent.Genres {
		if i >= 2 {
			break
		}
		queries = append(queries, genre)
	}

	if len(intent.IncludeArtists) > 0 {
		query := intent.IncludeArtists[0]
		if len(intent.Genres) > 0 {
			query = intent.Genres[0] + " " + query
		}
		queries = append(queries, query)
	}

	if len(queries) == 0 {
		queries = append(queries, string(intent.MixStyle)+" dj set")
	}

	return queries
}

func tunablesFromIntent(intent *model.DerivedIntent) model.RecommendTunables {
	tunables := model.RecommendTunables{
		MinBPM:        intent.BPMMin,
		MaxBPM:        intent.BPMMax,
		TargetEnergy:  intent.TargetEnergy,
		MinPopularity: intent.MinPopularity,
		TargetKey:     -1,
		TargetMode:    -1,
	}
	if len(intent.Keys) > 0 {
		if pc, mode, err := camelot.KeyToPitchClass(intent.Keys[0]); err == nil {
			tunables.TargetKey = pc
			tunables.TargetMode = mode
		}
	}
	return tunables
}

// stripSourcePrefix converts catalog ids back to provider ids for use
// as recommendation seeds.
func stripSourcePrefix(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.TrimPrefix(id, spotify.IDPrefix))
	}
	return out
}
