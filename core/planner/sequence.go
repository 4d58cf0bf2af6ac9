package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cratefm/core/llm"
	"cratefm/logger"
	"cratefm/model"
)

// poolSelection is the shape the model returns for the pool-refinement
// stage.
type poolSelection struct {
	TrackIDs  []string `json:"trackIds"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// sequenceResponse is the shape the model returns for the sequencing
// stage.
type sequenceResponse struct {
	TrackIDs  []string `json:"trackIds"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// selectPool optionally asks the model to narrow the raw pool to the
// best-fitting subset. The model may only remove, never add: returned
// ids outside the raw pool are dropped, and an empty survivor set means
// the raw pool is used unchanged.
func (p *Planner) selectPool(ctx context.Context, intent *model.DerivedIntent, pool *model.CandidatePool) (*model.CandidatePool, bool) {
	if p.llm == nil || !p.cfg.UseLLM || len(pool.TrackIDs) == 0 {
		return pool, false
	}

	tracks, err := p.repo.GetTracksByIDs(pool.TrackIDs)
	if err != nil {
		logger.Warn("Failed to load pool for selection, keeping raw pool", logger.ErrorField(err))
		return pool, false
	}

	response, err := p.llm.Execute(ctx, selectPoolPrompt(intent, tracks))
	if err != nil {
		logger.Warn("Pool selection call failed, keeping raw pool", logger.ErrorField(err))
		return pool, false
	}

	selection, fromModel := llm.ParseOrFallback(response,
		func(s *poolSelection) bool { return len(s.TrackIDs) > 0 },
		func() poolSelection { return poolSelection{TrackIDs: pool.TrackIDs} })
	if !fromModel {
		return pool, false
	}

	kept := intersect(selection.TrackIDs, pool.TrackIDs)
	if len(kept) == 0 {
		logger.Warn("Pool selection returned no known ids, keeping raw pool",
			logger.Int("returned", len(selection.TrackIDs)))
		return pool, false
	}

	return &model.CandidatePool{
		TrackIDs:      kept,
		FilterSummary: pool.FilterSummary + "; model-selected",
	}, true
}

// sequence orders seeds plus candidates into the final crate. Seeds
// always open the crate in their given order; the model arranges the
// rest, and on any parse or membership failure the deterministic order
// takes over.
func (p *Planner) sequence(ctx context.Context, intent *model.DerivedIntent, seeds, candidates []*model.Track) ([]string, bool) {
	if p.llm != nil && p.cfg.UseLLM && len(candidates) > 0 {
		if order, ok := p.sequenceWithModel(ctx, intent, seeds, candidates); ok {
			return order, true
		}
	}
	return sequenceDeterministic(seeds, candidates, intent.TargetDuration), false
}

func (p *Planner) sequenceWithModel(ctx context.Context, intent *model.DerivedIntent, seeds, candidates []*model.Track) ([]string, bool) {
	response, err := p.llm.Execute(ctx, sequencePrompt(intent, seeds, candidates))
	if err != nil {
		logger.Warn("Sequencing call failed, falling back", logger.ErrorField(err))
		return nil, false
	}

	allowed := make(map[string]bool, len(candidates))
	for _, tr := range candidates {
		allowed[tr.ID] = true
	}

	seq, fromModel := llm.ParseOrFallback(response,
		func(s *sequenceResponse) bool { return len(s.TrackIDs) > 0 },
		func() sequenceResponse { return sequenceResponse{} })
	if !fromModel {
		return nil, false
	}

	// Seeds stay pinned at the front regardless of what the model says;
	// everything after them must be a distinct pool member.
	order := make([]string, 0, len(seeds)+len(seq.TrackIDs))
	used := make(map[string]bool, len(seeds)+len(seq.TrackIDs))
	for _, tr := range seeds {
		order = append(order, tr.ID)
		used[tr.ID] = true
	}
	for _, id := range seq.TrackIDs {
		if allowed[id] && !used[id] {
			order = append(order, id)
			used[id] = true
		}
	}
	if len(order) == len(seeds) {
		logger.Warn("Model sequence contained no usable candidate ids, falling back")
		return nil, false
	}
	return order, true
}

// sequenceDeterministic is the no-model ordering: seeds first in their
// given order, then candidates in stable ascending BPM, appended until
// the running duration reaches the target or the pool runs out. A zero
// target takes everything.
func sequenceDeterministic(seeds, candidates []*model.Track, targetDuration int) []string {
	order := make([]string, 0, len(seeds)+len(candidates))
	running := 0
	for _, tr := range seeds {
		order = append(order, tr.ID)
		running += tr.Duration
	}

	sorted := make([]*model.Track, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BPM < sorted[j].BPM })

	for _, tr := range sorted {
		if targetDuration > 0 && running >= targetDuration {
			break
		}
		order = append(order, tr.ID)
		running += tr.Duration
	}
	return order
}

func intersect(ids, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if allowedSet[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

func selectPoolPrompt(intent *model.DerivedIntent, tracks []*model.Track) string {
	var b strings.Builder
	b.WriteString("You are a DJ assistant. From the candidate tracks below, pick the subset that best fits the constraints. Only use the listed ids.\n\n")
	writeIntent(&b, intent)
	b.WriteString("\nCandidates:\n")
	writeTrackList(&b, tracks)
	b.WriteString("\nRespond with only JSON: {\"trackIds\": [...], \"reasoning\": \"...\"}")
	return b.String()
}

func sequencePrompt(intent *model.DerivedIntent, seeds, candidates []*model.Track) string {
	var b strings.Builder
	b.WriteString("You are a DJ assistant. Order the candidate tracks into a set with coherent tempo and key transitions. Only use the listed ids; do not repeat any.\n\n")
	writeIntent(&b, intent)
	if len(seeds) > 0 {
		b.WriteString("\nThe set already opens with (do not include these):\n")
		writeTrackList(&b, seeds)
	}
	b.WriteString("\nCandidates to order:\n")
	writeTrackList(&b, candidates)
	b.WriteString("\nRespond with only JSON: {\"trackIds\": [...], \"reasoning\": \"...\"}")
	return b.String()
}

func writeIntent(b *strings.Builder, intent *model.DerivedIntent) {
	fmt.Fprintf(b, "Constraints: bpm %g-%g, keys %v, genres %v, target %d seconds, style %s\n",
		intent.BPMMin, intent.BPMMax, intent.Keys, intent.Genres, intent.TargetDuration, intent.MixStyle)
}

func writeTrackList(b *strings.Builder, tracks []*model.Track) {
	for _, tr := range tracks {
		fmt.Fprintf(b, "- id=%s %s - %s (%g bpm, %s, energy %d, %ds)\n",
			tr.ID, tr.Artist, tr.Title, tr.BPM, tr.Key, tr.Energy, tr.Duration)
	}
}
