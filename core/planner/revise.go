package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cratefm/core/llm"
	"cratefm/logger"
	"cratefm/model"
)

// revisionResponse is the shape the model returns for a revision.
type revisionResponse struct {
	TrackIDs    []string `json:"trackIds"`
	Explanation string   `json:"explanation,omitempty"`
}

// Revise applies a free-text instruction to a draft plan. Unlike the
// pipeline stages there is no deterministic fallback here: a revision
// without a usable model response is an error, never a silent no-op.
// The instruction length is checked before any model call. The returned
// warnings flag anything the caller should review, such as a large
// duration drift.
func (p *Planner) Revise(ctx context.Context, plan *model.Plan, instructions string) (*model.Plan, []string, error) {
	instructions = strings.TrimSpace(instructions)
	if len(instructions) < minRevisionLen {
		return nil, nil, fmt.Errorf("revision instructions too short: need at least %d characters", minRevisionLen)
	}
	if len(instructions) > maxRevisionLen {
		return nil, nil, fmt.Errorf("revision instructions too long: at most %d characters", maxRevisionLen)
	}
	if plan.Finalized {
		return nil, nil, fmt.Errorf("plan %s is finalized and cannot be revised", plan.ID)
	}
	if p.llm == nil {
		return nil, nil, fmt.Errorf("revision requires a model backend")
	}

	current, err := p.repo.GetTracksByIDs(plan.TrackIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plan tracks: %w", err)
	}

	response, err := p.llm.Execute(ctx, revisionPrompt(plan, current, instructions))
	if err != nil {
		return nil, nil, fmt.Errorf("revision call failed: %w", err)
	}

	raw := llm.ExtractJSON(response)
	if raw == "" {
		return nil, nil, fmt.Errorf("revision response contained no usable JSON")
	}
	var rev revisionResponse
	if err := json.Unmarshal([]byte(raw), &rev); err != nil {
		return nil, nil, fmt.Errorf("revision response was not parseable: %w", err)
	}
	if len(rev.TrackIDs) == 0 {
		return nil, nil, fmt.Errorf("revision response named no tracks")
	}

	warnings := []string{}

	// Drop ids the catalog does not know, deduplicate the rest.
	kept := make([]string, 0, len(rev.TrackIDs))
	seen := make(map[string]bool, len(rev.TrackIDs))
	for _, id := range rev.TrackIDs {
		if seen[id] {
			warnings = append(warnings, fmt.Sprintf("revision repeated track %q, kept first occurrence", id))
			continue
		}
		seen[id] = true

		track, err := p.repo.GetTrackByID(id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve revised track %q: %w", id, err)
		}
		if track == nil {
			warnings = append(warnings, fmt.Sprintf("revision named unknown track %q, dropped", id))
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return nil, nil, fmt.Errorf("revision resolved to an empty plan")
	}

	revised := *plan
	revised.TrackIDs = kept
	revised.TotalDuration = p.totalDuration(kept)
	revised.UpdatedAt = time.Now()
	if rev.Explanation != "" {
		revised.Annotations = rev.Explanation
	}
	revised.Details.UsedLLM = true
	revised.Details.LLMTrace = appendTrace(revised.Details.LLMTrace, "revise:llm")

	if drift := abs(revised.TotalDuration - plan.TotalDuration); drift > revisionDriftWarning {
		warnings = append(warnings, fmt.Sprintf("revision moved total duration by %ds", drift))
	}

	if p.plans != nil {
		if err := p.plans.UpdatePlan(&revised); err != nil {
			return nil, nil, err
		}
	}

	logger.Info("Plan revised",
		logger.String("planId", revised.ID),
		logger.Int("tracks", len(revised.TrackIDs)),
		logger.Int("warnings", len(warnings)))
	return &revised, warnings, nil
}

// explain asks the model for a short narrative of the finished order.
// Annotation is cosmetic: failure logs and leaves the plan unannotated.
func (p *Planner) explain(ctx context.Context, plan *model.Plan, intent *model.DerivedIntent) {
	if p.llm == nil || !p.cfg.UseLLM || len(plan.TrackIDs) == 0 {
		return
	}

	tracks, err := p.repo.GetTracksByIDs(plan.TrackIDs)
	if err != nil {
		logger.Warn("Failed to load plan tracks for annotation", logger.ErrorField(err))
		return
	}

	response, err := p.llm.Execute(ctx, explainPrompt(intent, tracks))
	if err != nil {
		logger.Warn("Annotation call failed, leaving plan unannotated", logger.ErrorField(err))
		return
	}

	annotation := strings.TrimSpace(response)
	if annotation == "" {
		return
	}
	plan.Annotations = annotation
	plan.Details.UsedLLM = true
	plan.Details.LLMTrace = appendTrace(plan.Details.LLMTrace, "explain:llm")
}

func revisionPrompt(plan *model.Plan, tracks []*model.Track, instructions string) string {
	var b strings.Builder
	b.WriteString("You are a DJ assistant. Revise the track order below according to the instruction. Keep ids you are not asked to change.\n\nCurrent order:\n")
	writeTrackList(&b, tracks)
	fmt.Fprintf(&b, "\nInstruction: %s\n", instructions)
	b.WriteString("\nRespond with only JSON: {\"trackIds\": [...], \"explanation\": \"...\"}")
	return b.String()
}

func explainPrompt(intent *model.DerivedIntent, tracks []*model.Track) string {
	var b strings.Builder
	b.WriteString("You are a DJ assistant. In two or three sentences, describe how this set flows (tempo, key, energy). Plain text, no JSON.\n\n")
	writeIntent(&b, intent)
	b.WriteString("\nOrder:\n")
	writeTrackList(&b, tracks)
	return b.String()
}

func appendTrace(existing, stage string) string {
	if existing == "" {
		return stage
	}
	return existing + "," + stage
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
