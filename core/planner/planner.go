package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cratefm/config"
	"cratefm/core/llm"
	"cratefm/core/validate"
	"cratefm/logger"
	"cratefm/model"
	"cratefm/repository"
)

// Revision instruction bounds. Anything outside them is rejected before
// a model call is made.
const (
	minRevisionLen = 5
	maxRevisionLen = 500
)

// revisionDriftWarning is how far (seconds) a revision may move the
// total duration before the caller is warned.
const revisionDriftWarning = 600

// PoolBuilder gathers candidate track ids for a derived intent.
// search.Orchestrator is the production implementation.
type PoolBuilder interface {
	BuildCandidatePool(ctx context.Context, intent *model.DerivedIntent) (*model.CandidatePool, error)
}

// Planner drives a prompt through intent derivation, candidate
// generation, sequencing and annotation to produce a draft Plan. Every
// model-assisted stage except revision degrades to a deterministic
// fallback, so a Planner with no Completer at all still plans.
type Planner struct {
	repo  repository.TrackRepository
	plans repository.PlanRepository // may be nil, then plans are not persisted
	llm   llm.Completer             // may be nil, then pipeline is fully deterministic
	pool  PoolBuilder
	cfg   config.PlannerConfig
}

// NewPlanner wires the planner. plans and completer may be nil.
func NewPlanner(repo repository.TrackRepository, plans repository.PlanRepository,
	completer llm.Completer, pool PoolBuilder, cfg config.PlannerConfig) *Planner {
	return &Planner{repo: repo, plans: plans, llm: completer, pool: pool, cfg: cfg}
}

// trace accumulates per-stage provenance for PlanDetails.
type trace struct {
	stages  []string
	usedLLM bool
}

func (t *trace) record(stage string, fromModel bool) {
	source := "fallback"
	if fromModel {
		source = "llm"
		t.usedLLM = true
	}
	t.stages = append(t.stages, stage+":"+source)
}

// CreatePlan runs the full pipeline for a prompt. seedIDs are anchor
// tracks that must open the crate in the given order; an unresolvable
// or invalid seed fails the whole attempt before any candidate work.
func (p *Planner) CreatePlan(ctx context.Context, prompt model.Prompt, seedIDs []string) (*model.Plan, error) {
	if result := validate.ValidatePrompt(&prompt); !result.IsValid {
		return nil, fmt.Errorf("invalid prompt: %s", strings.Join(result.Errors, "; "))
	}

	seeds, err := p.resolveSeeds(seedIDs)
	if err != nil {
		return nil, err
	}

	tr := &trace{}

	intent, fromModel := p.deriveIntent(ctx, &prompt, seeds)
	tr.record("intent", fromModel)

	pool, err := p.pool.BuildCandidatePool(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("candidate generation failed: %w", err)
	}
	if len(pool.TrackIDs) == 0 && len(seeds) == 0 {
		return nil, fmt.Errorf("no candidates matched the derived constraints (%s)", pool.FilterSummary)
	}

	pool, fromModel = p.selectPool(ctx, intent, pool)
	tr.record("pool", fromModel)

	candidates, err := p.poolTracks(pool, seedIDs)
	if err != nil {
		return nil, err
	}

	order, fromModel := p.sequence(ctx, intent, seeds, candidates)
	tr.record("sequence", fromModel)

	plan := &model.Plan{
		ID:       uuid.New().String(),
		Prompt:   prompt,
		TrackIDs: order,
		Details: model.PlanDetails{
			UsedLLM:  tr.usedLLM,
			LLMTrace: strings.Join(tr.stages, ","),
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	plan.TotalDuration = p.totalDuration(plan.TrackIDs)

	p.explain(ctx, plan, intent)

	if p.plans != nil {
		if err := p.plans.CreatePlan(plan); err != nil {
			return nil, err
		}
	}

	logger.Info("Plan created",
		logger.String("planId", plan.ID),
		logger.Int("tracks", len(plan.TrackIDs)),
		logger.Int("totalDuration", plan.TotalDuration),
		logger.Bool("usedLlm", plan.Details.UsedLLM))
	return plan, nil
}

// resolveSeeds loads and validates seed tracks, fail-fast on any
// problem so candidate work never runs for a doomed attempt.
func (p *Planner) resolveSeeds(seedIDs []string) ([]*model.Track, error) {
	seeds := make([]*model.Track, 0, len(seedIDs))
	seen := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		if seen[id] {
			return nil, fmt.Errorf("seed %q is listed twice", id)
		}
		seen[id] = true

		track, err := p.repo.GetTrackByID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed %q: %w", id, err)
		}
		if track == nil {
			return nil, fmt.Errorf("seed %q not found in catalog", id)
		}
		if result := validate.ValidateTrack(track); !result.IsValid {
			return nil, fmt.Errorf("seed %q is invalid: %s", id, strings.Join(result.Errors, "; "))
		}
		seeds = append(seeds, track)
	}
	return seeds, nil
}

// poolTracks resolves the pool to catalog records, excluding seed ids
// so sequencing never places a seed twice.
func (p *Planner) poolTracks(pool *model.CandidatePool, seedIDs []string) ([]*model.Track, error) {
	seedSet := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		seedSet[id] = true
	}

	ids := make([]string, 0, len(pool.TrackIDs))
	for _, id := range pool.TrackIDs {
		if !seedSet[id] {
			ids = append(ids, id)
		}
	}
	if p.cfg.MaxCandidates > 0 && len(ids) > p.cfg.MaxCandidates {
		ids = ids[:p.cfg.MaxCandidates]
	}

	tracks, err := p.repo.GetTracksByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	return tracks, nil
}

func (p *Planner) totalDuration(ids []string) int {
	tracks, err := p.repo.GetTracksByIDs(ids)
	if err != nil {
		logger.Warn("Failed to sum plan duration", logger.ErrorField(err))
		return 0
	}
	total := 0
	for _, tr := range tracks {
		total += tr.Duration
	}
	return total
}

func (p *Planner) resolver() validate.TrackResolver {
	return func(id string) *model.Track {
		track, err := p.repo.GetTrackByID(id)
		if err != nil {
			return nil
		}
		return track
	}
}

// Validate checks a plan against the catalog without changing it.
func (p *Planner) Validate(plan *model.Plan) *validate.ValidationResult {
	return validate.ValidatePlan(plan, p.resolver(), p.cfg.DurationTolerance)
}

// Finalize locks a plan. The transition happens only when validation
// reports zero errors; the result carries whatever it found either way.
func (p *Planner) Finalize(plan *model.Plan) (*validate.ValidationResult, error) {
	result := validate.CheckFinalize(plan, p.resolver(), p.cfg.DurationTolerance)
	if !result.IsValid {
		return result, nil
	}

	plan.Finalized = true
	plan.UpdatedAt = time.Now()
	if p.plans != nil {
		if err := p.plans.UpdatePlan(plan); err != nil {
			plan.Finalized = false
			return result, err
		}
	}

	logger.Info("Plan finalized", logger.String("planId", plan.ID))
	return result, nil
}
