// Package validate holds the pure constraint checks for tracks,
// prompts, derived intents and plans. Every check returns a structured
// ValidationResult; nothing here panics or touches external state.
package validate

import (
	"fmt"

	"cratefm/core/camelot"
	"cratefm/model"
)

// DefaultDurationTolerance is how far (seconds) a plan's total duration
// may drift from the prompt's target before validation fails.
const DefaultDurationTolerance = 300

// Advisory BPM band for catalog tracks. Values outside it are unusual
// but not invalid.
const (
	advisoryBPMMin = 60
	advisoryBPMMax = 200
)

// ValidationResult is the outcome of a constraint check. Errors block
// finalization; warnings do not.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newResult() *ValidationResult {
	return &ValidationResult{IsValid: true, Errors: []string{}, Warnings: []string{}}
}

func (r *ValidationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// TrackResolver looks a track up by identifier, returning nil when the
// id does not resolve in the catalog.
type TrackResolver func(id string) *model.Track

// ValidateTrack checks a single catalog entry.
func ValidateTrack(track *model.Track) *ValidationResult {
	result := newResult()

	if track.ID == "" {
		result.addError("track id is required")
	}
	if track.Artist == "" {
		result.addError("artist is required")
	}
	if track.Title == "" {
		result.addError("title is required")
	}
	if track.Duration < 0 {
		result.addError("duration must not be negative, got %d", track.Duration)
	}

	if track.BPM <= 0 {
		result.addError("bpm must be positive, got %g", track.BPM)
	} else if track.BPM < advisoryBPMMin || track.BPM > advisoryBPMMax {
		result.addWarning("bpm %g is outside the usual %d-%d range", track.BPM, advisoryBPMMin, advisoryBPMMax)
	}

	if !camelot.IsValidKey(track.Key) {
		result.addError("key %q is not a valid camelot notation", track.Key)
	}

	if track.Energy != 0 && (track.Energy < 1 || track.Energy > 5) {
		result.addError("energy must be between 1 and 5, got %d", track.Energy)
	}

	for i, sec := range track.Sections {
		if sec.End < sec.Start {
			result.addError("section %d (%s) ends before it starts", i, sec.Type)
		}
	}

	return result
}

// ValidatePrompt checks user-supplied crate constraints.
func ValidatePrompt(prompt *model.Prompt) *ValidationResult {
	result := newResult()

	if prompt.BPMMin != 0 && prompt.BPMMax != 0 && prompt.BPMMin > prompt.BPMMax {
		result.addError("bpm range is inverted: min %g > max %g", prompt.BPMMin, prompt.BPMMax)
	}
	if prompt.TargetDuration < 0 {
		result.addError("target duration must not be negative, got %d", prompt.TargetDuration)
	}
	if prompt.Key != "" && !camelot.IsValidKey(prompt.Key) {
		result.addError("key %q is not a valid camelot notation", prompt.Key)
	}

	return result
}

// ValidateIntent checks a derived intent before it drives candidate
// generation.
func ValidateIntent(intent *model.DerivedIntent) *ValidationResult {
	result := newResult()

	if intent.BPMMin != 0 && intent.BPMMax != 0 && intent.BPMMin > intent.BPMMax {
		result.addError("bpm range is inverted: min %g > max %g", intent.BPMMin, intent.BPMMax)
	}
	if intent.TargetDuration <= 0 {
		result.addError("target duration must be positive, got %d", intent.TargetDuration)
	}
	for _, key := range intent.Keys {
		if !camelot.IsValidKey(key) {
			result.addError("key %q is not a valid camelot notation", key)
		}
	}
	if !model.ValidMixStyle(intent.MixStyle) {
		result.addError("mix style %q is not one of smooth/energetic/eclectic", intent.MixStyle)
	}

	return result
}

// ValidatePlan is the load-bearing check before finalization. resolver
// supplies catalog lookups; tolerance <= 0 falls back to
// DefaultDurationTolerance.
func ValidatePlan(plan *model.Plan, resolver TrackResolver, tolerance int) *ValidationResult {
	result := newResult()

	if tolerance <= 0 {
		tolerance = DefaultDurationTolerance
	}

	if len(plan.TrackIDs) == 0 {
		result.addError("plan has no tracks")
		return result
	}
	if len(plan.TrackIDs) < 2 {
		result.addWarning("plan has only %d track", len(plan.TrackIDs))
	}
	if len(plan.TrackIDs) > 100 {
		result.addWarning("plan has %d tracks, which is unusually long", len(plan.TrackIDs))
	}

	// Duplicate detection uses exact identifier equality.
	seen := make(map[string]bool, len(plan.TrackIDs))
	for _, id := range plan.TrackIDs {
		if seen[id] {
			result.addError("duplicate track id %q", id)
		}
		seen[id] = true
	}

	total := 0
	for _, id := range plan.TrackIDs {
		track := resolver(id)
		if track == nil {
			result.addError("track %q not found in catalog", id)
			continue
		}
		total += track.Duration
	}

	if target := plan.Prompt.TargetDuration; target > 0 {
		diff := total - target
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			result.addError("total duration %ds is %ds away from the %ds target (tolerance %ds)",
				total, diff, target, tolerance)
		} else if diff > tolerance/2 {
			result.addWarning("total duration %ds is %ds away from the %ds target", total, diff, target)
		}
	}

	return result
}

// CheckFinalize is the finalization guard: a plan that is already
// finalized, or that fails plan validity, cannot be finalized. The
// returned result carries the accumulated error list.
func CheckFinalize(plan *model.Plan, resolver TrackResolver, tolerance int) *ValidationResult {
	if plan.Finalized {
		result := newResult()
		result.addError("plan %s is already finalized", plan.ID)
		return result
	}
	return ValidatePlan(plan, resolver, tolerance)
}
