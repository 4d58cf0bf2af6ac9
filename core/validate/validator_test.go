package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cratefm/model"
)

func validTrack(id string, duration int) *model.Track {
	return &model.Track{
		ID:       id,
		Artist:   "Artist",
		Title:    "Title " + id,
		Duration: duration,
		BPM:      124,
		Key:      "8A",
	}
}

func catalogOf(tracks ...*model.Track) TrackResolver {
	byID := make(map[string]*model.Track, len(tracks))
	for _, tr := range tracks {
		byID[tr.ID] = tr
	}
	return func(id string) *model.Track {
		return byID[id]
	}
}

func TestValidateTrack(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*model.Track)
		wantValid    bool
		wantWarnings int
	}{
		{
			name:      "valid track",
			mutate:    func(tr *model.Track) {},
			wantValid: true,
		},
		{
			name:      "missing artist",
			mutate:    func(tr *model.Track) { tr.Artist = "" },
			wantValid: false,
		},
		{
			name:      "zero bpm",
			mutate:    func(tr *model.Track) { tr.BPM = 0 },
			wantValid: false,
		},
		{
			name:         "extreme bpm warns but passes",
			mutate:       func(tr *model.Track) { tr.BPM = 210 },
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:      "bad key",
			mutate:    func(tr *model.Track) { tr.Key = "13C" },
			wantValid: false,
		},
		{
			name:      "energy out of range",
			mutate:    func(tr *model.Track) { tr.Energy = 6 },
			wantValid: false,
		},
		{
			name:      "energy in range",
			mutate:    func(tr *model.Track) { tr.Energy = 3 },
			wantValid: true,
		},
		{
			name: "section ends before start",
			mutate: func(tr *model.Track) {
				tr.Sections = []model.TrackSection{{Type: "drop", Start: 60, End: 30}}
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := validTrack("local:x", 300)
			tt.mutate(track)

			result := ValidateTrack(track)
			assert.Equal(t, tt.wantValid, result.IsValid, "errors: %v", result.Errors)
			assert.Len(t, result.Warnings, tt.wantWarnings)
		})
	}
}

func TestValidatePrompt(t *testing.T) {
	ok := ValidatePrompt(&model.Prompt{BPMMin: 120, BPMMax: 128, Key: "5B", TargetDuration: 3600})
	assert.True(t, ok.IsValid)

	inverted := ValidatePrompt(&model.Prompt{BPMMin: 130, BPMMax: 120})
	assert.False(t, inverted.IsValid)

	badKey := ValidatePrompt(&model.Prompt{Key: "0A"})
	assert.False(t, badKey.IsValid)

	negative := ValidatePrompt(&model.Prompt{TargetDuration: -1})
	assert.False(t, negative.IsValid)
}

func TestValidateIntent(t *testing.T) {
	intent := &model.DerivedIntent{
		BPMMin:         120,
		BPMMax:         128,
		Keys:           []string{"8A", "9A"},
		TargetDuration: 3600,
		MixStyle:       model.MixStyleSmooth,
	}
	intent.Normalize()
	assert.True(t, ValidateIntent(intent).IsValid)

	bad := *intent
	bad.MixStyle = "frantic"
	assert.False(t, ValidateIntent(&bad).IsValid)

	badKeys := *intent
	badKeys.Keys = []string{"8A", "nope"}
	assert.False(t, ValidateIntent(&badKeys).IsValid)

	noDuration := *intent
	noDuration.TargetDuration = 0
	assert.False(t, ValidateIntent(&noDuration).IsValid)
}

func TestValidatePlanDurationTolerance(t *testing.T) {
	a := validTrack("local:a", 1975)
	b := validTrack("local:b", 1975)
	resolver := catalogOf(a, b)

	// 3950 vs 3600 target: 350s off, beyond the 300s tolerance.
	over := &model.Plan{
		Prompt:   model.Prompt{TargetDuration: 3600},
		TrackIDs: []string{"local:a", "local:b"},
	}
	result := ValidatePlan(over, resolver, 300)
	assert.False(t, result.IsValid)

	// 3800 vs 3600 target: 200s off, within tolerance.
	c := validTrack("local:c", 1900)
	d := validTrack("local:d", 1900)
	within := &model.Plan{
		Prompt:   model.Prompt{TargetDuration: 3600},
		TrackIDs: []string{"local:c", "local:d"},
	}
	result = ValidatePlan(within, catalogOf(c, d), 300)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestValidatePlanDuplicatesAndMissing(t *testing.T) {
	a := validTrack("local:a", 300)
	resolver := catalogOf(a)

	dup := &model.Plan{TrackIDs: []string{"local:a", "local:a"}}
	result := ValidatePlan(dup, resolver, 0)
	assert.False(t, result.IsValid)

	missing := &model.Plan{TrackIDs: []string{"local:a", "local:ghost"}}
	result = ValidatePlan(missing, resolver, 0)
	assert.False(t, result.IsValid)

	empty := &model.Plan{TrackIDs: nil}
	result = ValidatePlan(empty, resolver, 0)
	assert.False(t, result.IsValid)
}

func TestCheckFinalize(t *testing.T) {
	a := validTrack("local:a", 300)
	b := validTrack("local:b", 300)
	resolver := catalogOf(a, b)

	plan := &model.Plan{TrackIDs: []string{"local:a", "local:b"}}
	result := CheckFinalize(plan, resolver, 0)
	require.True(t, result.IsValid, "errors: %v", result.Errors)

	plan.Finalized = true
	result = CheckFinalize(plan, resolver, 0)
	assert.False(t, result.IsValid)

	// Finalize succeeds iff validation reports zero errors.
	invalid := &model.Plan{TrackIDs: []string{"local:a", "local:a"}}
	result = CheckFinalize(invalid, resolver, 0)
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Errors)
}
