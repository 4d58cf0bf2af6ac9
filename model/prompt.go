package model

// Prompt carries the user-supplied constraints for a crate.
// A prompt is immutable once created; the planner consumes it but never
// mutates it.
type Prompt struct {
	BPMMin         float64 `json:"bpmMin,omitempty"`
	BPMMax         float64 `json:"bpmMax,omitempty"`
	Key            string  `json:"key,omitempty"`
	Genre          string  `json:"genre,omitempty"`
	TargetDuration int     `json:"targetDuration,omitempty"` // seconds
	Notes          string  `json:"notes,omitempty"`
}

// MixStyle is the closed enumeration of crate pacing styles.
type MixStyle string

const (
	MixStyleSmooth    MixStyle = "smooth"
	MixStyleEnergetic MixStyle = "energetic"
	MixStyleEclectic  MixStyle = "eclectic"
)

// ValidMixStyle reports whether s is one of the known mix styles.
func ValidMixStyle(s MixStyle) bool {
	switch s {
	case MixStyleSmooth, MixStyleEnergetic, MixStyleEclectic:
		return true
	}
	return false
}

// DerivedIntent is the structured, machine-usable restatement of a
// Prompt. All list fields are always materialized, possibly empty.
// Derived once per planning attempt and never mutated afterwards.
type DerivedIntent struct {
	BPMMin         float64  `json:"bpmMin"`
	BPMMax         float64  `json:"bpmMax"`
	Keys           []string `json:"keys"`
	Genres         []string `json:"genres"`
	TargetDuration int      `json:"targetDuration"` // seconds
	MixStyle       MixStyle `json:"mixStyle"`
	IncludeArtists []string `json:"includeArtists"`
	AvoidArtists   []string `json:"avoidArtists"`
	IncludeTracks  []string `json:"includeTracks"`
	AvoidTracks    []string `json:"avoidTracks"`
	EnergyCurve    string   `json:"energyCurve,omitempty"`
	// TargetEnergy and MinPopularity are only meaningful when the
	// candidate source exposes such metadata (e.g. Spotify).
	TargetEnergy  float64 `json:"targetEnergy,omitempty"`  // 0-1
	MinPopularity int     `json:"minPopularity,omitempty"` // 0-100
}

// Normalize materializes any nil list fields as empty slices so callers
// never have to distinguish absent from empty.
func (d *DerivedIntent) Normalize() {
	if d.Keys == nil {
		d.Keys = []string{}
	}
	if d.Genres == nil {
		d.Genres = []string{}
	}
	if d.IncludeArtists == nil {
		d.IncludeArtists = []string{}
	}
	if d.AvoidArtists == nil {
		d.AvoidArtists = []string{}
	}
	if d.IncludeTracks == nil {
		d.IncludeTracks = []string{}
	}
	if d.AvoidTracks == nil {
		d.AvoidTracks = []string{}
	}
}
