package model

import "time"

// CandidatePool is an unordered set of track identifiers gathered for
// one DerivedIntent. Membership, not order, matters; deduplication uses
// exact identifier equality. Regeneration supersedes a pool rather than
// mutating it in place.
type CandidatePool struct {
	TrackIDs      []string `json:"trackIds"`
	FilterSummary string   `json:"filterSummary"`
}

// Contains reports whether id is a member of the pool.
func (p *CandidatePool) Contains(id string) bool {
	for _, t := range p.TrackIDs {
		if t == id {
			return true
		}
	}
	return false
}

// PlanDetails records how a plan was produced.
type PlanDetails struct {
	UsedLLM  bool   `json:"usedLlm"`
	LLMTrace string `json:"llmTrace,omitempty"`
}

// Plan is the work product: an ordered crate of tracks for a prompt.
// Order matters and duplicate track ids are invalid. A finalized plan is
// immutable; any further change produces a successor plan or is
// rejected.
type Plan struct {
	ID            string      `json:"id"`
	Prompt        Prompt      `json:"prompt"`
	TrackIDs      []string    `json:"trackIds"` // ordered
	Annotations   string      `json:"annotations,omitempty"`
	TotalDuration int         `json:"totalDuration"` // seconds, sum of track durations
	Details       PlanDetails `json:"details"`
	Finalized     bool        `json:"finalized"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
