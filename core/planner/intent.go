package planner

import (
	"context"
	"fmt"
	"strings"

	"cratefm/core/camelot"
	"cratefm/core/llm"
	"cratefm/core/validate"
	"cratefm/logger"
	"cratefm/model"
)

// defaultTargetDuration fills in when neither prompt nor model supplied
// one: a one-hour crate.
const defaultTargetDuration = 3600

const intentPromptTemplate = `You are a DJ assistant. Derive structured crate constraints from this request.

Request:
%s

%sRespond with only a JSON object in this exact shape:
{
  "bpmMin": 0, "bpmMax": 0,
  "keys": [], "genres": [],
  "targetDuration": 0,
  "mixStyle": "smooth|energetic|eclectic",
  "includeArtists": [], "avoidArtists": [],
  "includeTracks": [], "avoidTracks": [],
  "energyCurve": "", "targetEnergy": 0, "minPopularity": 0
}
Keys use Camelot notation (1A-12B). targetDuration is in seconds.`

// deriveIntent runs the intent-derivation stage. The model path parses
// a structured intent out of the response; anything unusable falls back
// to a deterministic intent built from the prompt's own fields. Either
// way the result is fully populated.
func (p *Planner) deriveIntent(ctx context.Context, prompt *model.Prompt, seeds []*model.Track) (*model.DerivedIntent, bool) {
	if p.llm == nil || !p.cfg.UseLLM {
		return fallbackIntent(prompt), false
	}

	response, err := p.llm.Execute(ctx, intentPrompt(prompt, seeds))
	if err != nil {
		logger.Warn("Intent derivation call failed, falling back", logger.ErrorField(err))
		return fallbackIntent(prompt), false
	}

	intent, fromModel := llm.ParseOrFallback(response,
		func(i *model.DerivedIntent) bool {
			i.Normalize()
			if i.TargetDuration <= 0 {
				i.TargetDuration = promptTarget(prompt)
			}
			if !model.ValidMixStyle(i.MixStyle) {
				return false
			}
			return validate.ValidateIntent(i).IsValid
		},
		func() model.DerivedIntent { return *fallbackIntent(prompt) })

	intent.Normalize()
	return &intent, fromModel
}

// fallbackIntent builds the deterministic intent straight from the
// prompt: its own tempo, genre and duration, a smooth mix style, and
// the compatible-key set when the prompt names a key.
func fallbackIntent(prompt *model.Prompt) *model.DerivedIntent {
	intent := &model.DerivedIntent{
		BPMMin:         prompt.BPMMin,
		BPMMax:         prompt.BPMMax,
		TargetDuration: promptTarget(prompt),
		MixStyle:       model.MixStyleSmooth,
	}

	if prompt.Genre != "" {
		intent.Genres = []string{prompt.Genre}
	}
	if prompt.Key != "" {
		if keys, err := camelot.CompatibleKeys(prompt.Key); err == nil {
			intent.Keys = keys
		}
	}

	intent.Normalize()
	return intent
}

func promptTarget(prompt *model.Prompt) int {
	if prompt.TargetDuration > 0 {
		return prompt.TargetDuration
	}
	return defaultTargetDuration
}

func intentPrompt(prompt *model.Prompt, seeds []*model.Track) string {
	var request strings.Builder
	if prompt.BPMMin > 0 || prompt.BPMMax > 0 {
		fmt.Fprintf(&request, "- tempo: %g-%g bpm\n", prompt.BPMMin, prompt.BPMMax)
	}
	if prompt.Key != "" {
		fmt.Fprintf(&request, "- key: %s\n", prompt.Key)
	}
	if prompt.Genre != "" {
		fmt.Fprintf(&request, "- genre: %s\n", prompt.Genre)
	}
	if prompt.TargetDuration > 0 {
		fmt.Fprintf(&request, "- target duration: %d seconds\n", prompt.TargetDuration)
	}
	if prompt.Notes != "" {
		fmt.Fprintf(&request, "- notes: %s\n", prompt.Notes)
	}
	if request.Len() == 0 {
		request.WriteString("- no explicit constraints\n")
	}

	seedBlock := ""
	if len(seeds) > 0 {
		var b strings.Builder
		b.WriteString("Anchor tracks already chosen:\n")
		for _, tr := range seeds {
			fmt.Fprintf(&b, "- %s - %s (%g bpm, %s)\n", tr.Artist, tr.Title, tr.BPM, tr.Key)
		}
		b.WriteString("\n")
		seedBlock = b.String()
	}

	return fmt.Sprintf(intentPromptTemplate, request.String(), seedBlock)
}
