package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"cratefm/logger"
)

// Models wrap JSON in prose or markdown fences more often than not, so
// extraction runs before unmarshalling.
var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the first JSON object or array out of a model
// response: a fenced code block if present, otherwise the first
// balanced {...} or [...] span. Returns "" when nothing JSON-shaped is
// found.
func ExtractJSON(text string) string {
	if m := fencedJSONPattern.FindStringSubmatch(text); len(m) == 2 {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" {
			return candidate
		}
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		if start < 0 {
			continue
		}
		depth := 0
		inString := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if inString {
				if ch == '\\' {
					i++
				} else if ch == '"' {
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case pair[0]:
				depth++
			case pair[1]:
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return ""
}

// ParseOrFallback extracts JSON from a model response, unmarshals it
// into T and checks it with validate. When any step fails the stage's
// fallback producer supplies the value instead; the second return
// reports whether the model output was used.
func ParseOrFallback[T any](text string, validate func(*T) bool, fallback func() T) (T, bool) {
	raw := ExtractJSON(text)
	if raw == "" {
		logger.Debug("No JSON found in model response, using fallback",
			logger.Int("responseLength", len(text)))
		return fallback(), false
	}

	var parsed T
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Debug("Failed to unmarshal model response, using fallback",
			logger.ErrorField(err))
		return fallback(), false
	}

	if validate != nil && !validate(&parsed) {
		logger.Debug("Model response failed shape validation, using fallback")
		return fallback(), false
	}

	return parsed, true
}
