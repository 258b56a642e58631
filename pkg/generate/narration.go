package generate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// validationMarker separates narration text from the self-assessment block
// the model is instructed to append.
const validationMarker = "---VALIDATION---"

// Validation is the model's self-assessment of structural requirements.
// Present reports whether a block was found at all; absent blocks skip the
// structural checks rather than failing them.
type Validation struct {
	OpeningHookPresent    bool `yaml:"opening_hook_present"`
	ClosingHandoffPresent bool `yaml:"closing_handoff_present"`
	Present               bool `yaml:"-"`
}

// ExtractNarration splits a raw model response into narration text and the
// parsed validation block. A malformed block is treated as absent.
func ExtractNarration(raw string) (string, Validation) {
	idx := strings.Index(raw, validationMarker)
	if idx < 0 {
		return strings.TrimSpace(raw), Validation{}
	}

	narration := strings.TrimSpace(raw[:idx])
	narration = strings.TrimRight(narration, "-")
	narration = strings.TrimSpace(narration)

	block := stripCodeFences(raw[idx+len(validationMarker):])
	var v Validation
	if err := yaml.Unmarshal([]byte(block), &v); err != nil {
		return narration, Validation{}
	}
	v.Present = true
	return narration, v
}

// stripCodeFences removes a surrounding ``` or ```yaml fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " :") {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// WordCount counts whitespace-separated tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// checkRequirements returns the acceptance issues for one attempt. An empty
// slice means the attempt is accepted.
func checkRequirements(wordCount, minWords, maxWords int, v Validation, truncated bool) []string {
	var issues []string
	if wordCount < minWords || wordCount > maxWords {
		issues = append(issues, fmt.Sprintf("word count %d outside required range %d-%d", wordCount, minWords, maxWords))
	}
	if v.Present {
		if !v.OpeningHookPresent {
			issues = append(issues, "opening hook missing")
		}
		if !v.ClosingHandoffPresent {
			issues = append(issues, "closing handoff missing")
		}
	}
	if truncated {
		issues = append(issues, "output truncated before completion")
	}
	return issues
}
