package models

// GenerationParams are the generation-service parameters that partition the
// cache: identical prompt + params always resolve to the same fingerprint.
type GenerationParams struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// GenerationRequest describes one artifact to generate. Immutable once
// constructed. TargetWords and TolerancePct validate cached values but do
// not participate in the fingerprint.
type GenerationRequest struct {
	Prompt         string           `json:"prompt"`
	RepairTemplate string           `json:"repair_template,omitempty"`
	Topic          string           `json:"topic,omitempty"`
	TargetWords    int              `json:"target_words"`
	TolerancePct   int              `json:"tolerance_pct"`
	Params         GenerationParams `json:"params"`
}

// MinWords returns the lower bound of the acceptance window.
func (r GenerationRequest) MinWords() int {
	return r.TargetWords * (100 - r.TolerancePct) / 100
}

// MaxWords returns the upper bound of the acceptance window.
func (r GenerationRequest) MaxWords() int {
	return r.TargetWords * (100 + r.TolerancePct) / 100
}
