package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/longform-ai/longform/pkg/models"
)

// Fingerprint computes the cache key for a prompt and its generation
// parameters: a SHA-256 digest over the prompt text plus a canonical
// sorted-key JSON serialization of the parameters. Target length and
// tolerance are deliberately excluded; they validate a cached value, they
// do not partition the cache.
func Fingerprint(prompt string, params models.GenerationParams) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	// encoding/json sorts map keys, which makes the serialization canonical
	// regardless of how the params struct evolves.
	data, _ := json.Marshal(map[string]any{
		"model":       params.Model,
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
	})
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// contentDigest is the short integrity digest stored alongside a payload.
func contentDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:8])
}
