// Package generate implements the retry-and-score loop that turns a
// generation request into a validated narration artifact. Each request gets
// a bounded number of attempts; rejected attempts feed a repair prompt, and
// when no attempt passes the best-scoring one is kept with a warning.
package generate

import (
	"context"
	"time"

	"github.com/longform-ai/longform/pkg/cache"
	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/health"
	"github.com/longform-ai/longform/pkg/llm"
	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/zlog"
	"go.uber.org/zap"
)

// Generator owns one generation pipeline: cache, health monitor, and the
// upstream client. Safe for concurrent use by worker pools.
type Generator struct {
	cfg    *config.Config
	cache  *cache.Cache
	health *health.Monitor
	client llm.Client
}

// New builds a Generator. cache may be nil to disable caching entirely.
func New(cfg *config.Config, c *cache.Cache, h *health.Monitor, client llm.Client) *Generator {
	return &Generator{cfg: cfg, cache: c, health: h, client: client}
}

// candidate is one attempt's output, retained for best-of-N selection.
type candidate struct {
	text      string
	wordCount int
}

// score is the candidate's distance from the target word count. Lower is
// better; ties keep the earlier attempt.
func score(wordCount, targetWords int) int {
	d := wordCount - targetWords
	if d < 0 {
		return -d
	}
	return d
}

// Segment runs the full retry-and-score loop for one segment request.
// Failures come back as data in the Result, never as a panic or a bare
// error, so batch callers can keep processing siblings.
func (g *Generator) Segment(ctx context.Context, index int, req models.GenerationRequest) models.Result {
	start := time.Now()
	result := models.Result{SegmentIndex: index, Origin: models.OriginFresh}

	if text, ok := g.lookupCache(req); ok {
		result.FinalText = text
		result.FinalWordCount = WordCount(text)
		result.Status = models.StatusCached
		result.Origin = models.OriginCacheHit
		result.Elapsed = time.Since(start)
		g.health.RecordSegment(true)
		return result
	}

	var (
		candidates []candidate
		prevText   string
		prevWords  int
		prevIssues []string
		lastErr    error
	)

	for attempt := 1; attempt <= g.cfg.Generation.MaxAttempts; attempt++ {
		prompt := req.Prompt
		if attempt > 1 && prevText != "" {
			prompt = buildRepairPrompt(req, prevText, prevWords, prevIssues)
		}

		call, err := g.callWithRetry(ctx, prompt, req.Params)
		if err != nil {
			lastErr = err
			result.Attempts = append(result.Attempts, models.Attempt{Number: attempt, Err: err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		narration, validation := ExtractNarration(call.Text)
		wc := WordCount(narration)
		issues := checkRequirements(wc, req.MinWords(), req.MaxWords(), validation, call.Truncated)

		result.Attempts = append(result.Attempts, models.Attempt{
			Number:    attempt,
			WordCount: wc,
			Issues:    issues,
			Accepted:  len(issues) == 0,
			Truncated: call.Truncated,
		})

		if narration == "" {
			prevIssues = issues
			continue
		}
		candidates = append(candidates, candidate{text: narration, wordCount: wc})

		if len(issues) == 0 {
			g.storeCache(prompt, req.Params, narration)
			result.FinalText = narration
			result.FinalWordCount = wc
			result.Status = models.StatusSuccess
			result.Elapsed = time.Since(start)
			g.health.RecordSegment(true)
			return result
		}

		zlog.Debug("attempt rejected",
			zap.Int("segment", index),
			zap.Int("attempt", attempt),
			zap.Int("word_count", wc),
			zap.Strings("issues", issues))
		prevText, prevWords, prevIssues = narration, wc, issues
	}

	result.Elapsed = time.Since(start)

	if len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if score(c.wordCount, req.TargetWords) < score(best.wordCount, req.TargetWords) {
				best = c
			}
		}
		result.FinalText = best.text
		result.FinalWordCount = best.wordCount
		result.Status = models.StatusWarning
		zlog.Warn("no attempt accepted, keeping best candidate",
			zap.Int("segment", index),
			zap.Int("word_count", best.wordCount),
			zap.Int("target", req.TargetWords))
		g.health.RecordSegment(true)
		return result
	}

	if lastErr != nil {
		result.Status = models.StatusError
		result.ErrorMessage = lastErr.Error()
	} else {
		result.Status = models.StatusFailed
		result.ErrorMessage = "no attempt produced usable output"
	}
	g.health.RecordSegment(false)
	return result
}

// lookupCache fetches a cached artifact and validates it against the
// request's acceptance window. An out-of-window artifact is a miss for this
// request but stays cached for requests with other windows.
func (g *Generator) lookupCache(req models.GenerationRequest) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	text, ok := g.cache.Get(req.Prompt, req.Params)
	if !ok {
		g.health.RecordCache(false)
		return "", false
	}
	wc := WordCount(text)
	if wc < req.MinWords() || wc > req.MaxWords() {
		zlog.Debug("cached artifact outside acceptance window",
			zap.Int("word_count", wc),
			zap.Int("min", req.MinWords()),
			zap.Int("max", req.MaxWords()))
		g.health.RecordCache(false)
		return "", false
	}
	g.health.RecordCache(true)
	return text, true
}

func (g *Generator) storeCache(prompt string, params models.GenerationParams, text string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(prompt, params, text); err != nil {
		zlog.Warn("caching artifact failed", zap.Error(err))
	}
}
