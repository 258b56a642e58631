package generate

import (
	"context"
	"time"

	"github.com/longform-ai/longform/pkg/llm"
	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/zlog"
	"go.uber.org/zap"
)

// backoffSchedule fixes both the per-prompt call budget and the delay
// between calls: one call per schedule slot, sleeping the slot's duration
// after each failure.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// callWithRetry issues one generation call with transport-level retries.
// The health monitor's throttle signal inserts a cooldown before each call
// but never blocks it. Rate-limited calls wait an extra fixed delay so the
// service window can clear.
func (g *Generator) callWithRetry(ctx context.Context, prompt string, params models.GenerationParams) (llm.CallResult, error) {
	// Pace requests so bursts from the pools stay under the service's
	// rate window.
	if err := sleepCtx(ctx, g.cfg.Generation.RateLimitDelay); err != nil {
		return llm.CallResult{}, err
	}

	var lastErr error
	for i := range backoffSchedule {
		if g.health.ShouldThrottle() {
			zlog.Warn("health monitor advises throttling, cooling down",
				zap.Duration("cooldown", g.cfg.Throttle.Cooldown))
			if err := sleepCtx(ctx, g.cfg.Throttle.Cooldown); err != nil {
				return llm.CallResult{}, err
			}
			g.health.ResetErrors()
		}

		start := time.Now()
		res, err := g.client.Complete(ctx, prompt, params)
		g.health.RecordCall(err == nil, time.Since(start))
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return llm.CallResult{}, ctx.Err()
		}
		if i == len(backoffSchedule)-1 {
			break
		}

		delay := backoffSchedule[i]
		if llm.IsRateLimited(err) {
			delay += g.cfg.Generation.RateLimitDelay
		}
		zlog.Warn("generation call failed, backing off",
			zap.Int("call", i+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleepCtx(ctx, delay); err != nil {
			return llm.CallResult{}, err
		}
	}
	return llm.CallResult{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
