package generate

import (
	"context"
	"strings"
	"time"

	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/zlog"
	"go.uber.org/zap"
)

// segmentSeparator delimits segment texts inside the fusion prompt.
const segmentSeparator = "\n\n---SEGMENT---\n\n"

const fusionInstruction = `Merge the narration segments below into one continuous narration.
Smooth the transitions between segments without changing facts, order, or overall length.
Return only the merged narration.`

// FuseEpisode merges the usable segment texts of one episode into a single
// narration with one generation call. When no segment produced text, or the
// fusion call itself fails, the plain concatenation is returned with a
// warning status so the episode still yields output.
func (g *Generator) FuseEpisode(ctx context.Context, episode string, segments []models.Result) models.EpisodeResult {
	start := time.Now()
	er := models.EpisodeResult{Episode: episode, Segments: segments}

	var texts []string
	for _, s := range segments {
		if s.FinalText != "" {
			texts = append(texts, s.FinalText)
		}
	}
	if len(texts) == 0 {
		er.FuseStatus = models.StatusFailed
		er.Elapsed = time.Since(start)
		return er
	}
	if len(texts) == 1 {
		er.FusedText = texts[0]
		er.FuseStatus = models.StatusSuccess
		er.Elapsed = time.Since(start)
		return er
	}

	prompt := fusionInstruction + "\n\n" + strings.Join(texts, segmentSeparator)
	call, err := g.callWithRetry(ctx, prompt, g.cfg.Generation.Params())
	if err != nil {
		zlog.Warn("fusion call failed, falling back to concatenation",
			zap.String("episode", episode),
			zap.Error(err))
		er.FusedText = strings.Join(texts, "\n\n")
		er.FuseStatus = models.StatusWarning
		er.Elapsed = time.Since(start)
		return er
	}

	fused, _ := ExtractNarration(call.Text)
	if fused == "" {
		er.FusedText = strings.Join(texts, "\n\n")
		er.FuseStatus = models.StatusWarning
	} else {
		er.FusedText = fused
		er.FuseStatus = models.StatusSuccess
	}
	er.Elapsed = time.Since(start)
	return er
}
