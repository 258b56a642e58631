package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/longform-ai/longform/pkg/cache"
	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/generate"
	"github.com/longform-ai/longform/pkg/health"
	"github.com/longform-ai/longform/pkg/llm"
	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/pool"
	"github.com/longform-ai/longform/pkg/prompts"
	"github.com/longform-ai/longform/pkg/runlog"
	"github.com/longform-ai/longform/pkg/zlog"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		promptsDir  string
		outDir      string
		targetWords int
		tolerance   int
		noFuse      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate narration for every episode under the prompts directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if tolerance > 0 {
				cfg.Generation.TolerancePct = tolerance
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := zlog.Init(cfg.LogDir, cfg.Debug); err != nil {
				return err
			}
			defer zlog.Sync()

			episodes, err := prompts.Discover(promptsDir)
			if err != nil {
				return err
			}

			var store *cache.Cache
			if cfg.Cache.Enabled {
				store, err = cache.New(cfg.CacheDir, cfg.Cache.TTL, cfg.Cache.LockTimeout, cache.NewFileLocker())
				if err != nil {
					return fmt.Errorf("opening artifact cache: %w", err)
				}
			}

			ledger, err := runlog.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			monitor := health.NewMonitor(health.Thresholds{
				ErrorThreshold:  cfg.Throttle.ErrorThreshold,
				CPUHighWater:    cfg.Throttle.CPUHighWater,
				MemoryHighWater: cfg.Throttle.MemoryHighWater,
			}, health.NewSystemProbe())

			gen := generate.New(cfg, store, monitor, llm.NewHTTPClient(cfg))

			r := &runner{
				cfg:         cfg,
				gen:         gen,
				ledger:      ledger,
				outDir:      outDir,
				targetWords: targetWords,
				fuse:        !noFuse,
			}
			results := r.runAll(cmd.Context(), episodes)

			printRunSummary(results)
			printHealthReport(monitor.Snapshot())
			return exitStatus(results)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "longform.yaml", "path to config file")
	cmd.Flags().StringVarP(&promptsDir, "prompts", "p", "prompts", "directory of episode prompt files")
	cmd.Flags().StringVarP(&outDir, "out", "o", "output", "directory for generated narration")
	cmd.Flags().IntVar(&targetWords, "target-words", 500, "target word count per segment")
	cmd.Flags().IntVar(&tolerance, "tolerance", 0, "acceptance window as percent of target (overrides config)")
	cmd.Flags().BoolVar(&noFuse, "no-fuse", false, "skip the episode fusion call")
	return cmd
}

// runner holds the wiring for one invocation of the run command.
type runner struct {
	cfg         *config.Config
	gen         *generate.Generator
	ledger      *runlog.SQLiteLedger
	outDir      string
	targetWords int
	fuse        bool
}

// runAll generates every episode under the episode pool, each episode
// fanning its segments out under the segment pool.
func (r *runner) runAll(ctx context.Context, episodes []prompts.Episode) []models.EpisodeResult {
	episodePool := pool.New(r.cfg.Pools.Episodes, r.cfg.Pools.EpisodeTimeout)
	return pool.Map(ctx, episodePool, len(episodes), func(ctx context.Context, i int) models.EpisodeResult {
		return r.runEpisode(ctx, episodes[i])
	})
}

func (r *runner) runEpisode(ctx context.Context, ep prompts.Episode) models.EpisodeResult {
	start := time.Now()
	zlog.Info("episode started",
		zap.String("episode", ep.Name),
		zap.Int("segments", len(ep.Segments)))

	segmentPool := pool.New(r.cfg.Pools.Segments, r.cfg.Pools.SegmentTimeout)
	segments := pool.Map(ctx, segmentPool, len(ep.Segments), func(ctx context.Context, i int) models.Result {
		return r.runSegment(ctx, ep, ep.Segments[i])
	})

	var er models.EpisodeResult
	if r.fuse {
		er = r.gen.FuseEpisode(ctx, ep.Name, segments)
	} else {
		er = models.EpisodeResult{Episode: ep.Name, Segments: segments, FuseStatus: models.StatusSuccess}
	}
	er.Elapsed = time.Since(start)

	if err := r.writeOutputs(ep, er); err != nil {
		zlog.Error("writing episode output failed",
			zap.String("episode", ep.Name),
			zap.Error(err))
	}
	zlog.Info("episode finished",
		zap.String("episode", ep.Name),
		zap.String("fuse_status", string(er.FuseStatus)),
		zap.Duration("elapsed", er.Elapsed))
	return er
}

func (r *runner) runSegment(ctx context.Context, ep prompts.Episode, seg prompts.SegmentPrompt) models.Result {
	target := r.targetWords
	if ep.TargetWords > 0 {
		target = ep.TargetWords
	}
	tolerance := r.cfg.Generation.TolerancePct
	if ep.TolerancePct > 0 {
		tolerance = ep.TolerancePct
	}
	req := models.GenerationRequest{
		Prompt:         seg.Prompt,
		RepairTemplate: seg.FixTemplate,
		Topic:          ep.Topic,
		TargetWords:    target,
		TolerancePct:   tolerance,
		Params:         r.cfg.Generation.Params(),
	}
	res := r.gen.Segment(ctx, seg.Index, req)

	rec := models.RunRecord{
		Fingerprint:  cache.Fingerprint(req.Prompt, req.Params),
		Episode:      ep.Name,
		SegmentIndex: seg.Index,
		Status:       res.Status,
		Origin:       res.Origin,
		AttemptCount: len(res.Attempts),
		WordCount:    res.FinalWordCount,
		TargetWords:  req.TargetWords,
		LatencyMs:    res.Elapsed.Milliseconds(),
		ErrorMessage: res.ErrorMessage,
	}
	if err := r.ledger.Record(ctx, rec); err != nil {
		zlog.Warn("recording run ledger entry failed", zap.Error(err))
	}
	return res
}

// writeOutputs persists per-segment texts and the fused narration under
// outDir/<episode>/.
func (r *runner) writeOutputs(ep prompts.Episode, er models.EpisodeResult) error {
	dir := filepath.Join(r.outDir, ep.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, res := range er.Segments {
		if res.FinalText == "" {
			continue
		}
		name := fmt.Sprintf("segment_%02d.txt", res.SegmentIndex)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(res.FinalText+"\n"), 0o644); err != nil {
			return err
		}
	}
	if er.FusedText != "" {
		if err := os.WriteFile(filepath.Join(dir, "narration.txt"), []byte(er.FusedText+"\n"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printRunSummary(results []models.EpisodeResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EPISODE\tSEGMENTS\tOK\tWARN\tFAILED\tCACHED\tFUSE\tELAPSED")
	for _, er := range results {
		var ok, warn, failed, cached int
		for _, s := range er.Segments {
			switch s.Status {
			case models.StatusSuccess:
				ok++
			case models.StatusWarning:
				warn++
			case models.StatusCached:
				cached++
			default:
				failed++
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			er.Episode, len(er.Segments), ok, warn, failed, cached,
			er.FuseStatus, er.Elapsed.Round(time.Second))
	}
	w.Flush()
}

func printHealthReport(report models.HealthReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nHEALTH\t")
	fmt.Fprintf(w, "Status\t%s\n", report.Status)
	fmt.Fprintf(w, "Uptime\t%s\n", report.Uptime)
	fmt.Fprintf(w, "Calls\t%d (%d errors)\n", report.Counters.Calls, report.Counters.Errors)
	fmt.Fprintf(w, "Cache\t%d hits / %d misses\n", report.Counters.CacheHits, report.Counters.CacheMisses)
	fmt.Fprintf(w, "Avg latency\t%dms\n", report.AvgLatencyMs)
	fmt.Fprintf(w, "Success rate\t%.1f%%\n", report.SuccessRate)
	if report.CPUPercent != nil {
		fmt.Fprintf(w, "CPU\t%.1f%%\n", *report.CPUPercent)
	}
	if report.MemoryPercent != nil {
		fmt.Fprintf(w, "Memory\t%.1f%%\n", *report.MemoryPercent)
	}
	w.Flush()
}

// exitStatus reports failure only when no episode produced any narration.
func exitStatus(results []models.EpisodeResult) error {
	for _, er := range results {
		for _, s := range er.Segments {
			if s.FinalText != "" {
				return nil
			}
		}
	}
	return fmt.Errorf("no narration generated")
}
