package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/longform-ai/longform/pkg/cache"
	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/health"
	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/runlog"
)

// reportPayload is the machine-readable counterpart of the stats command.
// Health carries the host-probe side of the snapshot; call counters are only
// meaningful inside a run and stay zero here.
type reportPayload struct {
	Health    models.HealthReport `json:"health"`
	Cache     models.CacheStats   `json:"cache"`
	Summaries []models.RunSummary `json:"summaries"`
}

func newReportCmd() *cobra.Command {
	var (
		configPath string
		episode    string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Emit cache and run statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			c, err := cache.New(cfg.CacheDir, cfg.Cache.TTL, cfg.Cache.LockTimeout, cache.NewFileLocker())
			if err != nil {
				return err
			}

			ledger, err := runlog.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			summaries, err := ledger.Summary(cmd.Context(), episode)
			if err != nil {
				return err
			}

			monitor := health.NewMonitor(health.Thresholds{
				ErrorThreshold:  cfg.Throttle.ErrorThreshold,
				CPUHighWater:    cfg.Throttle.CPUHighWater,
				MemoryHighWater: cfg.Throttle.MemoryHighWater,
			}, health.NewSystemProbe())

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reportPayload{
				Health:    monitor.Snapshot(),
				Cache:     c.Stats(),
				Summaries: summaries,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "longform.yaml", "path to config file")
	cmd.Flags().StringVarP(&episode, "episode", "e", "", "filter by episode name")
	return cmd
}
