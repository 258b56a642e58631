package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/longform-ai/longform/pkg/cache"
	"github.com/longform-ai/longform/pkg/config"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact cache",
	}

	openCache := func() (*cache.Cache, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return cache.New(cfg.CacheDir, cfg.Cache.TTL, cfg.Cache.LockTimeout, cache.NewFileLocker())
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			stats := c.Stats()
			fmt.Printf("Entries: %d\nHits:    %d\nMisses:  %d\n", stats.Entries, stats.Hits, stats.Misses)
			return nil
		},
	}

	var olderThan time.Duration
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			if olderThan > 0 {
				n, err := c.EvictOlderThan(olderThan)
				if err != nil {
					return err
				}
				fmt.Printf("Evicted %d entries older than %s.\n", n, olderThan)
				return nil
			}
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}
	clearCmd.Flags().DurationVar(&olderThan, "older-than", 0, "only evict entries older than this duration")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "longform.yaml", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
