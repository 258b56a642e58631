package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/runlog"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		episode    string
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show generation run statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ledger, err := runlog.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()

			if recent > 0 {
				records, err := ledger.Recent(ctx, recent)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No run records found.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tEPISODE\tSEG\tSTATUS\tORIGIN\tATTEMPTS\tWORDS\tTARGET\tLATENCY")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%dms\n",
						r.CreatedAt.Format("2006-01-02T15:04:05"), r.Episode,
						r.SegmentIndex, r.Status, r.Origin, r.AttemptCount,
						r.WordCount, r.TargetWords, r.LatencyMs)
				}
				return w.Flush()
			}

			summaries, err := ledger.Summary(ctx, episode)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No run records found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EPISODE\tSTATUS\tCOUNT\tTOTAL WORDS\tAVG LATENCY")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\n",
					s.Episode, s.Status, s.Count, s.TotalWords, s.AvgLatencyMs)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "longform.yaml", "path to config file")
	cmd.Flags().StringVarP(&episode, "episode", "e", "", "filter by episode name")
	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "show the N most recent records instead of the summary")
	return cmd
}
