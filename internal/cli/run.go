package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/infblueocean/sitrep/internal/pipeline"
)

var runInterval time.Duration

// runCmd executes the full ordered pipeline once, or repeatedly when an
// interval is given.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline (ingest, normalize, cluster, score, summarize, publish)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		p := pipeline.New(st, cfg)

		if runInterval > 0 {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			p.RunLoop(ctx, runInterval)
			return nil
		}

		report, err := p.Run(cmd.Context())
		printReport(report)
		return err
	},
}

func init() {
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "rerun the pipeline on this interval (0 = run once)")
	rootCmd.AddCommand(runCmd)
}

func printReport(r pipeline.RunReport) {
	fmt.Printf("ingest:    fetched=%d new=%d errors=%d\n", r.Ingest.Fetched, r.Ingest.New, r.Ingest.Errors)
	fmt.Printf("normalize: inserted=%d skipped=%d\n", r.Normalize.Inserted, r.Normalize.Skipped)
	fmt.Printf("cluster:   created=%d attached=%d failed=%d recomputed=%d\n",
		r.Cluster.Created, r.Cluster.Attached, r.Cluster.Failed, r.Cluster.Recomputed)
	fmt.Printf("score:     scored=%d failed=%d\n", r.Score.Scored, r.Score.Failed)
	fmt.Printf("summarize: summarized=%d failed=%d\n", r.Summarize.Summarized, r.Summarize.Failed)
	fmt.Printf("publish:   clusters=%d feeds=%d\n", r.Publish.Clusters, r.Publish.Feeds)
}
