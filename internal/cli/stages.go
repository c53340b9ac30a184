package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infblueocean/sitrep/internal/pipeline"
)

// Per-stage subcommands. Each stage reads the prior stage's committed
// output from the store, so they can be invoked independently, e.g.
// to retry one failed stage without repeating the rest.

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Classify pending raw items into event candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Normalize(cmd.Context())
		fmt.Printf("inserted=%d skipped=%d\n", res.Inserted, res.Skipped)
		return err
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Attach candidates to incident clusters and recompute aggregates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Cluster(cmd.Context())
		fmt.Printf("created=%d attached=%d failed=%d recomputed=%d\n",
			res.Created, res.Attached, res.Failed, res.Recomputed)
		return err
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute severity, credibility, recency and composite scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Score(cmd.Context())
		fmt.Printf("scored=%d failed=%d\n", res.Scored, res.Failed)
		return err
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Rebuild extractive headlines and bullet summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Summarize(cmd.Context())
		fmt.Printf("summarized=%d failed=%d\n", res.Summarized, res.Failed)
		return err
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Replace the materialized feed views",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Publish(cmd.Context())
		fmt.Printf("clusters=%d feeds=%d\n", res.Clusters, res.Feeds)
		return err
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch configured sources into the raw item table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(st, cfg).Ingest(cmd.Context())
		fmt.Printf("fetched=%d new=%d errors=%d\n", res.Fetched, res.New, res.Errors)
		return err
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd, normalizeCmd, clusterCmd, scoreCmd, summarizeCmd, publishCmd)
}
