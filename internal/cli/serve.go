package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/infblueocean/sitrep/internal/api"
	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/pipeline"
	"github.com/infblueocean/sitrep/internal/publish"
)

var serveInterval time.Duration

// serveCmd runs the read API and, when an interval is set, the pipeline
// loop alongside it.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API, optionally running the pipeline on an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := setup()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reader := publish.NewReader(st, time.Duration(cfg.Feed.CacheTTLSeconds)*time.Second)
		server := api.NewServer(st, reader)

		if serveInterval > 0 {
			p := pipeline.New(st, cfg)
			p.SetReader(reader)
			go p.RunLoop(ctx, serveInterval)
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(); err != nil {
				logging.Error("api: shutdown", "error", err)
			}
		}()

		return server.Start(cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "also run the pipeline on this interval")
	rootCmd.AddCommand(serveCmd)
}
