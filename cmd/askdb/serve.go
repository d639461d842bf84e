package main

import (
	"context"
	"time"

	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/metrics"
	"github.com/koustreak/askdb/internal/server"
	"github.com/koustreak/askdb/internal/session"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(true)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			metrics.BuildInfo.WithLabelValues(Version, Commit).Set(1)

			ctx := cmd.Context()
			archive, err := archiver(ctx, cfg)
			if err != nil {
				return err
			}

			sessions := session.NewManager(cfg.Server.SessionTTL, log)
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := sessions.Close(closeCtx); err != nil {
					log.WarnWith("closing sessions", err, nil)
				}
			}()

			srv := server.New(server.Options{
				Config:   cfg,
				Sessions: sessions,
				LLM: func(model string) (llm.Client, error) {
					c := cfg.LLM
					if model != "" {
						c.Model = model
					}
					return llm.New(c)
				},
				Archive: archive,
				Logger:  log,
			})
			return srv.ListenAndServe(ctx, cfg.Server.Listen, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default $ASKDB_LISTEN or :8080)")
	return cmd
}
