package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/server"
	"github.com/example/go-voicetech-tts/internal/tts"
)

func newServeCmd() *cobra.Command {
	var requireModel bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP synthesis API (and gRPC health when configured)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			// Without --require-model the server loads the bundle itself and
			// answers 503 on synthesis routes if that fails.
			var svc *tts.Service
			if requireModel {
				svc, err = tts.NewService(cfg)
				if err != nil {
					return err
				}
				defer svc.Close()
			}

			srv := server.New(cfg, svc)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&requireModel, "require-model", false, "Fail at startup when the model bundle cannot be loaded")

	return cmd
}
