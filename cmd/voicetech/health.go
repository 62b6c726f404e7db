package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/server"
)

func newHealthCmd() *cobra.Command {
	var (
		addr         string
		grpcAddr     string
		requireModel bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running server's HTTP and gRPC health endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.ListenAddr
			}

			if !cmd.Flags().Changed("grpc-addr") {
				grpcAddr = cfg.Server.GRPCAddr
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := server.ProbeHTTP(ctx, addr, requireModel); err != nil {
				return fmt.Errorf("http %s: %w", addr, err)
			}

			if grpcAddr != "" {
				service := ""
				if requireModel {
					service = server.HealthService
				}

				if err := server.ProbeGRPC(ctx, grpcAddr, service); err != nil {
					return fmt.Errorf("grpc %s: %w", grpcAddr, err)
				}
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")

			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP address to probe (default: server.listen_addr)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC health address to probe (default: server.grpc_addr; empty skips)")
	cmd.Flags().BoolVar(&requireModel, "require-model", false, "Fail unless a model bundle is loaded")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Probe timeout")

	return cmd
}
