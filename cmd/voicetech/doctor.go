package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/config"
	"github.com/example/go-voicetech-tts/internal/doctor"
	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/onnx"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			backend, err := config.NormalizeVocoder(cfg.Vocoder.Backend)
			if err != nil {
				return err
			}

			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, _ = fmt.Fprintf(stdout, "vocoder: %s\n", backend)

			result := doctor.Run(doctorConfig(cmd.Context(), cfg, backend), stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

func doctorConfig(ctx context.Context, cfg config.Config, backend string) doctor.Config {
	dcfg := doctor.Config{
		BundleDir: cfg.Paths.BundleDir,
		VerifyBundle: func() error {
			return model.Verify(model.VerifyOptions{Dir: cfg.Paths.BundleDir})
		},
		RuntimeVersion: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}

			return info.Version, nil
		},
		SkipRuntime: backend != config.VocoderONNX,
		OutputsDir:  cfg.Paths.OutputsDir,
	}

	if backend == config.VocoderONNX {
		dcfg.Files = []string{cfg.Vocoder.ONNXPath}
		dcfg.SmokeTest = func() error {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return err
			}

			return onnx.SmokeTest(ctx, onnx.SmokeOptions{
				ManifestPath: cfg.Vocoder.ONNXPath,
				Runner:       onnx.RunnerConfig{LibraryPath: info.LibraryPath},
			})
		}
	}

	return dcfg
}
