package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/bench"
	"github.com/example/go-voicetech-tts/internal/bench/stageprof"
	"github.com/example/go-voicetech-tts/internal/tts"
)

const defaultBenchText = "नमस्ते, आज मौसम बहुत अच्छा है। हम बाज़ार चलेंगे।"

func newBenchCmd() *cobra.Command {
	var (
		text         string
		language     string
		runs         int
		format       string
		rtfThreshold float64
		chunk        bool
		stages       bool
		warmup       int
		cpuProfile   string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and real-time factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be >= 1, got %d", runs)
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported --format %q (use table or json)", format)
			}

			if language == "" {
				language = cfg.TTS.Language
			}

			if !cmd.Flags().Changed("chunk") {
				chunk = cfg.TTS.Chunk
			}

			req := tts.Request{Text: text, Language: language}

			svc, err := tts.NewService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()

			if stages {
				opts := stageprof.Options{
					Request: req,
					Runs:    runs,
					Warmup:  warmup,
					Workers: cfg.TTS.Workers,
				}

				if cpuProfile != "" {
					f, err := os.Create(cpuProfile)
					if err != nil {
						return fmt.Errorf("create cpu profile: %w", err)
					}
					defer f.Close()

					opts.CPUProfile = f
				}

				report, err := stageprof.Profile(cmd.Context(), svc, opts)
				if err != nil {
					return err
				}

				report.Write(out)

				return bench.CheckRTFThreshold(report.RTF(), rtfThreshold)
			}

			results, err := bench.Run(cmd.Context(), svc, bench.Options{
				Runs:    runs,
				Request: req,
				Chunk:   chunk,
			})
			if err != nil {
				return err
			}

			stats := bench.Summarize(results)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, out)
			default:
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckRTFThreshold(stats.MeanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&text, "text", defaultBenchText, "Text to synthesize in each run")
	cmd.Flags().StringVar(&language, "language", "", "Language code (overrides config)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Fail when mean RTF exceeds this value (0 disables)")
	cmd.Flags().BoolVar(&chunk, "chunk", false, "Benchmark chunked synthesis")
	cmd.Flags().BoolVar(&stages, "stages", false, "Report per-stage timings instead of end-to-end runs")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "Untimed warmup runs before --stages measurements")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile of the --stages runs to this file")

	return cmd
}
