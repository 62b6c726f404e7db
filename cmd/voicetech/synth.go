package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/config"
	"github.com/example/go-voicetech-tts/internal/store"
	"github.com/example/go-voicetech-tts/internal/text"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
	"github.com/example/go-voicetech-tts/internal/tts"
)

func newSynthCmd() *cobra.Command {
	var (
		textFlag string
		out      string
		language string
		accent   int
		style    int
		speaker  int
		chunk    bool
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(textFlag, cmd.InOrStdin())
			if err != nil {
				return err
			}

			req := tts.Request{
				Text:     inputText,
				Language: language,
				Accent:   accent,
				Style:    style,
			}
			if req.Language == "" {
				req.Language = cfg.TTS.Language
			}
			if !cmd.Flags().Changed("accent") {
				req.Accent = cfg.TTS.Accent
			}
			if !cmd.Flags().Changed("style") {
				req.Style = cfg.TTS.Style
			}
			if cmd.Flags().Changed("speaker") {
				req.Speaker = &speaker
			}
			if !cmd.Flags().Changed("chunk") {
				chunk = cfg.TTS.Chunk
			}

			svc, err := tts.NewService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			a, wav, err := synthesize(cmd.Context(), svc, req, chunk)
			if err != nil {
				return mapSynthError(err)
			}

			slog.Info("synthesized",
				"language", a.Selection.Language.Code,
				"accent", a.Selection.Accent.Name,
				"style", a.Selection.Style.Name,
				"frames", a.Frames,
				"chunks", a.Chunks,
				"stop_cause", a.StopCause.String(),
				"duration_s", a.Duration().Seconds(),
			)

			if save {
				name, err := saveArtifact(cmd.Context(), cfg, req, a, wav)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "saved", name)
			}

			return writeSynthOutput(out, wav, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&textFlag, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&language, "language", "", "Language code (overrides config; see 'voicetech languages')")
	cmd.Flags().IntVar(&accent, "accent", 0, "Accent ID (default: tts.accent)")
	cmd.Flags().IntVar(&style, "style", 0, "Style ID (default: tts.style)")
	cmd.Flags().IntVar(&speaker, "speaker", 0, "Speaker ID (validated against the bundle)")
	cmd.Flags().BoolVar(&chunk, "chunk", false, "Split text into sentence chunks and decode them in parallel")
	cmd.Flags().BoolVar(&save, "save", false, "Also store the result in the outputs directory")

	return cmd
}

func synthesize(ctx context.Context, svc *tts.Service, req tts.Request, chunk bool) (*tts.Audio, []byte, error) {
	var (
		a   *tts.Audio
		err error
	)

	if chunk {
		a, err = svc.SynthesizeChunked(ctx, req)
	} else {
		a, err = svc.Synthesize(ctx, req)
	}

	if err != nil {
		return nil, nil, err
	}

	wav, err := a.WAV()
	if err != nil {
		return nil, nil, fmt.Errorf("encode wav: %w", err)
	}

	return a, wav, nil
}

func saveArtifact(ctx context.Context, cfg config.Config, req tts.Request, a *tts.Audio, wav []byte) (string, error) {
	st, err := store.Open(cfg.Paths.DBPath, cfg.Paths.OutputsDir)
	if err != nil {
		return "", err
	}
	defer st.Close()

	art, err := st.Save(ctx, store.Artifact{
		Kind:       "cli",
		Text:       req.Text,
		Language:   a.Selection.Language.Code,
		AccentID:   a.Selection.Accent.ID,
		StyleID:    a.Selection.Style.ID,
		Frames:     a.Frames,
		StopCause:  a.StopCause.String(),
		SampleRate: a.SampleRate,
		Duration:   a.Duration().Seconds(),
	}, wav)
	if err != nil {
		return "", err
	}

	return art.Name, nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return errors.New("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

func readSynthText(flagText string, stdin io.Reader) (string, error) {
	if input := text.NormalizeLines(flagText); input != "" {
		return input, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := text.NormalizeLines(string(b))
	if input == "" {
		return "", errors.New("either provide --text or pipe text on stdin")
	}
	return input, nil
}

// mapSynthError adds a hint to errors a user can fix from the command line.
func mapSynthError(err error) error {
	var ve *conditioning.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("synth failed: %w (run 'voicetech languages' for valid values)", err)
	}

	var tooLong *tokenizer.InputTooLongError
	if errors.As(err, &tooLong) {
		return fmt.Errorf("synth failed: %w; retry with --chunk", err)
	}

	if errors.Is(err, tokenizer.ErrEmptyInput) {
		return fmt.Errorf("synth failed: text has nothing speakable after normalization: %w", err)
	}

	return err
}
