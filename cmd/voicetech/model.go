package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-voicetech-tts/internal/model"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model bundle creation, inspection and verification commands",
	}

	cmd.AddCommand(newModelInitCmd())
	cmd.AddCommand(newModelInfoCmd())
	cmd.AddCommand(newModelVerifyCmd())
	cmd.AddCommand(newModelPullCmd())

	return cmd
}

// bundleDir returns dir, or the configured bundle directory when dir is empty.
func bundleDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}

	cfg, err := requireConfig()
	if err != nil {
		return "", err
	}

	return cfg.Paths.BundleDir, nil
}

func newModelInitCmd() *cobra.Command {
	var (
		dir      string
		name     string
		version  string
		seed     uint64
		speakers int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a bundle with seeded random weights",
		Long: "Write a bundle with seeded random weights and the default vocabulary.\n" +
			"The result is untrained: it exercises the full pipeline but does not produce speech.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := bundleDir(dir)
			if err != nil {
				return err
			}

			m, err := model.Init(model.InitOptions{
				Dir:      dir,
				Name:     name,
				Version:  version,
				Seed:     seed,
				Speakers: speakers,
				Force:    force,
				Stdout:   cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote bundle %s %s to %s\n", m.Name, m.Version, dir)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Bundle directory (default: paths.bundle_dir)")
	cmd.Flags().StringVar(&name, "name", "voicetech-random", "Model name written to the manifest")
	cmd.Flags().StringVar(&version, "version", "0.0.0", "Model version written to the manifest")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for the random weights")
	cmd.Flags().IntVar(&speakers, "speakers", 1, "Number of speakers recorded in the manifest")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing bundle")

	return cmd
}

func newModelInfoCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Load a bundle and print its metadata as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := bundleDir(dir)
			if err != nil {
				return err
			}

			b, err := model.Load(dir)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(b.Info())
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Bundle directory (default: paths.bundle_dir)")

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check bundle checksums, vocabulary size and weight shapes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := bundleDir(dir)
			if err != nil {
				return err
			}

			return model.Verify(model.VerifyOptions{
				Dir:    dir,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Bundle directory (default: paths.bundle_dir)")

	return cmd
}

func newModelPullCmd() *cobra.Command {
	var (
		baseURL string
		outDir  string
		token   string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a bundle from an HTTP host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseURL == "" {
				return errors.New("--base-url is required")
			}

			dir, err := bundleDir(outDir)
			if err != nil {
				return err
			}

			if token == "" {
				token = os.Getenv("VOICETECH_MODEL_TOKEN")
			}

			m, err := model.Pull(cmd.Context(), model.PullOptions{
				BaseURL: baseURL,
				OutDir:  dir,
				Token:   token,
				Stdout:  cmd.OutOrStdout(),
			})
			if err != nil {
				var denied *model.ErrAccessDenied
				if errors.As(err, &denied) && token == "" {
					return fmt.Errorf("%w (set --token or VOICETECH_MODEL_TOKEN)", err)
				}

				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pulled bundle %s %s to %s\n", m.Name, m.Version, dir)
			return err
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL of the directory serving manifest.yaml")
	cmd.Flags().StringVar(&outDir, "out", "", "Destination directory (default: paths.bundle_dir)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (default: $VOICETECH_MODEL_TOKEN)")

	return cmd
}
