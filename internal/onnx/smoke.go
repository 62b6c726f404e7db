package onnx

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// SmokeOptions configures SmokeTest.
type SmokeOptions struct {
	ManifestPath string
	Runner       RunnerConfig
	// Frames sizes the "frames" dimension of mel inputs. Other symbolic
	// dimensions are 1.
	Frames int64
	Stdout io.Writer
	Stderr io.Writer
}

var newGraphRunner = func(g Graph, cfg RunnerConfig) (GraphRunner, error) {
	return NewRunner(g, cfg)
}

// SmokeTest opens every graph in a manifest and runs it once on zero
// inputs, checking that each declared output comes back. One line per graph
// goes to Stdout (PASS) or Stderr (FAIL).
func SmokeTest(ctx context.Context, opts SmokeOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	if opts.Frames < 1 {
		opts.Frames = 8
	}

	m, err := LoadGraphs(opts.ManifestPath)
	if err != nil {
		return err
	}

	var failed []string

	for _, g := range m.Graphs {
		if err := smokeGraph(ctx, g, opts); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", g.Name, err)
			failed = append(failed, g.Name)

			continue
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", g.Name)
	}

	if len(failed) > 0 {
		return fmt.Errorf("onnx smoke test failed for %s", strings.Join(failed, ", "))
	}

	return nil
}

func smokeGraph(ctx context.Context, g Graph, opts SmokeOptions) error {
	bind := map[string]int64{"frames": opts.Frames}
	inputs := make(map[string]*Tensor, len(g.Inputs))

	for _, p := range g.Inputs {
		t, err := ZeroTensor(p, bind)
		if err != nil {
			return err
		}

		inputs[p.Name] = t
	}

	r, err := newGraphRunner(g, opts.Runner)
	if err != nil {
		return err
	}
	defer r.Close()

	outputs, err := r.Run(ctx, inputs)
	if err != nil {
		return err
	}

	for _, p := range g.Outputs {
		if _, ok := outputs[p.Name]; !ok {
			return fmt.Errorf("missing output %q", p.Name)
		}
	}

	return nil
}
