//go:build !(js && wasm) && !windows

package onnx

import (
	"context"
	"fmt"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// RunnerConfig selects the ONNX Runtime shared library.
type RunnerConfig struct {
	LibraryPath string
	// APIVersion defaults to DefaultAPIVersion.
	APIVersion uint32
}

// Runner owns an ORT runtime, environment and session for one graph.
type Runner struct {
	graph   Graph
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

func NewRunner(g Graph, cfg RunnerConfig) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	rt, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("onnx: load runtime for %q: %w", g.Name, err)
	}

	r := &Runner{graph: g, runtime: rt}

	r.env, err = rt.NewEnv("voicetech-"+g.Name, ort.LoggingLevelWarning)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("onnx: create env for %q: %w", g.Name, err)
	}

	r.session, err = rt.NewSession(r.env, g.Path, nil)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("onnx: open %q (%s): %w", g.Name, g.Path, err)
	}

	return r, nil
}

// Run feeds inputs by port name and returns every graph output.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	in := make(map[string]*ort.Value, len(inputs))
	defer closeValues(in)

	for name, t := range inputs {
		v, err := toValue(r.runtime, t)
		if err != nil {
			return nil, fmt.Errorf("onnx: input %q: %w", name, err)
		}

		in[name] = v
	}

	out, err := r.session.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("onnx: run %q: %w", r.graph.Name, err)
	}
	defer closeValues(out)

	results := make(map[string]*Tensor, len(out))

	for name, v := range out {
		t, err := fromValue(v)
		if err != nil {
			return nil, fmt.Errorf("onnx: output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases the session, env and runtime. It may be called more than
// once.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

func (r *Runner) Name() string { return r.graph.Name }

func toValue(rt *ort.Runtime, t *Tensor) (*ort.Value, error) {
	switch t.dtype {
	case Float32:
		return ort.NewTensorValue(rt, t.f32, t.shape)
	case Int64:
		return ort.NewTensorValue(rt, t.i64, t.shape)
	default:
		return nil, fmt.Errorf("unsupported dtype %q", t.dtype)
	}
}

func fromValue(v *ort.Value) (*Tensor, error) {
	kind, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("element type: %w", err)
	}

	switch kind {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return Float32Tensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return Int64Tensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported element type %d", kind)
	}
}

func closeValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
