//go:build (js && wasm) || windows

package onnx

import (
	"context"
	"fmt"
	"runtime"
)

// RunnerConfig mirrors the purego build so callers compile unchanged.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner cannot load ONNX Runtime on this platform. Use the sine vocoder,
// or NewVocoderWithRunner with a GraphRunner of your own.
type Runner struct {
	graph Graph
}

func NewRunner(g Graph, _ RunnerConfig) (*Runner, error) {
	return nil, errUnsupported(g.Name)
}

func (r *Runner) Run(_ context.Context, _ map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, errUnsupported(r.graph.Name)
}

func (r *Runner) Close() {}

func (r *Runner) Name() string {
	return r.graph.Name
}

func errUnsupported(graph string) error {
	return fmt.Errorf("onnx runner is unavailable on %s/%s for graph %q", runtime.GOOS, runtime.GOARCH, graph)
}
