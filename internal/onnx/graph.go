package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DType is a tensor element type named in a graph manifest.
type DType string

const (
	Float32 DType = "float32"
	Int64   DType = "int64"
)

// UnmarshalYAML accepts the spellings exporters commonly emit, such as
// "float" and "tensor(int64)".
func (d *DType) UnmarshalYAML(n *yaml.Node) error {
	raw := strings.ToLower(strings.TrimSpace(n.Value))
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "tensor("), ")")

	switch raw {
	case "float", "float32":
		*d = Float32
	case "int64", "long":
		*d = Int64
	default:
		return fmt.Errorf("line %d: unsupported dtype %q", n.Line, n.Value)
	}

	return nil
}

// Dim is one dimension of a port shape: a fixed size, or a symbol such as
// "frames" that is only known at run time.
type Dim struct {
	Size   int64
	Symbol string
}

func (d *Dim) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: dimension must be a scalar", n.Line)
	}

	if v, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		if v < 1 {
			return fmt.Errorf("line %d: dimension %d is not positive", n.Line, v)
		}

		*d = Dim{Size: v}

		return nil
	}

	sym := strings.TrimSpace(n.Value)
	if sym == "" {
		return fmt.Errorf("line %d: empty symbolic dimension", n.Line)
	}

	*d = Dim{Symbol: sym}

	return nil
}

func (d Dim) String() string {
	if d.Symbol != "" {
		return d.Symbol
	}

	return strconv.FormatInt(d.Size, 10)
}

// Port is a named graph input or output.
type Port struct {
	Name  string `yaml:"name"`
	DType DType  `yaml:"dtype"`
	Shape []Dim  `yaml:"shape"`
}

// Graph is one ONNX file in a manifest. SampleRate and TimeMajor describe
// how a vocoder graph expects its mel input and produces audio.
type Graph struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	SampleRate int    `yaml:"sample_rate,omitempty"`
	TimeMajor  bool   `yaml:"time_major,omitempty"`
	Inputs     []Port `yaml:"inputs"`
	Outputs    []Port `yaml:"outputs"`
}

// GraphManifest is the manifest.yaml that sits next to the graph files.
// JSON manifests parse as well.
type GraphManifest struct {
	Graphs []Graph `yaml:"graphs"`
}

// LoadGraphs reads a manifest and resolves every graph path against the
// manifest's directory. Each graph file must exist.
func LoadGraphs(manifestPath string) (GraphManifest, error) {
	if manifestPath == "" {
		return GraphManifest{}, errors.New("onnx: manifest path is required")
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return GraphManifest{}, fmt.Errorf("onnx: read manifest: %w", err)
	}

	var m GraphManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return GraphManifest{}, fmt.Errorf("onnx: decode manifest %s: %w", manifestPath, err)
	}

	if len(m.Graphs) == 0 {
		return GraphManifest{}, fmt.Errorf("onnx: manifest %s lists no graphs", manifestPath)
	}

	base := filepath.Dir(manifestPath)
	seen := make(map[string]bool, len(m.Graphs))

	for i := range m.Graphs {
		g := &m.Graphs[i]

		switch {
		case g.Name == "":
			return GraphManifest{}, fmt.Errorf("onnx: graph %d has no name", i)
		case g.Path == "":
			return GraphManifest{}, fmt.Errorf("onnx: graph %q has no path", g.Name)
		case seen[g.Name]:
			return GraphManifest{}, fmt.Errorf("onnx: graph %q listed twice", g.Name)
		}

		seen[g.Name] = true

		if !filepath.IsAbs(g.Path) {
			g.Path = filepath.Join(base, g.Path)
		}

		g.Path = filepath.Clean(g.Path)
		if _, err := os.Stat(g.Path); err != nil {
			return GraphManifest{}, fmt.Errorf("onnx: graph %q: %w", g.Name, err)
		}

		slog.Debug("onnx graph listed",
			"name", g.Name,
			"path", g.Path,
			"inputs", portNames(g.Inputs),
			"outputs", portNames(g.Outputs),
		)
	}

	return m, nil
}

// Graph returns the graph called name.
func (m GraphManifest) Graph(name string) (Graph, bool) {
	for _, g := range m.Graphs {
		if g.Name == name {
			return g, true
		}
	}

	return Graph{}, false
}

func portNames(ports []Port) string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}

	return strings.Join(names, ",")
}
