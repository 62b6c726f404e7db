package native

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
	"github.com/example/go-voicetech-tts/internal/safetensors"
)

// VarBuilder resolves dotted weight names under a prefix.
type VarBuilder struct {
	store  *safetensors.Store
	prefix string
}

func NewVarBuilder(store *safetensors.Store) *VarBuilder {
	return &VarBuilder{store: store}
}

// Path returns a builder scoped under additional name parts.
func (vb *VarBuilder) Path(parts ...any) *VarBuilder {
	prefix := vb.prefix

	for _, p := range parts {
		part := strings.TrimSpace(fmt.Sprint(p))
		if part == "" {
			continue
		}

		if prefix != "" {
			prefix += "."
		}

		prefix += part
	}

	return &VarBuilder{store: vb.store, prefix: prefix}
}

func (vb *VarBuilder) Has(name string) bool {
	return vb.store != nil && vb.store.Has(vb.resolve(name))
}

// Tensor loads a weight and checks it against wantShape when given.
func (vb *VarBuilder) Tensor(name string, wantShape ...int64) (*tensor.Tensor, error) {
	if vb.store == nil {
		return nil, errors.New("native: var builder has no store")
	}

	full := vb.resolve(name)

	st, err := vb.store.Tensor(full)
	if err != nil {
		return nil, err
	}

	if len(wantShape) > 0 && !equalShape(st.Shape, wantShape) {
		return nil, fmt.Errorf("native: weight %q shape %v, want %v", full, st.Shape, wantShape)
	}

	t, err := tensor.New(st.Data, st.Shape)
	if err != nil {
		return nil, fmt.Errorf("native: weight %q: %w", full, err)
	}

	return t, nil
}

// TensorMaybe loads an optional weight; ok is false when it is absent.
func (vb *VarBuilder) TensorMaybe(name string, wantShape ...int64) (t *tensor.Tensor, ok bool, err error) {
	if !vb.Has(name) {
		return nil, false, nil
	}

	t, err = vb.Tensor(name, wantShape...)

	return t, true, err
}

func (vb *VarBuilder) resolve(name string) string {
	name = strings.TrimSpace(name)

	switch {
	case vb.prefix == "":
		return name
	case name == "":
		return vb.prefix
	default:
		return vb.prefix + "." + name
	}
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
