package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// Encode serializes float32 tensors, plus an optional string metadata block,
// into safetensors format. Tensors are laid out in name order so the output
// is byte-for-byte reproducible.
func Encode(tensors []Tensor, metadata map[string]string) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	sorted := append([]Tensor(nil), tensors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var size int
	for _, t := range sorted {
		size += 4 * len(t.Data)
	}

	body := make([]byte, 0, size)

	for _, t := range sorted {
		name := strings.TrimSpace(t.Name)
		if name == "" || name == metadataKey {
			return nil, fmt.Errorf("safetensors: invalid tensor name %q", t.Name)
		}

		if _, dup := header[name]; dup {
			return nil, fmt.Errorf("safetensors: duplicate tensor name %q", name)
		}

		count, err := elementCount(t.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		if int64(len(t.Data)) != count {
			return nil, fmt.Errorf("safetensors: tensor %q shape %v expects %d elements, got %d", name, t.Shape, count, len(t.Data))
		}

		start := len(body)
		for _, v := range t.Data {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
		}

		header[name] = headerEntry{
			DType:   dtypeF32,
			Shape:   append([]int64{}, t.Shape...),
			Offsets: [2]int{start, len(body)},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+len(body))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)

	return append(out, body...), nil
}

// WriteFile encodes tensors and writes them to path.
func WriteFile(path string, tensors []Tensor, metadata map[string]string) error {
	data, err := Encode(tensors, metadata)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	return nil
}
