// Package safetensors reads and writes the safetensors weight format:
// an 8-byte little-endian header length, a JSON header, then raw tensor data.
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

const (
	dtypeF32  = "F32"
	dtypeF16  = "F16"
	dtypeBF16 = "BF16"

	metadataKey = "__metadata__"
)

// ErrNotFound is returned when a tensor name is absent from the store.
var ErrNotFound = errors.New("safetensors: tensor not found")

// Tensor is a decoded float32 tensor.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Store is an in-memory safetensors file with lazily decoded tensors.
type Store struct {
	raw      []byte
	entries  map[string]entry
	names    []string
	metadata map[string]string
}

type entry struct {
	DType string
	Shape []int64
	Start int
	End   int
}

type headerEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// Open reads and indexes a safetensors file.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenBytes(data)
}

// OpenBytes indexes a safetensors payload held in memory. The store keeps a
// reference to data.
func OpenBytes(data []byte) (*Store, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	base := 8 + int(headerLen)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:base], &header); err != nil {
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	s := &Store{
		raw:      data,
		entries:  make(map[string]entry, len(header)),
		metadata: map[string]string{},
	}

	for name, rawEntry := range header {
		if name == metadataKey {
			if err := json.Unmarshal(rawEntry, &s.metadata); err != nil {
				return nil, fmt.Errorf("safetensors: parse metadata: %w", err)
			}

			continue
		}

		var he headerEntry
		if err := json.Unmarshal(rawEntry, &he); err != nil {
			return nil, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		e, err := indexEntry(name, he, base, len(data))
		if err != nil {
			return nil, err
		}

		s.entries[name] = e
		s.names = append(s.names, name)
	}

	if len(s.entries) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	sort.Strings(s.names)

	return s, nil
}

func indexEntry(name string, he headerEntry, base, size int) (entry, error) {
	dtype := strings.ToUpper(he.DType)

	width, err := dtypeBytes(dtype)
	if err != nil {
		return entry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if he.Offsets[0] < 0 || he.Offsets[1] < he.Offsets[0] {
		return entry{}, fmt.Errorf("safetensors: tensor %q has invalid data offsets %v", name, he.Offsets)
	}

	count, err := elementCount(he.Shape)
	if err != nil {
		return entry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	start, end := base+he.Offsets[0], base+he.Offsets[1]
	if end > size {
		return entry{}, fmt.Errorf("safetensors: tensor %q data [%d:%d] exceeds file size %d", name, start, end, size)
	}

	if need := int(count) * width; end-start < need {
		return entry{}, fmt.Errorf("safetensors: tensor %q needs %d bytes but data has %d", name, need, end-start)
	}

	return entry{
		DType: dtype,
		Shape: append([]int64(nil), he.Shape...),
		Start: start,
		End:   end,
	}, nil
}

// Names returns the sorted tensor names.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Shape returns the declared shape of a tensor without decoding it.
func (s *Store) Shape(name string) ([]int64, bool) {
	e, ok := s.entries[name]
	if !ok {
		return nil, false
	}

	return append([]int64(nil), e.Shape...), true
}

// Metadata returns a copy of the free-form string metadata block.
func (s *Store) Metadata() map[string]string {
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}

	return out
}

// Tensor decodes one tensor to float32.
func (s *Store) Tensor(name string) (*Tensor, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNotFound, name, summarize(s.names))
	}

	data, err := decode(s.raw[e.Start:e.End], e.DType, e.Shape)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q decode: %w", name, err)
	}

	return &Tensor{Name: name, Shape: append([]int64(nil), e.Shape...), Data: data}, nil
}

// ParameterCount sums the element counts of every tensor in the store.
func (s *Store) ParameterCount() int64 {
	var total int64

	for _, e := range s.entries {
		n, _ := elementCount(e.Shape)
		total += n
	}

	return total
}

func (s *Store) Close() {
	s.raw = nil
	s.entries = nil
	s.names = nil
}

func elementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d in %v", d, shape)
		}

		if d == 0 {
			return 0, nil
		}

		if total > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}

func dtypeBytes(dtype string) (int, error) {
	switch dtype {
	case dtypeF32:
		return 4, nil
	case dtypeF16, dtypeBF16:
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func decode(raw []byte, dtype string, shape []int64) ([]float32, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	out := make([]float32, count)

	switch dtype {
	case dtypeF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case dtypeF16:
		for i := range out {
			out[i] = halfToFloat(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case dtypeBF16:
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}

	return out, nil
}

func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x03ff)

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		e := int32(-14)
		for frac&0x0400 == 0 {
			frac <<= 1
			e--
		}

		frac &= 0x03ff

		return math.Float32frombits(sign | uint32(e+127)<<23 | frac<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}

func summarize(names []string) string {
	const limit = 8

	switch {
	case len(names) == 0:
		return "none"
	case len(names) <= limit:
		return strings.Join(names, ", ")
	default:
		return strings.Join(names[:limit], ", ") + ", ..."
	}
}
