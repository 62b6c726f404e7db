package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Reserved token ids. Every vocabulary starts with these four units.
const (
	PadID int64 = 0
	SOSID int64 = 1
	EOSID int64 = 2
	UnkID int64 = 3
)

// SpaceUnit is the vocabulary entry every whitespace run maps to.
const SpaceUnit = " "

var reservedUnits = [...]string{"<pad>", "<sos>", "<eos>", "<unk>"}

// scriptBlocks lists the Unicode ranges covered by DefaultVocabulary.
var scriptBlocks = []struct {
	name   string
	lo, hi rune
}{
	{"Devanagari", 0x0900, 0x097F},
	{"Bengali", 0x0980, 0x09FF},
	{"Tamil", 0x0B80, 0x0BFF},
	{"Telugu", 0x0C00, 0x0C7F},
	{"Kannada", 0x0C80, 0x0CFF},
	{"Malayalam", 0x0D00, 0x0D7F},
}

// Vocabulary maps text units to token ids. The line index of a unit is its
// id. It is immutable after construction.
type Vocabulary struct {
	units []string
	ids   map[string]int64
}

// NewVocabulary builds a vocabulary from units. The first four units must be
// the reserved markers <pad>, <sos>, <eos> and <unk>.
func NewVocabulary(units []string) (*Vocabulary, error) {
	if len(units) < len(reservedUnits) {
		return nil, fmt.Errorf("tokenizer: vocabulary has %d units, need at least the %d reserved markers", len(units), len(reservedUnits))
	}

	for i, r := range reservedUnits {
		if units[i] != r {
			return nil, fmt.Errorf("tokenizer: vocabulary line %d is %q, want reserved marker %q", i, units[i], r)
		}
	}

	v := &Vocabulary{
		units: append([]string(nil), units...),
		ids:   make(map[string]int64, len(units)),
	}

	for i, u := range v.units {
		if u == "" {
			return nil, fmt.Errorf("tokenizer: vocabulary line %d is empty", i)
		}

		if _, dup := v.ids[u]; dup {
			return nil, fmt.Errorf("tokenizer: duplicate vocabulary unit %q at line %d", u, i)
		}

		v.ids[u] = int64(i)
	}

	return v, nil
}

// DefaultVocabulary covers the space unit, printable ASCII, and every
// assigned code point in the Devanagari, Bengali, Tamil, Telugu, Kannada and
// Malayalam blocks (which include the danda marks).
func DefaultVocabulary() *Vocabulary {
	units := append([]string(nil), reservedUnits[:]...)
	units = append(units, SpaceUnit)

	for r := rune(0x21); r <= 0x7E; r++ {
		units = append(units, string(r))
	}

	for _, b := range scriptBlocks {
		for r := b.lo; r <= b.hi; r++ {
			if unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S) {
				units = append(units, string(r))
			}
		}
	}

	v, err := NewVocabulary(units)
	if err != nil {
		panic(err)
	}

	return v
}

// LoadVocabulary reads a vocabulary file with one unit per line.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open vocabulary: %w", err)
	}
	defer f.Close()

	v, err := ReadVocabulary(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return v, nil
}

// ReadVocabulary parses one unit per line. Only the trailing newline (and a
// carriage return before it) is stripped, so a line holding a single space
// is the space unit.
func ReadVocabulary(r io.Reader) (*Vocabulary, error) {
	var units []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		units = append(units, strings.TrimSuffix(sc.Text(), "\r"))
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read vocabulary: %w", err)
	}

	if len(units) == 0 {
		return nil, errors.New("tokenizer: vocabulary is empty")
	}

	return NewVocabulary(units)
}

// WriteTo writes the vocabulary in the format ReadVocabulary accepts.
func (v *Vocabulary) WriteTo(w io.Writer) (int64, error) {
	var n int64

	for _, u := range v.units {
		k, err := io.WriteString(w, u+"\n")
		n += int64(k)

		if err != nil {
			return n, err
		}
	}

	return n, nil
}

func (v *Vocabulary) Size() int { return len(v.units) }

// ID returns the id of unit and whether it is present.
func (v *Vocabulary) ID(unit string) (int64, bool) {
	id, ok := v.ids[unit]
	return id, ok
}

// Unit returns the text unit for id, or the unk marker when out of range.
func (v *Vocabulary) Unit(id int64) string {
	if id < 0 || id >= int64(len(v.units)) {
		return reservedUnits[UnkID]
	}

	return v.units[id]
}
