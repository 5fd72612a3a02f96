package snvindex

import "fmt"

// MaskSet holds the positions excluded from all distance computations,
// applied once per input. Word-packed bitmap, grounded on the
// bitset.IntSet shape used throughout the corpus's sequence-processing
// code for compact position sets.
type MaskSet struct {
	length int
	words  []uint64
	count  int
}

// NewMaskSet validates and stores positions as a bitmap of length L.
// Every position must satisfy 0 <= p < L.
func NewMaskSet(length int, positions []int) (*MaskSet, error) {
	if length < 0 {
		return nil, newErr("NewMaskSet", KindConfigError, "", fmt.Errorf("negative length %d", length))
	}
	m := &MaskSet{
		length: length,
		words:  make([]uint64, (length+63)/64),
	}
	for _, p := range positions {
		if p < 0 || p >= length {
			return nil, newErr("NewMaskSet", KindConfigError, "", fmt.Errorf("mask position %d out of range [0,%d)", p, length))
		}
		m.set(p)
	}
	return m, nil
}

func (m *MaskSet) set(p int) {
	idx := p >> 6
	bit := uint64(1) << uint(p&63)
	if m.words[idx]&bit == 0 {
		m.words[idx] |= bit
		m.count++
	}
}

// Contains reports whether position p is masked.
func (m *MaskSet) Contains(p int) bool {
	if p < 0 || p >= m.length {
		return false
	}
	idx := p >> 6
	bit := uint64(1) << uint(p&63)
	return m.words[idx]&bit != 0
}

// Len returns the number of masked positions.
func (m *MaskSet) Len() int { return m.count }

// GenomeLength returns the length the mask was constructed against.
func (m *MaskSet) GenomeLength() int { return m.length }

// Apply replaces masked positions in seq with the sentinel byte 'N',
// leaving everything else untouched. The input must already be exactly
// GenomeLength() bytes; Apply does not otherwise validate content.
func (m *MaskSet) Apply(seq []byte) ([]byte, error) {
	if len(seq) != m.length {
		return nil, newErr("MaskSet.Apply", KindInvalidInput, "", fmt.Errorf("sequence length %d does not match reference length %d", len(seq), m.length))
	}
	out := make([]byte, len(seq))
	copy(out, seq)
	for idx, word := range m.words {
		if word == 0 {
			continue
		}
		base := idx * 64
		for bit := 0; bit < 64; bit++ {
			if word&(uint64(1)<<uint(bit)) != 0 {
				pos := base + bit
				if pos < len(out) {
					out[pos] = 'N'
				}
			}
		}
	}
	return out, nil
}

// emptyMask returns a MaskSet with no excluded positions, for callers
// that configure no mask.
func emptyMask(length int) *MaskSet {
	m, _ := NewMaskSet(length, nil)
	return m
}
