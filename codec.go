package snvindex

import (
	"fmt"
	"strings"
)

// ReferenceCodec encodes masked consensus strings against a fixed global
// reference, and optionally re-encodes an already-compressed sequence as
// a double-delta against a locally chosen reference sequence. Semantics
// (five disjoint position sets, invalid-on-excess-N) are grounded on
// seqComparer.compress/uncompress in the donor implementation, extended
// per spec.md to a sixth (M/ambiguity) set.
type ReferenceCodec struct {
	reference []byte
	mask      *MaskSet
	maxNProp  float64
}

// NewReferenceCodec builds a codec for a fixed-length reference. maxNProp
// is the proportion of informative (non-masked) positions that may be
// N+M before a sequence is flagged invalid.
func NewReferenceCodec(reference string, mask *MaskSet, maxNProp float64) (*ReferenceCodec, error) {
	ref := []byte(strings.ToUpper(reference))
	for i, c := range ref {
		if !isUnambiguousBase(c) {
			return nil, newErr("NewReferenceCodec", KindConfigError, "", fmt.Errorf("reference position %d is not A/C/G/T: %q", i, c))
		}
	}
	if mask == nil {
		mask = emptyMask(len(ref))
	}
	if mask.GenomeLength() != len(ref) {
		return nil, newErr("NewReferenceCodec", KindConfigError, "", fmt.Errorf("mask length %d does not match reference length %d", mask.GenomeLength(), len(ref)))
	}
	if maxNProp < 0 || maxNProp > 1 {
		return nil, newErr("NewReferenceCodec", KindConfigError, "", fmt.Errorf("max_n_percent must be in [0,1], got %v", maxNProp))
	}
	return &ReferenceCodec{reference: ref, mask: mask, maxNProp: maxNProp}, nil
}

// ReferenceLength returns L.
func (rc *ReferenceCodec) ReferenceLength() int { return len(rc.reference) }

// Reference returns the reference string.
func (rc *ReferenceCodec) Reference() string { return string(rc.reference) }

// EncodeVsReference produces the CompressedSequence for masked, per
// spec.md §4.B. masked must already have had the mask applied (masked
// positions replaced with 'N' or any sentinel — EncodeVsReference treats
// every masked position as excluded regardless of its byte value).
func (rc *ReferenceCodec) EncodeVsReference(guid string, masked []byte) (*CompressedSequence, error) {
	if len(masked) != len(rc.reference) {
		return nil, newErr("EncodeVsReference", KindInvalidInput, guid, fmt.Errorf("sequence length %d does not match reference length %d", len(masked), len(rc.reference)))
	}

	aSet := map[int]struct{}{}
	cSet := map[int]struct{}{}
	gSet := map[int]struct{}{}
	tSet := map[int]struct{}{}
	nSet := map[int]struct{}{}
	mPos := map[int]BaseFrequencies{}

	informative := 0
	definite := 0

	for i := 0; i < len(masked); i++ {
		if rc.mask.Contains(i) {
			continue
		}
		informative++
		c := masked[i]
		switch {
		case c == '-':
			c = 'N'
		case c >= 'a' && c <= 'z':
			c = c - ('a' - 'A')
		}
		switch {
		case isN(c):
			nSet[i] = struct{}{}
		case isUnambiguousBase(c):
			if c != rc.reference[i] {
				switch c {
				case 'A':
					aSet[i] = struct{}{}
				case 'C':
					cSet[i] = struct{}{}
				case 'G':
					gSet[i] = struct{}{}
				case 'T':
					tSet[i] = struct{}{}
				}
			}
			definite++
		case isAmbiguityCode(c):
			fA, fC, fG, fT := ambiguityFrequencies(c)
			mPos[i] = BaseFrequencies{A: fA, C: fC, G: fG, T: fT}
		default:
			return nil, newErr("EncodeVsReference", KindInvalidInput, guid, fmt.Errorf("position %d has non-IUPAC character %q", i, c))
		}
	}

	cs := &CompressedSequence{
		Guid: guid,
		APos: sortedPositionSet(aSet),
		CPos: sortedPositionSet(cSet),
		GPos: sortedPositionSet(gSet),
		TPos: sortedPositionSet(tSet),
		NPos: sortedPositionSet(nSet),
		MPos: mPos,
	}

	uncertain := len(nSet) + len(mPos)
	if informative == 0 {
		cs.Invalid = true
		cs.Quality = 0
	} else {
		propUncertain := float64(uncertain) / float64(informative)
		cs.Invalid = propUncertain > rc.maxNProp
		cs.Quality = 1 - float64(uncertain)/float64(informative)
	}
	return cs, nil
}

// Decompress reconstructs the masked string of length L for a
// (single-delta) compressed sequence: masked positions and N positions
// render as 'N'; ambiguity positions render with the IUPAC code whose
// bases are those with non-zero frequency in their record (falling back
// to 'M' when no two-to-three-base code has exactly that base set).
func (rc *ReferenceCodec) Decompress(cs *CompressedSequence) (string, error) {
	if cs.Invalid {
		return "", newErr("Decompress", KindQualityTooLow, cs.Guid, nil)
	}
	out := make([]byte, len(rc.reference))
	copy(out, rc.reference)
	for i := 0; i < len(out); i++ {
		if rc.mask.Contains(i) {
			out[i] = 'N'
		}
	}
	for _, p := range cs.APos {
		out[p] = 'A'
	}
	for _, p := range cs.CPos {
		out[p] = 'C'
	}
	for _, p := range cs.GPos {
		out[p] = 'G'
	}
	for _, p := range cs.TPos {
		out[p] = 'T'
	}
	for _, p := range cs.NPos {
		out[p] = 'N'
	}
	for p, f := range cs.MPos {
		var bits byte
		if f.A > 0 {
			bits |= baseBitA
		}
		if f.C > 0 {
			bits |= baseBitC
		}
		if f.G > 0 {
			bits |= baseBitG
		}
		if f.T > 0 {
			bits |= baseBitT
		}
		out[p] = 'M'
		for _, code := range []byte("RYSWKMBDHV") {
			if iupacBits[code] == bits {
				out[p] = code
				break
			}
		}
	}
	return string(out), nil
}

// EncodeVsLocal re-encodes an already-expanded sequence x as a
// double-delta against localRef: for each base b, the symmetric
// difference of x.b_pos and localRef.b_pos. localRef must itself be
// single-delta (LocalRef == ""); spec.md §9(c) bounds rehydration to one
// level of indirection.
func (rc *ReferenceCodec) EncodeVsLocal(x, localRef *CompressedSequence) (*CompressedSequence, error) {
	if localRef.LocalRef != "" {
		return nil, newErr("EncodeVsLocal", KindInternal, x.Guid, fmt.Errorf("local reference %s is itself double-delta", localRef.Guid))
	}
	if x.LocalRef != "" {
		return nil, newErr("EncodeVsLocal", KindInternal, x.Guid, fmt.Errorf("sequence is already double-delta against %s", x.LocalRef))
	}
	delta := &CompressedSequence{
		Guid:     x.Guid,
		APos:     symmetricDifference(x.APos, localRef.APos),
		CPos:     symmetricDifference(x.CPos, localRef.CPos),
		GPos:     symmetricDifference(x.GPos, localRef.GPos),
		TPos:     symmetricDifference(x.TPos, localRef.TPos),
		NPos:     symmetricDifference(x.NPos, localRef.NPos),
		MPos:     patchMPos(x.MPos, localRef.MPos),
		Invalid:  x.Invalid,
		Quality:  x.Quality,
		Meta:     x.Meta,
		LocalRef: localRef.Guid,
	}
	return delta, nil
}

// ExpandLocal reverses EncodeVsLocal: given a double-delta sequence and
// its (already single-delta) local reference, reconstructs the
// single-delta form bit-exactly.
func (rc *ReferenceCodec) ExpandLocal(delta, localRef *CompressedSequence) (*CompressedSequence, error) {
	if delta.LocalRef == "" {
		return delta, nil
	}
	if delta.LocalRef != localRef.Guid {
		return nil, newErr("ExpandLocal", KindInternal, delta.Guid, fmt.Errorf("delta references local ref %s, got %s", delta.LocalRef, localRef.Guid))
	}
	if localRef.LocalRef != "" {
		return nil, newErr("ExpandLocal", KindInternal, delta.Guid, fmt.Errorf("local reference %s is itself double-delta", localRef.Guid))
	}
	x := &CompressedSequence{
		Guid:    delta.Guid,
		APos:    symmetricDifference(delta.APos, localRef.APos),
		CPos:    symmetricDifference(delta.CPos, localRef.CPos),
		GPos:    symmetricDifference(delta.GPos, localRef.GPos),
		TPos:    symmetricDifference(delta.TPos, localRef.TPos),
		NPos:    symmetricDifference(delta.NPos, localRef.NPos),
		MPos:    patchMPos(delta.MPos, localRef.MPos),
		Invalid: delta.Invalid,
		Quality: delta.Quality,
		Meta:    delta.Meta,
	}
	return x, nil
}

// patchMPos computes the symmetric difference of two ambiguity-position
// maps by key, taking the child's frequency record where it differs
// from (or is absent from) the parent. Applying patchMPos twice with the
// same localRef is its own inverse, matching the set-based symmetric
// difference used for the four base position sets.
func patchMPos(a, b map[int]BaseFrequencies) map[int]BaseFrequencies {
	out := make(map[int]BaseFrequencies)
	for p, f := range a {
		if bf, ok := b[p]; !ok || bf != f {
			out[p] = f
		}
	}
	for p, f := range b {
		if _, ok := a[p]; !ok {
			out[p] = f
		}
	}
	return out
}

// deltaSize reports the number of positions EncodeVsLocal would need to
// store (sum of the four base-set symmetric differences plus N plus M),
// used by the store's local-reference selection policy to estimate
// savings without materialising the delta.
func deltaSize(x, candidate *CompressedSequence) int {
	n := 0
	n += symmetricDifferenceLen(x.APos, candidate.APos)
	n += symmetricDifferenceLen(x.CPos, candidate.CPos)
	n += symmetricDifferenceLen(x.GPos, candidate.GPos)
	n += symmetricDifferenceLen(x.TPos, candidate.TPos)
	n += symmetricDifferenceLen(x.NPos, candidate.NPos)
	n += len(patchMPos(x.MPos, candidate.MPos))
	return n
}

func symmetricDifferenceLen(a, b PositionSet) int {
	return len(symmetricDifference(a, b))
}

func rawSize(x *CompressedSequence) int {
	return len(x.APos) + len(x.CPos) + len(x.GPos) + len(x.TPos) + len(x.NPos) + len(x.MPos)
}
