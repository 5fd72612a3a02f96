package snvindex

// PositionSet is a sparse, sorted set of zero-indexed genome positions.
// Stored as a sorted slice rather than a map: compressed sequences are
// read far more often than mutated, and sorted slices make the union/
// symmetric-difference operations in codec.go and comparer.go both
// simple and cache-friendly, mirroring the donor's use of plain Python
// sets for the same five-way position partition.
type PositionSet []int

// Contains reports whether p is present, via binary search.
func (s PositionSet) Contains(p int) bool {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid] < p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(s) && s[lo] == p
}

func sortedPositionSet(positions map[int]struct{}) PositionSet {
	out := make(PositionSet, 0, len(positions))
	for p := range positions {
		out = append(out, p)
	}
	insertionSortInts(out)
	return out
}

func insertionSortInts(s []int) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// union returns the sorted union of two sorted PositionSets.
func union(a, b PositionSet) PositionSet {
	out := make(PositionSet, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// symmetricDifference returns the sorted set of positions present in
// exactly one of a, b.
func symmetricDifference(a, b PositionSet) PositionSet {
	out := make(PositionSet, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// difference returns the sorted set of positions in a but not in b.
func difference(a, b PositionSet) PositionSet {
	out := make(PositionSet, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return out
}

// BaseFrequencies is the ordered (fA,fC,fG,fT) tuple recorded for a
// position in M_pos, summing to 1.
type BaseFrequencies struct {
	A, C, G, T float64
}

// CompressedSequence is the reference-compressed representation of one
// sample, per spec.md §3.
type CompressedSequence struct {
	Guid string

	APos PositionSet
	CPos PositionSet
	GPos PositionSet
	TPos PositionSet
	NPos PositionSet

	// MPos maps a mixed position to its base-frequency record.
	MPos map[int]BaseFrequencies

	Invalid bool
	Quality float64

	Meta map[string]any

	// LocalRef, if non-empty, names the guid this sequence is stored as
	// a double-delta against. Empty means single-delta (vs. the global
	// reference only). At most one level of indirection is permitted:
	// LocalRef never itself names a double-delta sequence.
	LocalRef string
}

// basePositions returns the four unambiguous-base position sets in a
// fixed order, used by code that needs to iterate A,C,G,T uniformly.
func (c *CompressedSequence) basePositions() [4]PositionSet {
	return [4]PositionSet{c.APos, c.CPos, c.GPos, c.TPos}
}

// Edge is an unordered pair of guids with a pairwise SNV distance and an
// optional mixture p-value, per spec.md §3.
type Edge struct {
	G1, G2 string
	SNV    int
	// MixtureP is the mixPORE p-value for the pair, if computed; NaN
	// when not available.
	MixtureP float64
}

// CanonicalPair returns (lo, hi) such that lo < hi lexicographically,
// the canonical key order used by the sparse matrix and PersistencePort.
func CanonicalPair(g1, g2 string) (lo, hi string) {
	if g1 < g2 {
		return g1, g2
	}
	return g2, g1
}
