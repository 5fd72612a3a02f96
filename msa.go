package snvindex

import "sort"

// MSAColumn is one informative column of a multiple alignment: a
// genome position plus the count of each called base across the
// aligned guids.
type MSAColumn struct {
	Position int
	Counts   map[byte]int
}

// MSARow is one guid's row of a multiple alignment.
type MSARow struct {
	Guid      string
	Sequence  string
	Quality   float64
	Mixture   MixtureAssessment
	HasMixture bool
}

// MultipleAlignment is the output of MSABuilder.Build, per spec.md §4.F.
type MultipleAlignment struct {
	Columns []MSAColumn
	Rows    []MSARow
}

// MSABuilder produces multiple sequence alignments from a set of
// CompressedSequences, per spec.md §4.F.
type MSABuilder struct {
	uncertain UncertainClass
	alpha     float64
}

// NewMSABuilder builds an MSABuilder using uncertain to decide whether
// M_pos positions may anchor an informative column.
func NewMSABuilder(uncertain UncertainClass, alpha float64) *MSABuilder {
	return &MSABuilder{uncertain: uncertain, alpha: alpha}
}

// Build computes the alignment over seqs, restricted to the union of
// informative positions (positions where at least one sequence has a
// non-reference base or ambiguity, minus M), in ascending genome-position
// order. The reference (whose length is used for Test 3) and
// expectedP1/hasP1 (the population-wide uncertain-base rate used for
// Test 1) are supplied by the caller (Engine) since MSABuilder itself
// holds no store reference; Test 2 is not run.
func (b *MSABuilder) Build(seqs []*CompressedSequence, reference []byte, withMixture bool, expectedP1 float64, hasP1 bool) MultipleAlignment {
	referenceLength := len(reference)
	informative := map[int]struct{}{}
	for _, s := range seqs {
		for _, pos := range [4]PositionSet{s.APos, s.CPos, s.GPos, s.TPos} {
			for _, p := range pos {
				informative[p] = struct{}{}
			}
		}
		if !b.uncertain.skipsM() {
			for p := range s.MPos {
				informative[p] = struct{}{}
			}
		}
	}
	positions := make([]int, 0, len(informative))
	for p := range informative {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	columns := make([]MSAColumn, len(positions))
	for i, p := range positions {
		columns[i] = MSAColumn{Position: p, Counts: map[byte]int{}}
	}
	posIndex := make(map[int]int, len(positions))
	for i, p := range positions {
		posIndex[p] = i
	}

	rows := make([]MSARow, 0, len(seqs))
	for _, s := range seqs {
		row := make([]byte, len(positions))
		alignN := 0
		for i, p := range positions {
			base := callAt(s, p, reference[p])
			row[i] = base
			columns[i].Counts[base]++
			if base == 'N' {
				alignN++
			}
		}
		mr := MSARow{Guid: s.Guid, Sequence: string(row), Quality: s.Quality}
		if withMixture {
			totalUncertain := len(s.NPos) + len(s.MPos)
			mr.Mixture = assessMixture(s.Guid, alignN, len(positions), totalUncertain, referenceLength, expectedP1, hasP1, 0, false, b.alpha)
			mr.HasMixture = true
		}
		rows = append(rows, mr)
	}

	return MultipleAlignment{Columns: columns, Rows: rows}
}

// callAt returns the single-letter call at position p: a non-reference
// base or N if recorded in one of s's position sets, else the reference
// base itself.
func callAt(s *CompressedSequence, p int, refBase byte) byte {
	if s.APos.Contains(p) {
		return 'A'
	}
	if s.CPos.Contains(p) {
		return 'C'
	}
	if s.GPos.Contains(p) {
		return 'G'
	}
	if s.TPos.Contains(p) {
		return 'T'
	}
	if s.NPos.Contains(p) {
		return 'N'
	}
	if _, ok := s.MPos[p]; ok {
		return 'M'
	}
	return refBase
}
