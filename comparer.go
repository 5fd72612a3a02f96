package snvindex

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/semaphore"
)

// Comparer computes pairwise SNV distances and mixPORE mixture p-values
// between CompressedSequences, per spec.md §4.D.
type Comparer struct {
	ceiling     int
	uncertain   UncertainClass
	alpha       float64
	concurrency int64
}

// NewComparer builds a Comparer. concurrency bounds the number of
// pairwise comparisons run at once during a fan-out scan; values <= 0
// default to 1 (serial).
func NewComparer(ceiling int, uncertain UncertainClass, alpha float64, concurrency int) *Comparer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Comparer{ceiling: ceiling, uncertain: uncertain, alpha: alpha, concurrency: int64(concurrency)}
}

// Distance computes d(X,Y), skipping positions excluded by the
// uncertainty policy, with early termination once the running distance
// exceeds ceiling. ok is false when the true distance exceeds ceiling;
// snv is only meaningful when ok is true.
func (c *Comparer) Distance(x, y *CompressedSequence) (snv int, ok bool) {
	if x.Guid == y.Guid {
		return 0, true
	}

	excluded := union(x.NPos, y.NPos)
	if c.uncertain.skipsM() {
		excluded = union(excluded, mposKeys(x.MPos))
		excluded = union(excluded, mposKeys(y.MPos))
	}

	var seen PositionSet
	xb, yb := x.basePositions(), y.basePositions()
	for i := 0; i < 4; i++ {
		diff := difference(symmetricDifference(xb[i], yb[i]), excluded)
		seen = union(seen, diff)
		if len(seen) > c.ceiling {
			return 0, false
		}
	}
	return len(seen), true
}

func mposKeys(m map[int]BaseFrequencies) PositionSet {
	if len(m) == 0 {
		return nil
	}
	out := make(PositionSet, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// MixturePValue runs the per-pair mixPORE binomial test: whether x's
// rate of ambiguity calls (M_pos) at the positions where x and y differ
// is surprising relative to x's own ambiguity rate elsewhere in the
// genome. Mirrors the donor's Test 3 in _msa, specialised to a single
// comparator sequence y instead of an alignment, per spec.md §4.D.
func (c *Comparer) MixturePValue(x, y *CompressedSequence, referenceLength int) float64 {
	excluded := union(x.NPos, y.NPos)
	var diffPositions PositionSet
	xb, yb := x.basePositions(), y.basePositions()
	for i := 0; i < 4; i++ {
		diffPositions = union(diffPositions, symmetricDifference(xb[i], yb[i]))
	}
	diffPositions = union(diffPositions, mposKeys(x.MPos))
	diffPositions = difference(diffPositions, excluded)

	alignLength := len(diffPositions)
	if alignLength == 0 || referenceLength <= alignLength {
		return 1
	}
	alignN := 0
	for _, p := range diffPositions {
		if _, ok := x.MPos[p]; ok {
			alignN++
		}
	}
	totalM := len(x.MPos)
	outsideN := totalM - alignN
	outsideLength := referenceLength - alignLength
	if outsideN < 0 {
		outsideN = 0
	}
	expectedP := float64(outsideN) / float64(outsideLength)
	return binomialTestGreater(alignN, alignLength, expectedP)
}

// IsMixed reports whether p falls below the configured significance
// level.
func (c *Comparer) IsMixed(p float64) bool {
	return p < c.alpha
}

// pairResult is one outcome of a bounded-concurrency fan-out scan.
type pairResult struct {
	edge Edge
	ok   bool
}

// CompareAgainstAll computes edges from x to every candidate with
// snv <= ceiling, running up to c.concurrency comparisons concurrently.
// Candidates flagged Invalid are skipped, per spec.md §3's edge
// existence rule. referenceLength is used for the mixPORE test.
func (c *Comparer) CompareAgainstAll(ctx context.Context, x *CompressedSequence, candidates []*CompressedSequence, referenceLength int) ([]Edge, error) {
	if x.Invalid {
		return nil, nil
	}
	sem := semaphore.NewWeighted(c.concurrency)
	results := make([]pairResult, len(candidates))

	for i, y := range candidates {
		if y.Invalid || y.Guid == x.Guid {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		i, y := i, y
		go func() {
			defer sem.Release(1)
			snv, ok := c.Distance(x, y)
			if !ok {
				results[i] = pairResult{ok: false}
				return
			}
			mp := math.NaN()
			if c.alpha > 0 {
				mp = c.MixturePValue(x, y, referenceLength)
			}
			lo, hi := CanonicalPair(x.Guid, y.Guid)
			results[i] = pairResult{edge: Edge{G1: lo, G2: hi, SNV: snv, MixtureP: mp}, ok: true}
		}()
	}

	if err := sem.Acquire(ctx, c.concurrency); err != nil {
		return nil, err
	}
	sem.Release(c.concurrency)

	var edges []Edge
	for _, r := range results {
		if r.ok {
			edges = append(edges, r.edge)
		}
	}
	return edges, nil
}
