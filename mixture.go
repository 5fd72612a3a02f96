package snvindex

import "math"

// binomialLogPMF returns log P(X = k) for X ~ Binomial(n, p).
func binomialLogPMF(k, n int, p float64) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	if p <= 0 {
		if k == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	if p >= 1 {
		if k == n {
			return 0
		}
		return math.Inf(-1)
	}
	logCoeff := lgammaInt(n+1) - lgammaInt(k+1) - lgammaInt(n-k+1)
	return logCoeff + float64(k)*math.Log(p) + float64(n-k)*math.Log(1-p)
}

func lgammaInt(n int) float64 {
	v, _ := math.Lgamma(float64(n))
	return v
}

// binomialTestGreater is the exact one-sided binomial test P(X >= k),
// X ~ Binomial(n, p) — the "alternative='greater'" test the donor
// implementation runs via scipy.stats.binom_test for its three mixture
// p-values (assess_mixed / _msa). Summed directly in probability space
// via a recurrence starting from the pmf at k rather than via repeated exact
// pmf evaluation, since n can be in the thousands for whole-genome
// alignments.
func binomialTestGreater(k, n int, p float64) float64 {
	if n <= 0 {
		return 1
	}
	if k <= 0 {
		return 1
	}
	if k > n {
		return 0
	}
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}

	// Sum from k to n in increasing order starting at the pmf computed
	// directly at k, then walking upward with the exact binomial
	// recurrence pmf(i+1) = pmf(i) * (n-i)/(i+1) * p/(1-p); this avoids
	// recomputing log-gamma terms for every term in the tail.
	logPk := binomialLogPMF(k, n, p)
	if math.IsInf(logPk, -1) {
		return 0
	}
	sum := math.Exp(logPk)
	term := sum
	ratio := p / (1 - p)
	for i := k; i < n; i++ {
		term *= float64(n-i) / float64(i+1) * ratio
		sum += term
		if term < 1e-17*sum {
			break
		}
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

// MixtureAssessment is the per-guid output of the three binomial tests
// the donor's _msa/assess_mixed machinery runs, generalising spec.md's
// flat "mixed" boolean to the full p-value triple.
type MixtureAssessment struct {
	Guid string

	AlignN      int
	AlignLength int

	ExpectedP1 float64
	PValue1    float64
	HasP1      bool

	ExpectedP2 float64
	PValue2    float64
	HasP2      bool

	ExpectedP3 float64
	PValue3    float64

	// Mixed is true if test 3, or test 2 when available (else test 1
	// when available), falls below alpha.
	Mixed bool
}

// assessMixture runs the three binomial tests for one guid within a
// multiple alignment.
//
// Test 1: is alignN surprising given a population-wide estimate of the
// uncertain-base rate (hasP1 false if unavailable)?
// Test 2: is alignN surprising given a site-specific population
// estimate restricted to the alignment's own columns (hasP2 false if
// unavailable)?
// Test 3: is alignN surprising given this guid's own uncertain-base
// rate outside the alignment?
func assessMixture(guid string, alignN, alignLength int, guidTotalUncertain, referenceLength int, expectedP1 float64, hasP1 bool, expectedP2 float64, hasP2 bool, alpha float64) MixtureAssessment {
	out := MixtureAssessment{
		Guid:        guid,
		AlignN:      alignN,
		AlignLength: alignLength,
	}

	if hasP1 && alignLength > 0 {
		out.ExpectedP1 = expectedP1
		out.PValue1 = binomialTestGreater(alignN, alignLength, expectedP1)
		out.HasP1 = true
	}
	if hasP2 && alignLength > 0 {
		out.ExpectedP2 = expectedP2
		out.PValue2 = binomialTestGreater(alignN, alignLength, expectedP2)
		out.HasP2 = true
	}

	outsideLength := referenceLength - alignLength
	outsideN := guidTotalUncertain - alignN
	if outsideLength > 0 && alignLength > 0 {
		expectedP3 := float64(outsideN) / float64(outsideLength)
		if expectedP3 < 0 {
			expectedP3 = 0
		}
		out.ExpectedP3 = expectedP3
		out.PValue3 = binomialTestGreater(alignN, alignLength, expectedP3)
	} else {
		out.ExpectedP3 = 0
		out.PValue3 = 1
	}

	p := out.PValue3
	if out.HasP2 {
		p = math.Min(p, out.PValue2)
	} else if out.HasP1 {
		p = math.Min(p, out.PValue1)
	}
	out.Mixed = p < alpha
	return out
}
