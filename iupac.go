package snvindex

// IUPAC ambiguity-code handling. The mask table follows the same
// bit-per-base approach used throughout the retrieved pack's handful of
// IUPAC treatments: four low bits, one per unambiguous base, ORed
// together for ambiguity codes.
const (
	baseBitA byte = 1 << 0
	baseBitC byte = 1 << 1
	baseBitG byte = 1 << 2
	baseBitT byte = 1 << 3
)

var iupacBits [256]byte

func init() {
	set := func(c byte, bits byte) {
		iupacBits[c] = bits
		if c >= 'A' && c <= 'Z' {
			iupacBits[c+('a'-'A')] = bits
		}
	}
	set('A', baseBitA)
	set('C', baseBitC)
	set('G', baseBitG)
	set('T', baseBitT)
	set('U', baseBitT)
	set('R', baseBitA|baseBitG)
	set('Y', baseBitC|baseBitT)
	set('S', baseBitC|baseBitG)
	set('W', baseBitA|baseBitT)
	set('K', baseBitG|baseBitT)
	set('M', baseBitA|baseBitC)
	set('B', baseBitC|baseBitG|baseBitT)
	set('D', baseBitA|baseBitG|baseBitT)
	set('H', baseBitA|baseBitC|baseBitT)
	set('V', baseBitA|baseBitC|baseBitG)
	set('N', baseBitA|baseBitC|baseBitG|baseBitT)
}

// isUnambiguousBase reports whether c is one of A, C, G, T (any case).
func isUnambiguousBase(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	}
	return false
}

// isN reports whether c denotes the unknown-base symbol.
func isN(c byte) bool {
	return c == 'N' || c == 'n'
}

// isAmbiguityCode reports whether c is an IUPAC ambiguity code that is
// neither one of the four unambiguous bases nor N (i.e. carries partial
// information: R, Y, S, W, K, M, B, D, H, V).
func isAmbiguityCode(c byte) bool {
	bits := iupacBits[c]
	if bits == 0 {
		return false
	}
	if isUnambiguousBase(c) || isN(c) {
		return false
	}
	return true
}

// ambiguityFrequencies returns the (fA, fC, fG, fT) tuple implied by an
// IUPAC ambiguity code, splitting probability mass evenly across the
// bases it denotes. Returns all-zero for a code that denotes no base.
func ambiguityFrequencies(c byte) (fA, fC, fG, fT float64) {
	bits := iupacBits[c]
	n := 0
	for _, b := range []byte{baseBitA, baseBitC, baseBitG, baseBitT} {
		if bits&b != 0 {
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0, 0
	}
	share := 1.0 / float64(n)
	if bits&baseBitA != 0 {
		fA = share
	}
	if bits&baseBitC != 0 {
		fC = share
	}
	if bits&baseBitG != 0 {
		fG = share
	}
	if bits&baseBitT != 0 {
		fT = share
	}
	return
}

// UncertainClass selects which ambiguity symbols the comparer and the
// mixture estimator treat as "uncertain" at a position, per spec.md's
// uncertain character class.
type UncertainClass uint8

const (
	// UncertainN treats only N positions as uncertain.
	UncertainN UncertainClass = iota
	// UncertainM treats only M/ambiguity-code positions as uncertain.
	UncertainM
	// UncertainNOrM treats both N and ambiguity-code positions as
	// uncertain.
	UncertainNOrM
)

func (u UncertainClass) skipsM() bool {
	return u == UncertainM || u == UncertainNOrM
}

func parseUncertainClass(s string) (UncertainClass, error) {
	switch s {
	case "N":
		return UncertainN, nil
	case "M":
		return UncertainM, nil
	case "N_or_M":
		return UncertainNOrM, nil
	default:
		return 0, newErr("parseUncertainClass", KindConfigError, "", errInvalidUncertainClass(s))
	}
}

type errInvalidUncertainClass string

func (e errInvalidUncertainClass) Error() string {
	return "invalid uncertain character class: " + string(e)
}
