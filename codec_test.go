package snvindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, ref string, maxNProp float64) *ReferenceCodec {
	t.Helper()
	mask := emptyMask(len(ref))
	codec, err := NewReferenceCodec(ref, mask, maxNProp)
	require.NoError(t, err)
	return codec
}

func TestEncodeVsReferenceRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)

	tests := []struct {
		name string
		in   string
	}{
		{"identical to reference", "AAAAAAAAAA"},
		{"single substitution", "AAAACAAAAA"},
		{"two substitutions", "AAAACGAAAA"},
		{"contains ambiguity code", "AAAARAAAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := codec.EncodeVsReference("g", []byte(tt.in))
			require.NoError(t, err)
			require.False(t, cs.Invalid)
			out, err := codec.Decompress(cs)
			require.NoError(t, err)
			want := tt.in // ambiguity codes decompress to the same IUPAC symbol
			require.Equal(t, want, out, "invariant 1: decompress(compressed(g)) == masked(input(g))")
		})
	}
}

func TestEncodeVsReferenceInvalidOnExcessN(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	cs, err := codec.EncodeVsReference("g4", []byte("AANNNNAAAA"))
	require.NoError(t, err)
	require.True(t, cs.Invalid, "4 of 10 informative positions are N, exceeding max_n_percent=0.3")
}

func TestEncodeVsReferenceRejectsNonIUPAC(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	_, err := codec.EncodeVsReference("g", []byte("AAAAXAAAAA"))
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidInput))
}

func TestEncodeVsReferenceRejectsWrongLength(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	_, err := codec.EncodeVsReference("g", []byte("AAAA"))
	require.Error(t, err)
}

func TestDoubleDeltaRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)

	localRef, err := codec.EncodeVsReference("ref", []byte("AAAACAAAAA"))
	require.NoError(t, err)

	x, err := codec.EncodeVsReference("x", []byte("AAAACGAAAA"))
	require.NoError(t, err)

	delta, err := codec.EncodeVsLocal(x, localRef)
	require.NoError(t, err)
	require.Equal(t, "ref", delta.LocalRef)

	expanded, err := codec.ExpandLocal(delta, localRef)
	require.NoError(t, err)

	require.Equal(t, x.APos, expanded.APos)
	require.Equal(t, x.CPos, expanded.CPos)
	require.Equal(t, x.GPos, expanded.GPos)
	require.Equal(t, x.TPos, expanded.TPos)
	require.Equal(t, x.NPos, expanded.NPos)
	require.Equal(t, x.MPos, expanded.MPos, "invariant 8: expand(encode_local(X,L),L) == X")
}

func TestEncodeVsLocalRejectsDoubleIndirection(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	ref1, err := codec.EncodeVsReference("r1", []byte("AAAACAAAAA"))
	require.NoError(t, err)
	x, err := codec.EncodeVsReference("x", []byte("AAAACGAAAA"))
	require.NoError(t, err)
	deltaOnce, err := codec.EncodeVsLocal(x, ref1)
	require.NoError(t, err)

	// deltaOnce is already double-delta; it may not itself become a local
	// reference for a further EncodeVsLocal call (spec.md §9(c)).
	y, err := codec.EncodeVsReference("y", []byte("AAAACGCAAA"))
	require.NoError(t, err)
	_, err = codec.EncodeVsLocal(y, deltaOnce)
	require.Error(t, err)
}
