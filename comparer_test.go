package snvindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeFor(t *testing.T, codec *ReferenceCodec, guid, seq string) *CompressedSequence {
	t.Helper()
	cs, err := codec.EncodeVsReference(guid, []byte(seq))
	require.NoError(t, err)
	return cs
}

func TestComparerDistanceSymmetryAndIdentity(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	x := encodeFor(t, codec, "x", "AAAACAAAAA")
	y := encodeFor(t, codec, "y", "AAAACGAAAA")

	c := NewComparer(3, UncertainN, 0.05, 1)

	dxy, ok := c.Distance(x, y)
	require.True(t, ok)
	dyx, ok := c.Distance(y, x)
	require.True(t, ok)
	require.Equal(t, dxy, dyx, "invariant 2: d(g1,g2) == d(g2,g1)")

	dxx, ok := c.Distance(x, x)
	require.True(t, ok)
	require.Equal(t, 0, dxx, "invariant 2: d(g,g) == 0")
}

func TestComparerDistanceValues(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	g1 := encodeFor(t, codec, "g1", "AAAAAAAAAA")
	g2 := encodeFor(t, codec, "g2", "AAAACAAAAA")
	g3 := encodeFor(t, codec, "g3", "AAAACGAAAA")

	c := NewComparer(3, UncertainN, 0.05, 1)

	d12, ok := c.Distance(g1, g2)
	require.True(t, ok)
	require.Equal(t, 1, d12)

	d13, ok := c.Distance(g1, g3)
	require.True(t, ok)
	require.Equal(t, 2, d13)

	d23, ok := c.Distance(g2, g3)
	require.True(t, ok)
	require.Equal(t, 1, d23)
}

func TestComparerDistanceExceedsCeiling(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	g1 := encodeFor(t, codec, "g1", "AAAAAAAAAA")
	g5 := encodeFor(t, codec, "g5", "AAAACCCCCC")

	c := NewComparer(3, UncertainN, 0.05, 1)
	_, ok := c.Distance(g1, g5)
	require.False(t, ok, "6 mismatches exceeds ceiling=3")
}

func TestComparerSkipsNPositions(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.5)
	x := encodeFor(t, codec, "x", "AAAANAAAAA")
	y := encodeFor(t, codec, "y", "AAAAAAAAAA")

	c := NewComparer(3, UncertainN, 0.05, 1)
	d, ok := c.Distance(x, y)
	require.True(t, ok)
	require.Equal(t, 0, d, "N positions are excluded from the distance")
}

func TestComparerCompareAgainstAllRespectsCeilingAndInvalid(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	g1 := encodeFor(t, codec, "g1", "AAAAAAAAAA")
	g2 := encodeFor(t, codec, "g2", "AAAACAAAAA")
	g4 := encodeFor(t, codec, "g4", "AANNNNAAAA")
	require.True(t, g4.Invalid)
	g5 := encodeFor(t, codec, "g5", "AAAACCCCCC")

	c := NewComparer(3, UncertainN, 0.05, 4)
	edges, err := c.CompareAgainstAll(context.Background(), g2, []*CompressedSequence{g1, g4, g5}, 10)
	require.NoError(t, err)
	require.Len(t, edges, 1, "only g1 qualifies: g4 is invalid, g5 exceeds the ceiling")
	require.Equal(t, 1, edges[0].SNV)
}
