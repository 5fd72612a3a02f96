package snvindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMSABuilderInformativeColumns(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	g1 := encodeFor(t, codec, "g1", "AAAAAAAAAA")
	g2 := encodeFor(t, codec, "g2", "AAAACAAAAA")
	g3 := encodeFor(t, codec, "g3", "AAAACGAAAA")

	b := NewMSABuilder(UncertainN, 0.05)
	alignment := b.Build([]*CompressedSequence{g1, g2, g3}, []byte(codec.Reference()), false, 0, false)

	require.Len(t, alignment.Columns, 2, "only positions 4 and 5 carry a non-reference base across g1,g2,g3")
	require.Equal(t, 4, alignment.Columns[0].Position)
	require.Equal(t, 5, alignment.Columns[1].Position)

	byGuid := map[string]string{}
	for _, row := range alignment.Rows {
		byGuid[row.Guid] = row.Sequence
	}
	require.Equal(t, "AA", byGuid["g1"])
	require.Equal(t, "CA", byGuid["g2"])
	require.Equal(t, "CG", byGuid["g3"])
}

func TestMSABuilderWithMixtureAssessment(t *testing.T) {
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	g1 := encodeFor(t, codec, "g1", "AAAAAAAAAA")
	g2 := encodeFor(t, codec, "g2", "AAAACAAAAA")

	b := NewMSABuilder(UncertainN, 0.05)
	alignment := b.Build([]*CompressedSequence{g1, g2}, []byte(codec.Reference()), true, 0.01, true)
	for _, row := range alignment.Rows {
		require.True(t, row.HasMixture)
	}
}
