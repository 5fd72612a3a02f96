package snvindex

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSparseMatrixAddEdgeRejectsOverCeiling(t *testing.T) {
	m := NewSparseMatrix(3, NewMemoryPersistence(), nil)
	err := m.AddEdge(context.Background(), Edge{G1: "g1", G2: "g2", SNV: 4, MixtureP: math.NaN()})
	require.Error(t, err, "invariant 3: no edge may be recorded with snv > ceiling")
}

func TestSparseMatrixAddEdgeRejectsSelfLoop(t *testing.T) {
	m := NewSparseMatrix(3, NewMemoryPersistence(), nil)
	err := m.AddEdge(context.Background(), Edge{G1: "g1", G2: "g1", SNV: 0})
	require.Error(t, err)
}

func TestSparseMatrixAddEdgeAndNeighbours(t *testing.T) {
	persistence := NewMemoryPersistence()
	m := NewSparseMatrix(3, persistence, nil)
	ctx := context.Background()

	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g2", G2: "g1", SNV: 1, MixtureP: math.NaN()}))
	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g1", G2: "g3", SNV: 2, MixtureP: math.NaN()}))

	e, ok := m.Edge("g1", "g2")
	require.True(t, ok)
	require.Equal(t, 1, e.SNV)

	qualityOf := func(string) (float64, bool) { return 1.0, true }
	records := m.Neighbours("g1", 3, 0, FormatWithDistance, qualityOf, nil)
	require.Len(t, records, 2)
	require.Equal(t, "g2", records[0].Guid, "ascending SNV: g2 (1) before g3 (2)")
	require.Equal(t, "g3", records[1].Guid)
}

func TestSparseMatrixNeighboursFilterByThresholdAndQuality(t *testing.T) {
	persistence := NewMemoryPersistence()
	m := NewSparseMatrix(3, persistence, nil)
	ctx := context.Background()
	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g1", G2: "g2", SNV: 1}))
	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g1", G2: "g3", SNV: 3}))

	qualityOf := func(g string) (float64, bool) {
		if g == "g3" {
			return 0.1, true
		}
		return 0.9, true
	}
	records := m.Neighbours("g1", 2, 0.5, FormatWithQuality, qualityOf, nil)
	require.Len(t, records, 1, "g3's SNV (3) exceeds threshold=2 and its quality is below the cutoff")
	require.Equal(t, "g2", records[0].Guid)
}

func TestSparseMatrixRemove(t *testing.T) {
	persistence := NewMemoryPersistence()
	m := NewSparseMatrix(3, persistence, nil)
	ctx := context.Background()
	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g1", G2: "g2", SNV: 1}))
	require.NoError(t, m.AddEdge(ctx, Edge{G1: "g1", G2: "g3", SNV: 2}))

	require.NoError(t, m.Remove(ctx, "g1"))
	_, ok := m.Edge("g1", "g2")
	require.False(t, ok)
	_, ok = m.Edge("g2", "g1")
	require.False(t, ok)
}

func TestSparseMatrixLoadRebuildsFromPersistence(t *testing.T) {
	persistence := NewMemoryPersistence()
	ctx := context.Background()

	m1 := NewSparseMatrix(3, persistence, nil)
	require.NoError(t, m1.Load(ctx))
	require.NoError(t, m1.AddEdge(ctx, Edge{G1: "g1", G2: "g2", SNV: 1, MixtureP: math.NaN()}))

	m2 := NewSparseMatrix(3, persistence, nil)
	require.NoError(t, m2.Load(ctx))
	e, ok := m2.Edge("g1", "g2")
	require.True(t, ok)
	require.Equal(t, 1, e.SNV)
}
