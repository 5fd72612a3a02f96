package snvindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, workingSetCapacity int) *CompressedStore {
	t.Helper()
	codec := newTestCodec(t, "AAAAAAAAAA", 0.3)
	return NewCompressedStore(codec, NewMemoryPersistence(), workingSetCapacity, nil)
}

func TestCompressedStoreInsertAndGet(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	cs, err := s.Insert(ctx, "g1", []byte("AAAACAAAAA"), map[string]any{"lab": "X"})
	require.NoError(t, err)
	require.False(t, cs.Invalid)
	require.Equal(t, 1.0, cs.Quality)

	got, release, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	defer release()
	require.Equal(t, "g1", got.Guid)

	meta, err := s.Annotation(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "X", meta["lab"])
}

func TestCompressedStoreRejectsDuplicateGuid(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	_, err := s.Insert(ctx, "g1", []byte("AAAAAAAAAA"), nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "g1", []byte("AAAAAAAAAA"), nil)
	require.Error(t, err)
}

func TestCompressedStoreSequenceRoundTrip(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	_, err := s.Insert(ctx, "g1", []byte("AAAACGAAAA"), nil)
	require.NoError(t, err)

	seq, err := s.Sequence(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "AAAACGAAAA", seq)
}

func TestCompressedStoreAllGuidsSorted(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	for _, g := range []string{"g3", "g1", "g2"} {
		_, err := s.Insert(ctx, g, []byte("AAAAAAAAAA"), nil)
		require.NoError(t, err)
	}
	guids, err := s.AllGuids(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"g1", "g2", "g3"}, guids)
}

func TestCompressedStoreRehydratesAfterEviction(t *testing.T) {
	s := newTestStore(t, 1) // capacity 1 forces eviction of every prior entry
	ctx := context.Background()

	_, err := s.Insert(ctx, "g1", []byte("AAAACGAAAA"), nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "g2", []byte("AAAACGAATA"), nil)
	require.NoError(t, err)

	seq, err := s.Sequence(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, "AAAACGAAAA", seq, "g1 must rehydrate correctly from persistence after being evicted")
}

func TestCompressedStoreReset(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	_, err := s.Insert(ctx, "g1", []byte("AAAAAAAAAA"), nil)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	guids, err := s.AllGuids(ctx)
	require.NoError(t, err)
	require.Empty(t, guids)
}
