package snvindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func edgesAmong(pairs [][3]any) []Edge {
	var out []Edge
	for _, p := range pairs {
		out = append(out, Edge{G1: p[0].(string), G2: p[1].(string), SNV: p[2].(int)})
	}
	return out
}

func TestClustererStableIDSmallerSurvives(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, IncludeMixed)

	c.OnInsert("z", false, nil) // cluster id 0
	c.OnInsert("a", false, nil) // cluster id 1

	changed := c.OnInsert("m", false, edgesAmong([][3]any{{"m", "z", 1}, {"m", "a", 1}}))
	require.True(t, changed)

	clusters := c.Clusters()
	require.Len(t, clusters, 1, "z, a, and m should now be one cluster")
	_, ok := clusters[0]
	require.True(t, ok, "stable id should be the smaller of the absorbed ids, per spec.md §9(b)")
}

func TestClustererConnectivityMatchesPathThroughEdges(t *testing.T) {
	c := NewClusterer("t", 1, UncertainN, IncludeMixed)

	c.OnInsert("g1", false, nil)
	c.OnInsert("g2", false, edgesAmong([][3]any{{"g2", "g1", 1}}))
	c.OnInsert("g3", false, edgesAmong([][3]any{{"g3", "g1", 2}, {"g3", "g2", 1}}))

	clusters := c.Clusters()
	require.Len(t, clusters, 1, "g1-g2-g3 connected through edges <= threshold despite d(g1,g3)=2 > 1")
	for _, members := range clusters {
		require.ElementsMatch(t, []string{"g1", "g2", "g3"}, members)
	}
}

func TestClustererExcludeMixedNeverUnions(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, ExcludeMixed)

	c.OnInsert("g1", false, nil)
	changed := c.OnInsert("g2", true, edgesAmong([][3]any{{"g2", "g1", 1}}))
	require.False(t, changed, "a mixed guid under exclude_mixed never joins any cluster")

	clusters := c.Clusters()
	require.Len(t, clusters, 2)
}

func TestClustererExcludeMixedFromGrowthPreventsBridging(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, ExcludeMixedFromGrowth)

	c.OnInsert("a1", false, nil)
	c.OnInsert("b1", false, nil)

	// m is mixed and qualifies against both a1 and b1, which sit in two
	// distinct clusters; it may join one but must not bridge them.
	c.OnInsert("m", true, edgesAmong([][3]any{{"m", "a1", 1}, {"m", "b1", 1}}))

	ds := c.ds
	require.True(t, ds.connected("m", "a1") != ds.connected("m", "b1"),
		"m should join exactly one of the two clusters, not both")
	require.False(t, ds.connected("a1", "b1"), "a1 and b1 must remain disconnected")
}

func TestClustererChangeIDMonotone(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, IncludeMixed)
	require.Equal(t, 0, c.ChangeID())

	c.OnInsert("g1", false, nil)
	require.Equal(t, 0, c.ChangeID(), "a singleton with no qualifying edges causes no change")

	changed := c.OnInsert("g2", false, edgesAmong([][3]any{{"g2", "g1", 1}}))
	require.True(t, changed)
	require.Equal(t, 1, c.ChangeID(), "invariant 7: change-id is strictly monotone")

	changed = c.OnInsert("g3", false, edgesAmong([][3]any{{"g3", "g1", 1}, {"g3", "g2", 1}}))
	require.True(t, changed)
	require.Equal(t, 2, c.ChangeID(), "g3 joining the existing cluster is a second, distinct change")
}

func TestClustererGuidsToClusters(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, IncludeMixed)
	c.OnInsert("g1", false, nil) // no qualifying edges: no change, change-id stays 0

	changed := c.OnInsert("g2", false, edgesAmong([][3]any{{"g2", "g1", 1}})) // bumps change-id to 1
	require.True(t, changed)
	require.Equal(t, 1, c.ChangeID())

	// A poller that has only consumed through change-id 0 must still see
	// the union that just happened, because it was stamped with the
	// post-advance id (1), not the id as of before the call.
	after0 := c.GuidsToClusters(0)
	require.Contains(t, after0, "g1")
	require.Contains(t, after0, "g2")

	after1 := c.GuidsToClusters(1)
	require.NotContains(t, after1, "g1", "g1's membership last changed at change-id 1, not strictly after it")
	require.NotContains(t, after1, "g2")
}

func TestClustererSnapshotRestoreRoundTrip(t *testing.T) {
	c := NewClusterer("t", 3, UncertainN, ExcludeMixed)
	c.OnInsert("g1", false, nil)
	c.OnInsert("g2", true, edgesAmong([][3]any{{"g2", "g1", 1}})) // mixed, excluded: stays a singleton
	c.OnInsert("g3", false, edgesAmong([][3]any{{"g3", "g1", 1}}))

	snap := c.snapshot()

	restored := NewClusterer("t", 3, UncertainN, ExcludeMixed)
	restored.restore(snap)

	require.Equal(t, c.ChangeID(), restored.ChangeID())
	require.Equal(t, c.Clusters(), restored.Clusters())
	require.Equal(t, c.Summary(), restored.Summary())

	// A guid arriving after restore must advance past the persisted
	// change-id rather than resetting to zero, and its freshly assigned
	// id (used only if it stays a singleton) must not collide with any
	// stable cluster id already in use.
	changed := restored.OnInsert("g4", false, edgesAmong([][3]any{{"g4", "g1", 1}}))
	require.True(t, changed)
	require.Equal(t, snap.ChangeID+1, restored.ChangeID())
	require.ElementsMatch(t, []string{"g1", "g3", "g4"}, restored.Members(0), "g4 joins g1's cluster, whose id survives as the smaller")
	require.ElementsMatch(t, []string{"g2"}, restored.Members(1), "g2 stays untouched, kept a singleton by exclude_mixed and its mixed flag")
}
