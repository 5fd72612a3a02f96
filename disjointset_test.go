package snvindex

import "testing"

func TestDisjointSetUnionFind(t *testing.T) {
	ds := newDisjointSet()
	for _, g := range []string{"a", "b", "c", "d"} {
		ds.makeSet(g)
	}

	if ds.connected("a", "b") {
		t.Fatal("a and b should not be connected yet")
	}

	if _, merged := ds.union("a", "b"); !merged {
		t.Fatal("expected a union of a and b to merge")
	}
	if !ds.connected("a", "b") {
		t.Fatal("a and b should be connected after union")
	}

	if _, merged := ds.union("a", "b"); merged {
		t.Fatal("re-unioning already-connected sets should report no merge")
	}

	ds.union("c", "d")
	if ds.connected("a", "c") {
		t.Fatal("a/b and c/d should remain separate")
	}

	ds.union("b", "c")
	if !ds.connected("a", "d") {
		t.Fatal("a and d should be connected transitively through b-c")
	}

	root := ds.find("a")
	members := ds.members(root)
	if len(members) != 4 {
		t.Fatalf("expected 4 members, got %d: %v", len(members), members)
	}
}

func TestDisjointSetRoots(t *testing.T) {
	ds := newDisjointSet()
	ds.makeSet("a")
	ds.makeSet("b")
	ds.makeSet("c")
	ds.union("a", "b")

	roots := ds.roots()
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots after one union among three singletons, got %d: %v", len(roots), roots)
	}
}
