package snvindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// NeighbourFormat selects the record shape neighbour queries return,
// per spec.md §6.3.
type NeighbourFormat int

const (
	FormatIDOnly NeighbourFormat = iota + 1
	FormatWithDistance
	FormatWithQuality
	FormatWithMeta
)

// NeighbourRecord is one row of a neighbours() result. Fields beyond
// Guid/SNV are populated only when the requested format calls for them.
type NeighbourRecord struct {
	Guid       string
	SNV        int
	HasQuality bool
	Quality    float64
	HasMeta    bool
	Meta       map[string]any
}

// SparseMatrix is the persisted, incrementally maintained edge index,
// per spec.md §4.E. It is an index, not a source of truth: edges are
// derivable from CompressedSequences and may be recomputed.
type SparseMatrix struct {
	mu          sync.RWMutex
	ceiling     int
	persistence PersistencePort
	adjacency   map[string]map[string]Edge
	loaded      bool
	metrics     *Metrics
}

// NewSparseMatrix builds an empty matrix. Load must be called before
// queries observe anything written in a prior process.
func NewSparseMatrix(ceiling int, persistence PersistencePort, metrics *Metrics) *SparseMatrix {
	return &SparseMatrix{
		ceiling:     ceiling,
		persistence: persistence,
		adjacency:   make(map[string]map[string]Edge),
		metrics:     metrics,
	}
}

// Load rebuilds the in-RAM index from PersistencePort, per spec.md
// §4.E's "on startup, the in-RAM index is rebuilt lazily".
func (m *SparseMatrix) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	it, err := m.persistence.Scan(ctx, "edge/")
	if err != nil {
		return newErr("Load", KindPersistenceFailure, "", err)
	}
	defer it.Close()
	for it.Next() {
		e, err := decodeEdgeRecord(it.Value())
		if err != nil {
			return newErr("Load", KindInternal, "", err)
		}
		m.insertLocked(e)
	}
	if err := it.Err(); err != nil {
		return newErr("Load", KindPersistenceFailure, "", err)
	}
	m.loaded = true
	return nil
}

func (m *SparseMatrix) insertLocked(e Edge) {
	lo, hi := CanonicalPair(e.G1, e.G2)
	e.G1, e.G2 = lo, hi
	if m.adjacency[lo] == nil {
		m.adjacency[lo] = make(map[string]Edge)
	}
	if m.adjacency[hi] == nil {
		m.adjacency[hi] = make(map[string]Edge)
	}
	m.adjacency[lo][hi] = e
	m.adjacency[hi][lo] = e
}

// AddEdge records e, writing through to PersistencePort. Idempotent: a
// repeated call with the same pair overwrites the prior record (used
// when a late-arriving comparison revises a mixture p-value).
func (m *SparseMatrix) AddEdge(ctx context.Context, e Edge) error {
	if e.G1 == e.G2 {
		return newErr("AddEdge", KindInvalidInput, e.G1, fmt.Errorf("g1 and g2 must differ"))
	}
	if e.SNV > m.ceiling {
		return newErr("AddEdge", KindInvalidInput, e.G1, fmt.Errorf("snv %d exceeds ceiling %d", e.SNV, m.ceiling))
	}
	lo, hi := CanonicalPair(e.G1, e.G2)
	blob, err := encodeEdgeRecord(Edge{G1: lo, G2: hi, SNV: e.SNV, MixtureP: e.MixtureP})
	if err != nil {
		return newErr("AddEdge", KindInternal, e.G1, err)
	}
	if err := m.persistence.Put(ctx, edgeKey(lo, hi), blob); err != nil {
		return newErr("AddEdge", KindPersistenceFailure, e.G1, err)
	}

	m.mu.Lock()
	isNew := m.adjacency[lo] == nil || m.adjacency[hi] == nil
	if !isNew {
		_, isNew = m.adjacency[lo][hi]
		isNew = !isNew
	}
	m.insertLocked(e)
	m.mu.Unlock()

	if m.metrics != nil && isNew {
		m.metrics.addEdges(1)
	}
	return nil
}

// Remove drops every edge incident on g.
func (m *SparseMatrix) Remove(ctx context.Context, g string) error {
	m.mu.Lock()
	partners := m.adjacency[g]
	var ops []BatchOp
	for partner := range partners {
		lo, hi := CanonicalPair(g, partner)
		ops = append(ops, BatchOp{Delete: true, Key: edgeKey(lo, hi)})
		delete(m.adjacency[partner], g)
	}
	delete(m.adjacency, g)
	m.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	if err := m.persistence.AtomicBatch(ctx, ops); err != nil {
		return newErr("Remove", KindPersistenceFailure, g, err)
	}
	return nil
}

// Edge returns the recorded edge between g1 and g2, if any.
func (m *SparseMatrix) Edge(g1, g2 string) (Edge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	partners, ok := m.adjacency[g1]
	if !ok {
		return Edge{}, false
	}
	e, ok := partners[g2]
	return e, ok
}

// Neighbours returns edges incident on g with snv <= threshold, whose
// partner's quality (via qualityOf) is >= qualityCutoff, shaped per
// format and ordered by ascending SNV then lexicographic guid.
func (m *SparseMatrix) Neighbours(g string, threshold int, qualityCutoff float64, format NeighbourFormat, qualityOf func(string) (float64, bool), metaOf func(string) (map[string]any, bool)) []NeighbourRecord {
	m.mu.RLock()
	partners := m.adjacency[g]
	type candidate struct {
		guid string
		e    Edge
	}
	var candidates []candidate
	for partner, e := range partners {
		if e.SNV <= threshold {
			candidates = append(candidates, candidate{guid: partner, e: e})
		}
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].e.SNV != candidates[j].e.SNV {
			return candidates[i].e.SNV < candidates[j].e.SNV
		}
		return candidates[i].guid < candidates[j].guid
	})

	var out []NeighbourRecord
	for _, c := range candidates {
		quality, ok := float64(0), true
		if qualityOf != nil {
			quality, ok = qualityOf(c.guid)
		}
		if !ok || quality < qualityCutoff {
			continue
		}
		rec := NeighbourRecord{Guid: c.guid, SNV: c.e.SNV}
		if format >= FormatWithQuality {
			rec.Quality = quality
			rec.HasQuality = true
		}
		if format >= FormatWithMeta {
			if metaOf != nil {
				if meta, ok := metaOf(c.guid); ok {
					rec.Meta = meta
					rec.HasMeta = true
				}
			}
		}
		out = append(out, rec)
	}
	return out
}

// Reset drops every persisted edge and clears the in-RAM index.
func (m *SparseMatrix) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, err := m.persistence.Scan(ctx, "edge/")
	if err != nil {
		return newErr("Reset", KindPersistenceFailure, "", err)
	}
	var ops []BatchOp
	for it.Next() {
		ops = append(ops, BatchOp{Delete: true, Key: it.Key()})
	}
	closeErr := it.Close()
	if err := firstNonNil(it.Err(), closeErr); err != nil {
		return newErr("Reset", KindPersistenceFailure, "", err)
	}
	if len(ops) > 0 {
		if err := m.persistence.AtomicBatch(ctx, ops); err != nil {
			return newErr("Reset", KindPersistenceFailure, "", err)
		}
	}

	m.adjacency = make(map[string]map[string]Edge)
	m.loaded = true
	return nil
}

// AllGuids returns every guid with at least one edge.
func (m *SparseMatrix) AllGuids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.adjacency))
	for g := range m.adjacency {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
