package snvindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// InsertResult is what Engine.Insert reports back to the caller.
type InsertResult struct {
	Guid    string
	Invalid bool
	Quality float64
	Edges   int
}

// Engine assembles components A-H behind the single-writer gate
// described in spec.md §5, and exposes the §6.2 method surface, per
// this module's own expansion §4.I.
type Engine struct {
	cfg Config

	mask     *MaskSet
	codec    *ReferenceCodec
	store    *CompressedStore
	comparer *Comparer
	matrix   *SparseMatrix
	msa      *MSABuilder

	clusterers []*Clusterer

	persistence PersistencePort
	metrics     *Metrics

	writerGate *semaphore.Weighted
}

// NewEngine wires every component from cfg and persistence. metrics may
// be nil to disable instrumentation (e.g. in unit tests).
func NewEngine(cfg Config, persistence PersistencePort, metrics *Metrics) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mask, err := NewMaskSet(len(cfg.Reference), cfg.MaskPositions)
	if err != nil {
		return nil, err
	}
	codec, err := NewReferenceCodec(cfg.Reference, mask, cfg.MaxNPercent)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		mask:        mask,
		codec:       codec,
		store:       NewCompressedStore(codec, persistence, cfg.WorkingSetCapacity, metrics),
		comparer:    NewComparer(cfg.SNVCeiling, UncertainN, cfg.MixtureAlpha, 8),
		matrix:      NewSparseMatrix(cfg.SNVCeiling, persistence, metrics),
		persistence: persistence,
		metrics:     metrics,
		writerGate:  semaphore.NewWeighted(1),
	}

	for _, cc := range cfg.Clustering {
		uncertain, err := parseUncertainClass(cc.UncertainChar)
		if err != nil {
			return nil, newErr("NewEngine", KindConfigError, cc.Name, err)
		}
		policy, err := parseMixturePolicy(cc.MixturePolicy)
		if err != nil {
			return nil, newErr("NewEngine", KindConfigError, cc.Name, err)
		}
		e.clusterers = append(e.clusterers, NewClusterer(cc.Name, cc.Threshold, uncertain, policy))
	}
	e.msa = NewMSABuilder(UncertainN, cfg.MixtureAlpha)

	ctx := context.Background()
	if err := e.matrix.Load(ctx); err != nil {
		return nil, err
	}
	for _, c := range e.clusterers {
		if err := e.loadClusterSnapshot(ctx, c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// loadClusterSnapshot restores c's state from its persisted snapshot, if
// one exists. A clusterer with no snapshot yet (first run, or an algorithm
// just added to configuration) starts empty.
func (e *Engine) loadClusterSnapshot(ctx context.Context, c *Clusterer) error {
	blob, ok, err := e.persistence.Get(ctx, clusterKey(c.Name))
	if err != nil {
		return newErr("NewEngine", KindPersistenceFailure, c.Name, err)
	}
	if !ok {
		return nil
	}
	snap, err := decodeClusterSnapshot(blob)
	if err != nil {
		return newErr("NewEngine", KindInternal, c.Name, err)
	}
	c.restore(snap)
	return nil
}

// saveClusterSnapshot persists c's full current state under its
// single per-algorithm key, per spec.md §6.3.
func (e *Engine) saveClusterSnapshot(ctx context.Context, c *Clusterer) error {
	blob, err := encodeClusterSnapshot(c.snapshot())
	if err != nil {
		return newErr("Insert", KindInternal, c.Name, err)
	}
	if err := e.persistence.Put(ctx, clusterKey(c.Name), blob); err != nil {
		return newErr("Insert", KindPersistenceFailure, c.Name, err)
	}
	return nil
}

func (e *Engine) clusterer(algo string) (*Clusterer, error) {
	for _, c := range e.clusterers {
		if c.Name == algo {
			return c, nil
		}
	}
	return nil, newErr("clusterer", KindNotFound, algo, nil)
}

// Insert runs the five-step pipeline from spec.md §5 under the
// single-writer gate: compress and store g, compare against every
// existing guid, add qualifying edges, update clusterers, advance
// change-ids.
func (e *Engine) Insert(ctx context.Context, guid string, seq string, meta map[string]any) (InsertResult, error) {
	if err := e.writerGate.Acquire(ctx, 1); err != nil {
		return InsertResult{}, err
	}
	defer e.writerGate.Release(1)

	start := time.Now()
	Vprintf("insert: guid=%s len=%d\n", guid, len(seq))
	result, err := e.insertLocked(ctx, guid, seq, meta)
	if e.metrics != nil {
		e.metrics.observeInsertDuration(time.Since(start).Seconds())
	}
	return result, err
}

func (e *Engine) insertLocked(ctx context.Context, guid string, seq string, meta map[string]any) (InsertResult, error) {
	if len(seq) != e.mask.GenomeLength() {
		return InsertResult{}, newErr("Insert", KindInvalidInput, guid, fmt.Errorf("sequence length %d does not match reference length %d", len(seq), e.mask.GenomeLength()))
	}
	masked, err := e.mask.Apply([]byte(strings.ToUpper(seq)))
	if err != nil {
		return InsertResult{}, err
	}

	cs, err := e.store.Insert(ctx, guid, masked, meta)
	if err != nil {
		return InsertResult{}, err
	}

	result := InsertResult{Guid: guid, Invalid: cs.Invalid, Quality: cs.Quality}
	if cs.Invalid {
		return result, nil
	}

	existingGuids, err := e.store.AllGuids(ctx)
	if err != nil {
		return result, err
	}
	var candidates []*CompressedSequence
	var releases []func()
	defer func() {
		for _, r := range releases {
			r()
		}
	}()
	for _, g := range existingGuids {
		if g == guid {
			continue
		}
		cand, release, err := e.store.Get(ctx, g)
		if err != nil {
			continue
		}
		candidates = append(candidates, cand)
		releases = append(releases, release)
	}

	edges, err := e.comparer.CompareAgainstAll(ctx, cs, candidates, e.mask.GenomeLength())
	if err != nil {
		// Per spec.md §7, partial edges for this guid are removed; the
		// sequence record itself remains.
		_ = e.matrix.Remove(ctx, guid)
		return result, newErr("Insert", KindInternal, guid, err)
	}
	for _, edge := range edges {
		if err := e.matrix.AddEdge(ctx, edge); err != nil {
			_ = e.matrix.Remove(ctx, guid)
			return result, err
		}
	}
	result.Edges = len(edges)

	for _, c := range e.clusterers {
		// An algorithm whose own uncertain-character policy skips M
		// positions entirely (UncertainM, UncertainNOrM) never counts
		// ambiguity calls in its distance metric, so the comparer's
		// mixture verdict - itself derived from ambiguity rate - has
		// nothing to say about that algorithm's clustering and is
		// left false.
		selfMixed := false
		if !c.Uncertain.skipsM() {
			for _, edge := range edges {
				if edge.G1 == guid || edge.G2 == guid {
					if e.comparer.IsMixed(edge.MixtureP) {
						selfMixed = true
						break
					}
				}
			}
		}
		if c.OnInsert(guid, selfMixed, edges) && e.metrics != nil {
			e.metrics.observeClusterAdvance(c.Name)
		}
		if err := e.saveClusterSnapshot(ctx, c); err != nil {
			return result, err
		}
	}

	return result, nil
}

// Exists reports whether guid has been inserted.
func (e *Engine) Exists(ctx context.Context, guid string) (bool, error) {
	return e.store.Exists(ctx, guid)
}

// Annotation returns the metadata bag stored with guid.
func (e *Engine) Annotation(ctx context.Context, guid string) (map[string]any, error) {
	return e.store.Annotation(ctx, guid)
}

// Sequence reconstructs the masked input string for guid.
func (e *Engine) Sequence(ctx context.Context, guid string) (string, error) {
	return e.store.Sequence(ctx, guid)
}

// NeighboursWithin returns edges incident on guid with snv <= threshold
// and partner quality >= qualityCutoff, rendered per format.
func (e *Engine) NeighboursWithin(ctx context.Context, guid string, threshold int, qualityCutoff float64, format NeighbourFormat) []NeighbourRecord {
	qualityOf := func(g string) (float64, bool) {
		q, err := e.store.Quality(ctx, g)
		return q, err == nil
	}
	metaOf := func(g string) (map[string]any, bool) {
		m, err := e.store.Annotation(ctx, g)
		return m, err == nil
	}
	return e.matrix.Neighbours(guid, threshold, qualityCutoff, format, qualityOf, metaOf)
}

// Guids returns every stored guid, ascending.
func (e *Engine) Guids(ctx context.Context) ([]string, error) {
	return e.store.AllGuids(ctx)
}

// GuidsBeginningWith returns every guid with the given prefix, capped
// at 30 results; exceeding the cap returns an empty slice rather than a
// truncated one, per spec.md §6.2.
func (e *Engine) GuidsBeginningWith(ctx context.Context, prefix string) ([]string, error) {
	all, err := e.store.AllGuids(ctx)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, g := range all {
		if strings.HasPrefix(g, prefix) {
			matches = append(matches, g)
			if len(matches) > 30 {
				return []string{}, nil
			}
		}
	}
	return matches, nil
}

// GuidsWithQualityOver returns every guid whose stored quality exceeds
// cutoff.
func (e *Engine) GuidsWithQualityOver(ctx context.Context, cutoff float64) ([]string, error) {
	all, err := e.store.AllGuids(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, g := range all {
		q, err := e.store.Quality(ctx, g)
		if err != nil {
			continue
		}
		if q > cutoff {
			out = append(out, g)
		}
	}
	return out, nil
}

// Clusters returns algo's clusters, keyed by stable cluster id.
func (e *Engine) Clusters(algo string) (map[int][]string, error) {
	c, err := e.clusterer(algo)
	if err != nil {
		return nil, err
	}
	return c.Clusters(), nil
}

// Guids2Clusters returns, for algo, every guid whose membership changed
// strictly after afterChangeID, mapped to its current cluster id.
func (e *Engine) Guids2Clusters(algo string, afterChangeID int) (map[string]int, error) {
	c, err := e.clusterer(algo)
	if err != nil {
		return nil, err
	}
	return c.GuidsToClusters(afterChangeID), nil
}

// ClusterIDs returns every known cluster id for algo.
func (e *Engine) ClusterIDs(algo string) ([]int, error) {
	c, err := e.clusterer(algo)
	if err != nil {
		return nil, err
	}
	return c.ClusterIDs(), nil
}

// Network returns the member guids of clusterID under algo, plus every
// recorded edge between two of those members.
func (e *Engine) Network(algo string, clusterID int) ([]string, []Edge, error) {
	c, err := e.clusterer(algo)
	if err != nil {
		return nil, nil, err
	}
	members := c.Network(clusterID)
	var edges []Edge
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if edge, ok := e.matrix.Edge(members[i], members[j]); ok {
				edges = append(edges, edge)
			}
		}
	}
	return members, edges, nil
}

// MultipleAlignment builds an MSA over guids.
func (e *Engine) MultipleAlignment(ctx context.Context, guids []string, withMixture bool) (MultipleAlignment, error) {
	var seqs []*CompressedSequence
	var releases []func()
	defer func() {
		for _, r := range releases {
			r()
		}
	}()
	for _, g := range guids {
		cs, release, err := e.store.Get(ctx, g)
		if err != nil {
			return MultipleAlignment{}, err
		}
		seqs = append(seqs, cs)
		releases = append(releases, release)
	}
	expectedP1, hasP1 := e.estimateExpectedN(ctx)
	return e.msa.Build(seqs, e.codec.reference, withMixture, expectedP1, hasP1), nil
}

// estimateExpectedN samples up to 30 stored guids' own N+M rate as the
// population-wide expectation for MSA Test 1, per the donor's
// estimate_expected_N.
func (e *Engine) estimateExpectedN(ctx context.Context) (float64, bool) {
	all, err := e.store.AllGuids(ctx)
	if err != nil || len(all) == 0 {
		return 0, false
	}
	sample := all
	if len(sample) > 30 {
		sample = sample[:30]
	}
	total := 0.0
	n := 0
	for _, g := range sample {
		cs, release, err := e.store.Get(ctx, g)
		if err != nil {
			continue
		}
		total += float64(len(cs.NPos)+len(cs.MPos)) / float64(e.mask.GenomeLength())
		release()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// ServerMemoryUsage reports the working-set's current size as a rough
// proxy for the external memory sampler named out-of-scope in spec.md
// §1; nrows is accepted for interface parity but unused, since this
// core does not sample OS-level memory itself.
func (e *Engine) ServerMemoryUsage(nrows int) map[string]int {
	return map[string]int{"working_set_size": e.store.ws.len()}
}

// SNPCeiling returns the configured maximum stored SNV distance.
func (e *Engine) SNPCeiling() int { return e.cfg.SNVCeiling }

// NucleotidesExcluded returns the masked positions, ascending.
func (e *Engine) NucleotidesExcluded() []int {
	out := make([]int, 0, e.mask.Len())
	for p := 0; p < e.mask.GenomeLength(); p++ {
		if e.mask.Contains(p) {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Reset drops every stored sequence, edge, and cluster. Only reachable
// when the engine was configured with debug_mode.
func (e *Engine) Reset(ctx context.Context) error {
	if !e.cfg.DebugMode {
		return newErr("Reset", KindInvalidInput, "", fmt.Errorf("reset requires debug_mode"))
	}
	if err := e.writerGate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.writerGate.Release(1)

	if err := e.store.Reset(ctx); err != nil {
		return err
	}
	if err := e.matrix.Reset(ctx); err != nil {
		return err
	}
	for i, c := range e.clusterers {
		if err := e.persistence.Delete(ctx, clusterKey(c.Name)); err != nil {
			return newErr("Reset", KindPersistenceFailure, c.Name, err)
		}
		e.clusterers[i] = NewClusterer(c.Name, c.Threshold, c.Uncertain, c.MixturePolicy)
	}
	return nil
}

// RaiseError deliberately returns an Internal error, for exercising
// error-handling paths in the REST layer. Only reachable in debug_mode.
func (e *Engine) RaiseError() error {
	if !e.cfg.DebugMode {
		return newErr("RaiseError", KindInvalidInput, "", fmt.Errorf("raise_error requires debug_mode"))
	}
	return newErr("RaiseError", KindInternal, "", fmt.Errorf("deliberate error raised by debug endpoint"))
}
