package snvindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// localRefDeltaThreshold is the minimum saving (in positions) EncodeVsLocal
// must achieve over storing a sequence single-delta before CompressedStore
// bothers with double-delta at all, per spec.md §4.B's local-reference
// selection policy.
const localRefDeltaThreshold = 4

// maxAnchors bounds the candidate pool EncodeVsLocal compares against
// when choosing a local reference, per spec.md §4.B ("a bounded sample").
const maxAnchors = 64

// CompressedStore owns every compressed sequence, persists it through a
// PersistencePort, and caches expanded forms in an in-RAM working set
// with LRU eviction, per spec.md §4.C.
type CompressedStore struct {
	mu          sync.RWMutex
	codec       *ReferenceCodec
	persistence PersistencePort
	ws          *workingSet
	anchors     []string
	metrics     *Metrics
}

// NewCompressedStore wires a codec and a PersistencePort together. The
// working set's soft capacity is workingSetCapacity sequences; <= 0
// disables eviction (the whole store lives in RAM).
func NewCompressedStore(codec *ReferenceCodec, persistence PersistencePort, workingSetCapacity int, metrics *Metrics) *CompressedStore {
	return &CompressedStore{
		codec:       codec,
		persistence: persistence,
		ws:          newWorkingSet(workingSetCapacity),
		metrics:     metrics,
	}
}

// Insert compresses masked against the reference, persists it (possibly
// as a double-delta against a locally chosen reference), and adds it to
// the working set. Duplicate guids are rejected.
func (s *CompressedStore) Insert(ctx context.Context, guid string, masked []byte, meta map[string]any) (*CompressedSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, _, err := s.persistence.Get(ctx, seqKey(guid)); err != nil {
		return nil, newErr("Insert", KindPersistenceFailure, guid, err)
	} else if existing != nil {
		return nil, newErr("Insert", KindInvalidInput, guid, fmt.Errorf("guid already exists"))
	}

	cs, err := s.codec.EncodeVsReference(guid, masked)
	if err != nil {
		return nil, err
	}
	cs.Meta = meta

	persistForm := cs
	if !cs.Invalid {
		if localRef := s.selectLocalReference(ctx, cs); localRef != nil {
			persistForm, err = s.codec.EncodeVsLocal(cs, localRef)
			if err != nil {
				return nil, newErr("Insert", KindInternal, guid, err)
			}
		}
	}

	blob, err := encodeSequenceRecord(persistForm)
	if err != nil {
		return nil, newErr("Insert", KindInternal, guid, err)
	}
	metaBlob, err := encodeMetaRecord(meta)
	if err != nil {
		return nil, newErr("Insert", KindInternal, guid, err)
	}
	ops := []BatchOp{
		{Key: seqKey(guid), Value: blob},
		{Key: metaKey(guid), Value: metaBlob},
	}
	if err := s.persistence.AtomicBatch(ctx, ops); err != nil {
		return nil, newErr("Insert", KindPersistenceFailure, guid, err)
	}

	s.ws.put(guid, cs)
	s.ws.evictUnused()
	s.addAnchor(guid)
	if s.metrics != nil {
		s.metrics.observeInsert(cs.Invalid)
		s.metrics.setWorkingSetSize(s.ws.len())
	}
	return cs, nil
}

func (s *CompressedStore) addAnchor(guid string) {
	s.anchors = append(s.anchors, guid)
	if len(s.anchors) > maxAnchors {
		s.anchors = s.anchors[len(s.anchors)-maxAnchors:]
	}
}

// selectLocalReference picks the anchor minimising |cs ⊖ anchor| among
// the bounded anchor sample, returning nil if no candidate beats
// localRefDeltaThreshold.
func (s *CompressedStore) selectLocalReference(ctx context.Context, cs *CompressedSequence) *CompressedSequence {
	best := -1
	var bestCandidate *CompressedSequence
	rawCost := rawSize(cs)
	for _, guid := range s.anchors {
		candidate, ok := s.ws.borrow(guid)
		if !ok {
			continue
		}
		if candidate.LocalRef != "" {
			s.ws.release(guid)
			continue
		}
		d := deltaSize(cs, candidate)
		s.ws.release(guid)
		if best == -1 || d < best {
			best = d
			bestCandidate = candidate
		}
	}
	if bestCandidate == nil {
		return nil
	}
	if rawCost-best < localRefDeltaThreshold {
		return nil
	}
	return bestCandidate
}

// Get borrows the expanded sequence for guid, loading it from
// persistence (re-expanding a double-delta form) on a working-set miss.
// The caller must call release() exactly once.
func (s *CompressedStore) Get(ctx context.Context, guid string) (*CompressedSequence, func(), error) {
	s.mu.Lock()
	if cs, ok := s.ws.borrow(guid); ok {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.observeWorkingSetHit()
		}
		return cs, func() {
			s.mu.Lock()
			s.ws.release(guid)
			s.mu.Unlock()
		}, nil
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.observeWorkingSetMiss()
	}
	cs, err := s.load(ctx, guid)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.ws.put(guid, cs)
	borrowed, _ := s.ws.borrow(guid)
	s.ws.evictUnused()
	if s.metrics != nil {
		s.metrics.setWorkingSetSize(s.ws.len())
	}
	s.mu.Unlock()

	return borrowed, func() {
		s.mu.Lock()
		s.ws.release(guid)
		s.mu.Unlock()
	}, nil
}

// load reads a sequence from persistence, re-expanding at most one
// level of double-delta indirection, per spec.md §9(c).
func (s *CompressedStore) load(ctx context.Context, guid string) (*CompressedSequence, error) {
	blob, ok, err := s.persistence.Get(ctx, seqKey(guid))
	if err != nil {
		return nil, newErr("Get", KindPersistenceFailure, guid, err)
	}
	if !ok {
		return nil, newErr("Get", KindNotFound, guid, nil)
	}
	cs, err := decodeSequenceRecord(blob)
	if err != nil {
		return nil, newErr("Get", KindInternal, guid, err)
	}
	if cs.LocalRef == "" {
		return cs, nil
	}
	refBlob, ok, err := s.persistence.Get(ctx, seqKey(cs.LocalRef))
	if err != nil {
		return nil, newErr("Get", KindPersistenceFailure, guid, err)
	}
	if !ok {
		return nil, newErr("Get", KindInternal, guid, fmt.Errorf("local reference %s missing", cs.LocalRef))
	}
	localRef, err := decodeSequenceRecord(refBlob)
	if err != nil {
		return nil, newErr("Get", KindInternal, guid, err)
	}
	return s.codec.ExpandLocal(cs, localRef)
}

// Exists reports whether guid has been inserted.
func (s *CompressedStore) Exists(ctx context.Context, guid string) (bool, error) {
	s.mu.RLock()
	if s.ws.has(guid) {
		s.mu.RUnlock()
		return true, nil
	}
	s.mu.RUnlock()
	_, ok, err := s.persistence.Get(ctx, seqKey(guid))
	if err != nil {
		return false, newErr("Exists", KindPersistenceFailure, guid, err)
	}
	return ok, nil
}

// AllGuids returns every stored guid in ascending lexicographic order.
func (s *CompressedStore) AllGuids(ctx context.Context) ([]string, error) {
	it, err := s.persistence.Scan(ctx, "seq/")
	if err != nil {
		return nil, newErr("AllGuids", KindPersistenceFailure, "", err)
	}
	defer it.Close()
	var guids []string
	for it.Next() {
		guids = append(guids, strings.TrimPrefix(it.Key(), "seq/"))
	}
	if err := it.Err(); err != nil {
		return nil, newErr("AllGuids", KindPersistenceFailure, "", err)
	}
	sort.Strings(guids)
	return guids, nil
}

// Quality returns the stored quality score for guid.
func (s *CompressedStore) Quality(ctx context.Context, guid string) (float64, error) {
	cs, release, err := s.Get(ctx, guid)
	if err != nil {
		return 0, err
	}
	defer release()
	return cs.Quality, nil
}

// Sequence reconstructs the masked string for guid.
func (s *CompressedStore) Sequence(ctx context.Context, guid string) (string, error) {
	cs, release, err := s.Get(ctx, guid)
	if err != nil {
		return "", err
	}
	defer release()
	return s.codec.Decompress(cs)
}

// Annotation returns the metadata bag stored alongside guid, without
// rehydrating its full compressed form.
func (s *CompressedStore) Annotation(ctx context.Context, guid string) (map[string]any, error) {
	blob, ok, err := s.persistence.Get(ctx, metaKey(guid))
	if err != nil {
		return nil, newErr("Annotation", KindPersistenceFailure, guid, err)
	}
	if !ok {
		return nil, newErr("Annotation", KindNotFound, guid, nil)
	}
	return decodeMetaRecord(blob)
}

// Reset drops every stored sequence and clears the working set. Only
// the caller (Engine, in debug mode) decides whether this is reachable.
func (s *CompressedStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prefix := range []string{"seq/", "meta/"} {
		it, err := s.persistence.Scan(ctx, prefix)
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
			if err := s.persistence.AtomicBatch(ctx, ops); err != nil {
				return newErr("Reset", KindPersistenceFailure, "", err)
			}
		}
	}

	s.ws = newWorkingSet(s.ws.capacity)
	s.anchors = nil
	return nil
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
