package annlsh

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// state is the lifecycle stage of an Index handle.
type state int

const (
	stateFresh state = iota
	stateInitialised
	stateOpened
)

// defaultMagnitudeRadius is the number of magnitude buckets searched on
// either side of a query's own bucket when no radius override is given to
// NewIndex, matching the reference deployment's default.
const defaultMagnitudeRadius = 2

// IndexOptions configures an Index beyond the bare (T, H, D) triple.
type IndexOptions struct {
	// MagnitudeRadius overrides defaultMagnitudeRadius when > 0.
	MagnitudeRadius int

	// MapperCacheSize bounds the LRU cache Index keeps in front of the
	// caller-supplied Mapper. Zero disables caching.
	MapperCacheSize int

	// Logger receives diagnostic and skip-candidate messages. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger
}

// Index orchestrates Projector, MagnitudeBucket and Store to answer
// add/query against a single logical vector index. An Index owns its
// Projector and its Store handle exclusively; callers own the VectorIds
// and Embeddings they pass in.
type Index struct {
	mu sync.RWMutex

	store     Store
	projector *Projector
	magnitude *MagnitudeBucket
	radius    int
	logger    *slog.Logger

	mapperCache *lru.Cache[VectorId, Embedding]

	state state

	// mapperFailures accumulates the diagnostic count of locally-recovered
	// per-candidate mapper errors across all queries served by this
	// handle (§7: "accumulate count for diagnostics").
	mapperFailures atomic.Int64
}

// NewIndex constructs an Index bound to store. The returned handle starts
// in state Fresh: callers must call Init (against an empty store) or Open
// (against a previously-initialised one) before Add/Query will succeed.
func NewIndex(store Store, opts IndexOptions) (*Index, error) {
	radius := opts.MagnitudeRadius
	if radius <= 0 {
		radius = defaultMagnitudeRadius
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idx := &Index{
		store:     store,
		magnitude: NewMagnitudeBucket(radius),
		radius:    radius,
		logger:    logger,
		state:     stateFresh,
	}

	if opts.MapperCacheSize > 0 {
		cache, err := lru.New[VectorId, Embedding](opts.MapperCacheSize)
		if err != nil {
			return nil, fmt.Errorf("annlsh: create mapper cache: %w", err)
		}
		idx.mapperCache = cache
	}
	return idx, nil
}

// Init samples fresh projection matrices for params and persists them to
// the store, failing with AlreadyInitialised if the store already holds
// anything. rng defaults to a ChaCha8-seeded generator when nil.
func (idx *Index) Init(ctx context.Context, params ProjectorParams, rng *rand.Rand) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	empty, err := idx.store.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return alreadyInitialisedErr()
	}

	if rng == nil {
		rng = rand.New(rand.NewChaCha8(randSeed()))
	}
	projector := SampleProjector(params, rng)
	idx.logger.Debug("annlsh: sampled projection matrices",
		slog.Int("tables", params.NumTables), slog.Int("bits", params.HashSize), slog.Int("dimension", params.Dimension))

	if err := idx.store.WriteParams(ctx, params, projector.Matrices()); err != nil {
		return err
	}

	idx.projector = projector
	idx.state = stateInitialised
	return nil
}

// Open loads params and matrices previously written by Init, failing with
// Uninitialised if the store has never been initialised.
func (idx *Index) Open(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	params, matrices, found, err := idx.store.ReadParams(ctx)
	if err != nil {
		return err
	}
	if !found {
		return uninitialisedErr()
	}

	projector, err := NewProjectorFromMatrices(params, matrices)
	if err != nil {
		return CorruptParamsErr(err.Error(), err)
	}

	idx.projector = projector
	idx.state = stateOpened
	return nil
}

// Add indexes v under id. v must have length D; id must be non-empty.
// Every distinct hash code v produces across the T tables is recorded
// against the magnitude key of v's norm.
func (idx *Index) Add(ctx context.Context, id VectorId, v Embedding) error {
	idx.mu.RLock()
	projector := idx.projector
	ready := idx.state != stateFresh
	idx.mu.RUnlock()

	if !ready || projector == nil {
		return uninitialisedErr()
	}
	if id == "" {
		return validationErr("vector id must not be empty")
	}

	codes, err := projector.Hash(v)
	if err != nil {
		return dimensionMismatchErr(projector.dim, len(v))
	}

	magKey := idx.magnitude.KeyOf(v)
	for _, code := range distinctCodes(codes) {
		if err := idx.store.Put(ctx, id, code, magKey); err != nil {
			return err
		}
	}
	return nil
}

// QueryDiagnostics reports non-fatal outcomes accumulated while assembling
// a query's candidate set.
type QueryDiagnostics struct {
	CandidatesConsidered int
	MapperMisses         int
	MapperFailures       int
}

// Query returns up to k nearest neighbours of v in ascending distance
// order. k must be >= 1. mapper resolves each candidate id surfaced by the
// store to its full embedding; a candidate the mapper cannot resolve
// (ErrMapperMiss, or any other mapper error) is skipped and counted in the
// returned diagnostics rather than aborting the call.
func (idx *Index) Query(ctx context.Context, v Embedding, k int, mapper Mapper) ([]Result, QueryDiagnostics, error) {
	idx.mu.RLock()
	projector := idx.projector
	ready := idx.state != stateFresh
	idx.mu.RUnlock()

	if !ready || projector == nil {
		return nil, QueryDiagnostics{}, uninitialisedErr()
	}
	if k < 1 {
		return nil, QueryDiagnostics{}, validationErr("k must be >= 1, got %d", k)
	}

	codes, err := projector.Hash(v)
	if err != nil {
		return nil, QueryDiagnostics{}, dimensionMismatchErr(projector.dim, len(v))
	}
	distinctC := distinctCodes(codes)
	magKeys := idx.magnitude.Neighbours(idx.magnitude.KeyOf(v), idx.radius)

	candidates, err := idx.store.IdsIn(ctx, distinctC, magKeys)
	if err != nil {
		return nil, QueryDiagnostics{}, err
	}

	diag := QueryDiagnostics{CandidatesConsidered: len(candidates)}
	idx.logger.Debug("annlsh: query candidates", slog.Int("count", len(candidates)))
	topk := NewBoundedTopK(k)

	for _, id := range candidates {
		vec, err := idx.resolve(ctx, mapper, id)
		if err != nil {
			if idxErrIsMapperMiss(err) {
				diag.MapperMisses++
			} else {
				diag.MapperFailures++
			}
			idx.mapperFailures.Add(1)
			idx.logger.Debug("annlsh: skipping unresolved candidate",
				slog.String("id", string(id)), slog.String("error", err.Error()))
			continue
		}
		if len(vec) != len(v) {
			diag.MapperFailures++
			idx.mapperFailures.Add(1)
			idx.logger.Debug("annlsh: skipping candidate with mismatched dimension",
				slog.String("id", string(id)))
			continue
		}
		topk.Insert(id, euclideanDistance(v, vec))
	}

	return topk.DrainSorted(), diag, nil
}

// Stats reports store occupancy if the underlying Store implements
// StatsCapable. ok is false if it does not.
func (idx *Index) Stats(ctx context.Context) (stats StoreStats, ok bool, err error) {
	statsStore, ok := idx.store.(StatsCapable)
	if !ok {
		return StoreStats{}, false, nil
	}
	stats, err = statsStore.Stats(ctx)
	if err != nil {
		return StoreStats{}, false, err
	}
	return stats, true, nil
}

// MapperFailureCount reports the running total of locally-recovered
// per-candidate mapper errors across every query this handle has served.
func (idx *Index) MapperFailureCount() int64 {
	return idx.mapperFailures.Load()
}

// Close releases the underlying store's resources. The Index handle must
// not be used afterwards.
func (idx *Index) Close() error {
	return idx.store.Close()
}

func (idx *Index) resolve(ctx context.Context, mapper Mapper, id VectorId) (Embedding, error) {
	if idx.mapperCache != nil {
		if v, ok := idx.mapperCache.Get(id); ok {
			return v, nil
		}
	}
	v, err := mapper.Resolve(ctx, id)
	if err != nil {
		return nil, translateMapperErr(id, err)
	}
	if idx.mapperCache != nil {
		idx.mapperCache.Add(id, v)
	}
	return v, nil
}

func translateMapperErr(id VectorId, err error) error {
	if isMapperMissSentinel(err) {
		return mapperMissErr(id)
	}
	return mapperFailureErr(id, err)
}
