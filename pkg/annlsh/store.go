package annlsh

import (
	"context"
	"errors"
)

// ErrMapperMiss is the sentinel a Mapper implementation returns (wrapped or
// bare, checked via errors.Is) to signal that an id is not known to it.
// Any other error from Resolve is treated as a mapper failure.
var ErrMapperMiss = errors.New("annlsh: mapper: id not found")

// BucketEntry is a single (id, code, magnitude key) fact recorded by add.
// An id produces one entry per distinct HashCode across tables, all
// sharing the same MagnitudeKey.
type BucketEntry struct {
	ID        VectorId
	Code      HashCode
	Magnitude MagnitudeKey
}

// Store is the durable mapping from (HashCode, MagnitudeKey) to the set of
// vector ids ever recorded there, plus the embedded persistence of
// projector parameters and matrices. Two backends — filesystem and
// relational — implement this one contract; Index is written against the
// interface only.
type Store interface {
	// Put idempotently records that id produced code under magnitude key
	// mag. Calling it twice with the same triple must not create
	// duplicate read-time results and must not fail.
	Put(ctx context.Context, id VectorId, code HashCode, mag MagnitudeKey) error

	// IdsIn returns every id with at least one entry whose code is in
	// codes and whose magnitude key is in mags.
	IdsIn(ctx context.Context, codes []HashCode, mags []MagnitudeKey) ([]VectorId, error)

	// IsEmpty reports whether any entry has ever been written. Init uses
	// this to refuse re-initialising a populated store.
	IsEmpty(ctx context.Context) (bool, error)

	// WriteParams performs the atomic first-write of the projector
	// parameters and matrices. Refusing to re-initialise a populated store
	// (AlreadyInitialised) is the caller's (Index.Init's) responsibility;
	// WriteParams itself simply writes, assuming the caller already checked
	// IsEmpty.
	WriteParams(ctx context.Context, params ProjectorParams, matrices [][]float64) error

	// ReadParams loads the persisted parameters and matrices. The second
	// return value is false if no params have ever been written.
	ReadParams(ctx context.Context) (ProjectorParams, [][]float64, bool, error)

	// Close releases any resources (open files, database handles) held by
	// the store.
	Close() error
}

// StoreStats summarises bucket occupancy, for operational visibility. It
// is not part of spec.md's core contract; it is an optional capability a
// backend may implement to support Index.Stats.
type StoreStats struct {
	VectorCount     int
	BucketCount     int
	AverageBucket   float64
	MaxBucket       int
}

// StatsCapable is implemented by a Store backend that can report
// StoreStats. Index.Stats type-asserts its Store against this interface
// and returns the zero value, ok=false, if the backend does not implement
// it.
type StatsCapable interface {
	Stats(ctx context.Context) (StoreStats, error)
}

// Mapper resolves a VectorId to the full embedding it was indexed with.
// Modeled as a small interface (rather than a bare function value) so the
// "not found" case is a distinguishable, typed outcome rather than an
// ambiguous nil.
type Mapper interface {
	// Resolve returns the embedding for id, or ErrMapperMiss (via
	// errors.Is) if id is not known to the mapper. Any other error is
	// treated as a mapper failure.
	Resolve(ctx context.Context, id VectorId) (Embedding, error)
}

// MapperFunc adapts a plain function to the Mapper interface, for callers
// whose resolution logic is simple enough not to need its own type.
type MapperFunc func(ctx context.Context, id VectorId) (Embedding, error)

func (f MapperFunc) Resolve(ctx context.Context, id VectorId) (Embedding, error) {
	return f(ctx, id)
}
