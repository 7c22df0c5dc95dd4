package annlsh

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// HashCode is an integer in [0, 2^H), the packed sign bits of one
// projection matrix applied to one embedding. Bit 0 (the most significant
// bit of the code) corresponds to the matrix's first column.
type HashCode uint32

// Embedding is a fixed-length real vector. D is fixed at index creation.
type Embedding []float64

// VectorId is an opaque, caller-assigned identifier. The core never
// parses it.
type VectorId string

// projectionMatrix is one D x H table of i.i.d. standard-normal entries,
// stored row-major: entry (row, col) lives at row*H + col.
type projectionMatrix struct {
	rows int // D
	cols int // H
	data []float64
}

func newProjectionMatrix(d, h int) *projectionMatrix {
	return &projectionMatrix{rows: d, cols: h, data: make([]float64, d*h)}
}

func (m *projectionMatrix) at(row, col int) float64 {
	return m.data[row*m.cols+col]
}

func (m *projectionMatrix) set(row, col int, v float64) {
	m.data[row*m.cols+col] = v
}

// Projector holds T immutable D x H random projection matrices and hashes
// embeddings into one HashCode per table. The same matrices, loaded once at
// init/open time, must be used for every subsequent add and query.
type Projector struct {
	tables    []*projectionMatrix
	numTables int // T
	bits      int // H
	dim       int // D
}

// ProjectorParams is the persisted (T, H, D) triple.
type ProjectorParams struct {
	NumTables int `json:"num_tables"`
	HashSize  int `json:"hash_size"`
	Dimension int `json:"embedding_size"`
}

// NewProjectorFromMatrices builds a Projector directly from already-loaded
// matrices, as done when opening an existing index.
func NewProjectorFromMatrices(params ProjectorParams, flat [][]float64) (*Projector, error) {
	if len(flat) != params.NumTables {
		return nil, fmt.Errorf("annlsh: expected %d projection matrices, got %d", params.NumTables, len(flat))
	}
	tables := make([]*projectionMatrix, params.NumTables)
	for t, rowMajor := range flat {
		if len(rowMajor) != params.Dimension*params.HashSize {
			return nil, fmt.Errorf("annlsh: table %d has %d entries, want %d", t, len(rowMajor), params.Dimension*params.HashSize)
		}
		m := newProjectionMatrix(params.Dimension, params.HashSize)
		copy(m.data, rowMajor)
		tables[t] = m
	}
	return &Projector{tables: tables, numTables: params.NumTables, bits: params.HashSize, dim: params.Dimension}, nil
}

// SampleProjector draws fresh i.i.d. standard-normal matrices using rng. A
// caller wanting deterministic matrices (tests, S1) should pass a
// math/rand/v2 source seeded for the occasion; production callers pass one
// seeded from a ChaCha8 generator.
func SampleProjector(params ProjectorParams, rng *rand.Rand) *Projector {
	tables := make([]*projectionMatrix, params.NumTables)
	for t := 0; t < params.NumTables; t++ {
		m := newProjectionMatrix(params.Dimension, params.HashSize)
		for i := 0; i < params.Dimension; i++ {
			for j := 0; j < params.HashSize; j++ {
				m.set(i, j, rng.NormFloat64())
			}
		}
		tables[t] = m
	}
	return &Projector{tables: tables, numTables: params.NumTables, bits: params.HashSize, dim: params.Dimension}
}

// Params returns the (T, H, D) triple this projector was built with.
func (p *Projector) Params() ProjectorParams {
	return ProjectorParams{NumTables: p.numTables, HashSize: p.bits, Dimension: p.dim}
}

// Matrices returns the raw row-major matrix contents, one slice per table,
// for persistence by an IndexStore.
func (p *Projector) Matrices() [][]float64 {
	out := make([][]float64, len(p.tables))
	for i, m := range p.tables {
		cp := make([]float64, len(m.data))
		copy(cp, m.data)
		out[i] = cp
	}
	return out
}

// Hash computes one HashCode per table for a single embedding. Entries
// equal to exactly zero produce bit 0, per the documented numeric
// semantics: only strictly positive projections set a bit.
func (p *Projector) Hash(v Embedding) ([]HashCode, error) {
	if len(v) != p.dim {
		return nil, fmt.Errorf("annlsh: embedding has dimension %d, projector expects %d", len(v), p.dim)
	}
	codes := make([]HashCode, p.numTables)
	for t, m := range p.tables {
		codes[t] = hashOne(v, m)
	}
	return codes, nil
}

// HashParallel is equivalent to Hash but computes each table's code on its
// own goroutine via an errgroup. Worthwhile once T and D are large enough
// that the per-table dot products dominate scheduling overhead.
func (p *Projector) HashParallel(v Embedding) ([]HashCode, error) {
	if len(v) != p.dim {
		return nil, fmt.Errorf("annlsh: embedding has dimension %d, projector expects %d", len(v), p.dim)
	}
	codes := make([]HashCode, p.numTables)
	var g errgroup.Group
	for t, m := range p.tables {
		t, m := t, m
		g.Go(func() error {
			codes[t] = hashOne(v, m)
			return nil
		})
	}
	_ = g.Wait() // hashOne cannot fail; dimension was already validated above
	return codes, nil
}

// HashBatch hashes N embeddings at once and returns an N x T array, with
// row n equal to Hash(vectors[n]).
func (p *Projector) HashBatch(vectors []Embedding) ([][]HashCode, error) {
	out := make([][]HashCode, len(vectors))
	for n, v := range vectors {
		codes, err := p.Hash(v)
		if err != nil {
			return nil, fmt.Errorf("annlsh: batch row %d: %w", n, err)
		}
		out[n] = codes
	}
	return out, nil
}

// hashOne packs the sign bits of v . M most-significant-first: the
// projection's first column becomes the code's top bit.
func hashOne(v Embedding, m *projectionMatrix) HashCode {
	var code HashCode
	for j := 0; j < m.cols; j++ {
		var dot float64
		for i := 0; i < m.rows; i++ {
			dot += v[i] * m.at(i, j)
		}
		bit := HashCode(0)
		if dot > 0 {
			bit = 1
		}
		code = (code << 1) | bit
	}
	return code
}

// distinctCodes collapses duplicate codes across tables into a set,
// preserving the stable iteration order of first appearance.
func distinctCodes(codes []HashCode) []HashCode {
	seen := make(map[HashCode]struct{}, len(codes))
	out := make([]HashCode, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// euclideanDistance computes the L2 distance between two equal-length
// embeddings.
func euclideanDistance(a, b Embedding) float64 {
	var sumSq float64
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
