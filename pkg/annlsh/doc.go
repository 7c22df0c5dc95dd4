// Package annlsh implements an approximate nearest-neighbour index over
// fixed-length embeddings: a multi-table random-projection locality
// sensitive hash combined with an L2-magnitude secondary bucket and a
// bounded top-k selector.
//
// Index orchestrates the pieces. It owns a Projector and a Store handle
// exclusively; callers own the VectorIds and Embeddings they pass in, and
// supply a Mapper at query time to resolve a candidate id back to its full
// embedding.
package annlsh
