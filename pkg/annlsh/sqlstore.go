package annlsh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// SQLStore is the Backend B implementation of Store, against two tables:
//
//	findex(vec_id TEXT, hash_bucket TEXT, euc_bucket TEXT,
//	       PRIMARY KEY(vec_id, hash_bucket, euc_bucket))
//	htables(htno INT, i INT, j INT, val REAL, PRIMARY KEY(htno, i, j))
//
// A duplicate (vec_id, hash_bucket, euc_bucket) triple violates the primary
// key; SQLStore treats that specific violation as success, giving Put the
// same idempotence the filesystem backend gets from append-and-dedup-on-
// read.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens a sqlite-backed store at dsn. An empty dsn opens a
// private in-memory database, useful for tests. The schema is created if
// absent; WAL mode is enabled for concurrent readers.
func NewSQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, StorageFailureErr(fmt.Sprintf("open sqlite store %s", dsn), err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, StorageFailureErr(fmt.Sprintf("apply %q", p), err)
		}
	}

	s := &SQLStore{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema() error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS findex (
			vec_id TEXT NOT NULL,
			hash_bucket TEXT NOT NULL,
			euc_bucket TEXT NOT NULL,
			PRIMARY KEY (vec_id, hash_bucket, euc_bucket)
		)`,
		`CREATE INDEX IF NOT EXISTS findex_lookup ON findex(hash_bucket, euc_bucket)`,
		`CREATE TABLE IF NOT EXISTS htables (
			htno INTEGER NOT NULL,
			i INTEGER NOT NULL,
			j INTEGER NOT NULL,
			val REAL NOT NULL,
			PRIMARY KEY (htno, i, j)
		)`,
		`CREATE TABLE IF NOT EXISTS params (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			num_tables INTEGER NOT NULL,
			hash_size INTEGER NOT NULL,
			embedding_size INTEGER NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(stmt); err != nil {
			return StorageFailureErr(fmt.Sprintf("apply schema statement %q", stmt), err)
		}
	}
	return nil
}

// IsEmpty reports whether the params row is absent. An index whose params
// were written but which has never seen an add is considered non-empty by
// the filesystem backend (its directory tree exists), and the same holds
// here because Init writes the params row. Rows in findex or htables are
// not counted.
func (s *SQLStore) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM params").Scan(&count); err != nil {
		return false, StorageFailureErr("count params rows", err)
	}
	return count == 0, nil
}

// WriteParams writes the (T, H, D) triple and every matrix entry inside a
// single transaction, so a crash mid-write leaves either the old state (no
// rows) or the complete new state, never a partial one.
func (s *SQLStore) WriteParams(ctx context.Context, params ProjectorParams, matrices [][]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StorageFailureErr("begin params transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO params (id, num_tables, hash_size, embedding_size) VALUES (0, ?, ?, ?)`,
		params.NumTables, params.HashSize, params.Dimension,
	); err != nil {
		return StorageFailureErr("insert params row", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO htables (htno, i, j, val) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return StorageFailureErr("prepare htables insert", err)
	}
	defer stmt.Close()

	for t, table := range matrices {
		for idx, val := range table {
			i := idx / params.HashSize
			j := idx % params.HashSize
			if _, err := stmt.ExecContext(ctx, t, i, j, val); err != nil {
				return StorageFailureErr(fmt.Sprintf("insert htables row (htno=%d,i=%d,j=%d)", t, i, j), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return StorageFailureErr("commit params transaction", err)
	}
	return nil
}

// ReadParams loads the (T, H, D) triple and reconstructs the T row-major
// matrices from htables, correctly enumerating every (i, j) pair — unlike
// the buggy re-persistence branch this design deliberately does not carry
// forward (see DESIGN.md).
func (s *SQLStore) ReadParams(ctx context.Context) (ProjectorParams, [][]float64, bool, error) {
	var params ProjectorParams
	err := s.db.QueryRowContext(ctx, `SELECT num_tables, hash_size, embedding_size FROM params WHERE id = 0`).
		Scan(&params.NumTables, &params.HashSize, &params.Dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return ProjectorParams{}, nil, false, nil
	}
	if err != nil {
		return ProjectorParams{}, nil, false, StorageFailureErr("read params row", err)
	}

	matrices := make([][]float64, params.NumTables)
	for t := range matrices {
		matrices[t] = make([]float64, params.Dimension*params.HashSize)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT htno, i, j, val FROM htables ORDER BY htno, i, j`)
	if err != nil {
		return ProjectorParams{}, nil, false, StorageFailureErr("query htables", err)
	}
	defer rows.Close()

	for rows.Next() {
		var htno, i, j int
		var val float64
		if err := rows.Scan(&htno, &i, &j, &val); err != nil {
			return ProjectorParams{}, nil, false, StorageFailureErr("scan htables row", err)
		}
		if htno < 0 || htno >= len(matrices) {
			return ProjectorParams{}, nil, false, CorruptParamsErr(fmt.Sprintf("htables row references unknown table %d", htno), nil)
		}
		idx := i*params.HashSize + j
		if idx < 0 || idx >= len(matrices[htno]) {
			return ProjectorParams{}, nil, false, CorruptParamsErr(fmt.Sprintf("htables row (i=%d,j=%d) out of range for table %d", i, j, htno), nil)
		}
		matrices[htno][idx] = val
	}
	if err := rows.Err(); err != nil {
		return ProjectorParams{}, nil, false, StorageFailureErr("iterate htables", err)
	}
	return params, matrices, true, nil
}

// Put inserts (id, code, mag) into findex. A primary-key violation (the
// exact triple already exists) is treated as success, giving put its
// required idempotence; any other insert failure propagates.
func (s *SQLStore) Put(ctx context.Context, id VectorId, code HashCode, mag MagnitudeKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO findex (vec_id, hash_bucket, euc_bucket) VALUES (?, ?, ?)`,
		string(id), fmt.Sprintf("%d", code), string(mag),
	)
	if err == nil {
		return nil
	}
	if isUniqueConstraintViolation(err) {
		return nil
	}
	return StorageFailureErr("insert findex row", err)
}

// IdsIn returns the union of vec_ids whose hash_bucket is in codes and
// whose euc_bucket is in mags, as a single filtered SELECT.
func (s *SQLStore) IdsIn(ctx context.Context, codes []HashCode, mags []MagnitudeKey) ([]VectorId, error) {
	if len(codes) == 0 || len(mags) == 0 {
		return nil, nil
	}

	codePlaceholders := make([]string, len(codes))
	args := make([]any, 0, len(codes)+len(mags))
	for i, c := range codes {
		codePlaceholders[i] = "?"
		args = append(args, fmt.Sprintf("%d", c))
	}
	magPlaceholders := make([]string, len(mags))
	for i, m := range mags {
		magPlaceholders[i] = "?"
		args = append(args, string(m))
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT vec_id FROM findex WHERE hash_bucket IN (%s) AND euc_bucket IN (%s)`,
		strings.Join(codePlaceholders, ","), strings.Join(magPlaceholders, ","),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, StorageFailureErr("query findex", err)
	}
	defer rows.Close()

	var out []VectorId
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, StorageFailureErr("scan findex row", err)
		}
		out = append(out, VectorId(id))
	}
	if err := rows.Err(); err != nil {
		return nil, StorageFailureErr("iterate findex rows", err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Stats aggregates findex by (hash_bucket, euc_bucket) to report occupancy.
// Implements StatsCapable.
func (s *SQLStore) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT vec_id) FROM findex`).Scan(&stats.VectorCount); err != nil {
		return StoreStats{}, StorageFailureErr("count distinct vec_id", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT COUNT(*) FROM findex GROUP BY hash_bucket, euc_bucket`)
	if err != nil {
		return StoreStats{}, StorageFailureErr("group findex by bucket", err)
	}
	defer rows.Close()

	var totalEntries int
	for rows.Next() {
		var bucketSize int
		if err := rows.Scan(&bucketSize); err != nil {
			return StoreStats{}, StorageFailureErr("scan bucket size", err)
		}
		stats.BucketCount++
		totalEntries += bucketSize
		if bucketSize > stats.MaxBucket {
			stats.MaxBucket = bucketSize
		}
	}
	if err := rows.Err(); err != nil {
		return StoreStats{}, StorageFailureErr("iterate bucket groups", err)
	}

	if stats.BucketCount > 0 {
		stats.AverageBucket = float64(totalEntries) / float64(stats.BucketCount)
	}
	return stats, nil
}

// isUniqueConstraintViolation reports whether err is a sqlite primary-key
// or unique-constraint failure. modernc.org/sqlite does not export a typed
// error for this, so the message is matched the way its own test suite
// does.
func isUniqueConstraintViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
