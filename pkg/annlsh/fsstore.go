package annlsh

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// FilesystemStore is the Backend A implementation of Store, laid out
// exactly as:
//
//	<root>/
//	  params.json
//	  hash_tables/ht<t>.bin     D x H float64, row-major
//	  buckets/<code>/<mag>/idx.txt
//	  global_idx.txt
//
// Appends to idx.txt and global_idx.txt are serialised through a file lock
// so the single intended writer never interleaves two short writes; reads
// never take the lock and tolerate a concurrently-appending writer.
type FilesystemStore struct {
	root string
	lock *flock.Flock
}

// NewFilesystemStore opens (but does not initialise) a filesystem-backed
// store rooted at dir. The directory is created if absent.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("annlsh: create store root %s: %w", dir, err)
	}
	return &FilesystemStore{
		root: dir,
		lock: flock.New(filepath.Join(dir, ".annlsh.lock")),
	}, nil
}

func (s *FilesystemStore) paramsPath() string    { return filepath.Join(s.root, "params.json") }
func (s *FilesystemStore) hashTablesDir() string { return filepath.Join(s.root, "hash_tables") }
func (s *FilesystemStore) globalIdxPath() string { return filepath.Join(s.root, "global_idx.txt") }
func (s *FilesystemStore) bucketDir(code HashCode, mag MagnitudeKey) string {
	return filepath.Join(s.root, "buckets", strconv.FormatUint(uint64(code), 10), string(mag))
}

// IsEmpty reports whether the root directory contains any entries at all.
func (s *FilesystemStore) IsEmpty(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, StorageFailureErr(fmt.Sprintf("read store root %s", s.root), err)
	}
	return len(entries) == 0, nil
}

// WriteParams atomically writes params.json and one hash_tables/ht<t>.bin
// per matrix. Each file is written to a temp path and renamed into place,
// so a reader never observes a partially written file.
func (s *FilesystemStore) WriteParams(ctx context.Context, params ProjectorParams, matrices [][]float64) error {
	if err := s.lock.Lock(); err != nil {
		return StorageFailureErr("acquire store lock", err)
	}
	defer s.lock.Unlock()

	paramsBytes, err := json.Marshal(struct {
		NumTables int `json:"num_tables"`
		HashSize  int `json:"hash_size"`
		Embedding int `json:"embedding_size"`
	}{params.NumTables, params.HashSize, params.Dimension})
	if err != nil {
		return StorageFailureErr("marshal params.json", err)
	}
	if err := atomicWrite(s.paramsPath(), paramsBytes); err != nil {
		return StorageFailureErr("write params.json", err)
	}

	if err := os.MkdirAll(s.hashTablesDir(), 0o755); err != nil {
		return StorageFailureErr("create hash_tables directory", err)
	}
	for t, table := range matrices {
		buf := make([]byte, len(table)*8)
		for i, v := range table {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		path := filepath.Join(s.hashTablesDir(), fmt.Sprintf("ht%d.bin", t))
		if err := atomicWrite(path, buf); err != nil {
			return StorageFailureErr(fmt.Sprintf("write %s", path), err)
		}
	}
	return nil
}

// ReadParams loads params.json and every hash_tables/ht<t>.bin. Returns
// found=false, no error, if params.json does not exist.
func (s *FilesystemStore) ReadParams(ctx context.Context) (ProjectorParams, [][]float64, bool, error) {
	raw, err := os.ReadFile(s.paramsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ProjectorParams{}, nil, false, nil
		}
		return ProjectorParams{}, nil, false, StorageFailureErr("read params.json", err)
	}

	var onDisk struct {
		NumTables int `json:"num_tables"`
		HashSize  int `json:"hash_size"`
		Embedding int `json:"embedding_size"`
	}
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return ProjectorParams{}, nil, false, CorruptParamsErr("params.json is not valid JSON", err)
	}
	params := ProjectorParams{NumTables: onDisk.NumTables, HashSize: onDisk.HashSize, Dimension: onDisk.Embedding}

	matrices := make([][]float64, params.NumTables)
	for t := 0; t < params.NumTables; t++ {
		path := filepath.Join(s.hashTablesDir(), fmt.Sprintf("ht%d.bin", t))
		buf, err := os.ReadFile(path)
		if err != nil {
			return ProjectorParams{}, nil, false, StorageFailureErr(fmt.Sprintf("read %s", path), err)
		}
		want := params.Dimension * params.HashSize * 8
		if len(buf) != want {
			return ProjectorParams{}, nil, false, CorruptParamsErr(fmt.Sprintf("%s has %d bytes, want %d", path, len(buf), want), nil)
		}
		table := make([]float64, params.Dimension*params.HashSize)
		for i := range table {
			table[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		matrices[t] = table
	}
	return params, matrices, true, nil
}

// Put appends id to buckets/<code>/<mag>/idx.txt and to global_idx.txt.
// Both appends happen while holding the writer lock, so a concurrent
// reader never observes an interleaved partial line from two writers; no
// de-duplication happens at write time, by design (§4.4: readers
// de-duplicate via set semantics).
func (s *FilesystemStore) Put(ctx context.Context, id VectorId, code HashCode, mag MagnitudeKey) error {
	if err := s.lock.Lock(); err != nil {
		return StorageFailureErr("acquire store lock", err)
	}
	defer s.lock.Unlock()

	dir := s.bucketDir(code, mag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StorageFailureErr(fmt.Sprintf("create bucket directory %s", dir), err)
	}
	if err := appendLine(filepath.Join(dir, "idx.txt"), string(id)); err != nil {
		return StorageFailureErr("append bucket idx.txt", err)
	}
	if err := appendLine(s.globalIdxPath(), string(id)); err != nil {
		return StorageFailureErr("append global_idx.txt", err)
	}
	return nil
}

// IdsIn scans every (code, mag) bucket directory named by the cross
// product of codes and mags, collecting the union of ids found, with
// duplicates collapsed by set semantics.
func (s *FilesystemStore) IdsIn(ctx context.Context, codes []HashCode, mags []MagnitudeKey) ([]VectorId, error) {
	seen := make(map[VectorId]struct{})
	for _, code := range codes {
		for _, mag := range mags {
			path := filepath.Join(s.bucketDir(code, mag), "idx.txt")
			ids, err := readLinesTolerant(path)
			if err != nil {
				return nil, StorageFailureErr(fmt.Sprintf("read %s", path), err)
			}
			for _, id := range ids {
				seen[VectorId(id)] = struct{}{}
			}
		}
	}
	out := make([]VectorId, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

// Close releases the filesystem store's lock handle.
func (s *FilesystemStore) Close() error {
	return s.lock.Close()
}

// Stats walks buckets/ and global_idx.txt to report occupancy. Implements
// StatsCapable.
func (s *FilesystemStore) Stats(ctx context.Context) (StoreStats, error) {
	globalIDs, err := readLinesTolerant(s.globalIdxPath())
	if err != nil {
		return StoreStats{}, StorageFailureErr("read global_idx.txt", err)
	}
	distinctIDs := make(map[string]struct{}, len(globalIDs))
	for _, id := range globalIDs {
		distinctIDs[id] = struct{}{}
	}

	bucketsRoot := filepath.Join(s.root, "buckets")
	var stats StoreStats
	var totalEntries int

	codeDirs, err := os.ReadDir(bucketsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return StoreStats{VectorCount: len(distinctIDs)}, nil
		}
		return StoreStats{}, StorageFailureErr("read buckets directory", err)
	}
	for _, codeDir := range codeDirs {
		if !codeDir.IsDir() {
			continue
		}
		magDirs, err := os.ReadDir(filepath.Join(bucketsRoot, codeDir.Name()))
		if err != nil {
			return StoreStats{}, StorageFailureErr(fmt.Sprintf("read bucket %s", codeDir.Name()), err)
		}
		for _, magDir := range magDirs {
			if !magDir.IsDir() {
				continue
			}
			lines, err := readLinesTolerant(filepath.Join(bucketsRoot, codeDir.Name(), magDir.Name(), "idx.txt"))
			if err != nil {
				return StoreStats{}, StorageFailureErr("read bucket idx.txt", err)
			}
			stats.BucketCount++
			totalEntries += len(lines)
			if len(lines) > stats.MaxBucket {
				stats.MaxBucket = len(lines)
			}
		}
	}

	stats.VectorCount = len(distinctIDs)
	if stats.BucketCount > 0 {
		stats.AverageBucket = float64(totalEntries) / float64(stats.BucketCount)
	}
	return stats, nil
}

// atomicWrite writes data to a temp file beside path and renames it into
// place, so a concurrent reader never observes a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// appendLine appends an LF-terminated line, opening the file in append
// mode (the guarantee of atomicity for short writes is the OS's, per
// §5; the writer-side flock above serialises longer critical sections).
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

// readLinesTolerant reads newline-delimited ids, tolerating both a missing
// file (no entries yet) and a partial last line left by a crash mid-append
// (§8 property 8 / scenario S4). bufio.Scanner's default split function
// returns a final unterminated token at EOF same as any other line, so it
// cannot be used here directly: a trailing line with no terminating LF is
// explicitly detected and dropped before splitting, rather than surfaced as
// a synthetic, possibly truncated id.
func readLinesTolerant(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	complete := data
	if data[len(data)-1] != '\n' {
		if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
			complete = data[:i+1]
		} else {
			complete = nil
		}
	}

	var lines []string
	for _, line := range bytes.Split(complete, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		lines = append(lines, string(line))
	}
	return lines, nil
}
