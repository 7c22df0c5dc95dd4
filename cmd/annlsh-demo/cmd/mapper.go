package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vectorhash/annlsh/pkg/annlsh"
)

// fileMapper is a minimal stand-in for the relational metadata store
// spec.md names as an external collaborator (§1): it resolves a VectorId
// to the embedding the demo CLI's add command most recently stored for it.
// A real deployment's Mapper talks to that external store instead; this
// one exists only so `annlsh-demo query` has something to resolve
// candidates against.
type fileMapper struct {
	path string
	data map[string][]float64
}

func openFileMapper(root string) (*fileMapper, error) {
	path := filepath.Join(root, "vectors.json")
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		// sqlite backend: root is the database file, so keep the mapping beside it.
		path = root + ".vectors.json"
	}
	m := &fileMapper{path: path, data: map[string][]float64{}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read vector mapping %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &m.data); err != nil {
		return nil, fmt.Errorf("parse vector mapping %s: %w", path, err)
	}
	return m, nil
}

func (m *fileMapper) Resolve(ctx context.Context, id annlsh.VectorId) (annlsh.Embedding, error) {
	v, ok := m.data[string(id)]
	if !ok {
		return nil, annlsh.ErrMapperMiss
	}
	return v, nil
}

func (m *fileMapper) put(id string, v []float64) error {
	m.data[id] = v
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vector mapping: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create vector mapping directory: %w", err)
	}
	return os.WriteFile(m.path, raw, 0o644)
}
