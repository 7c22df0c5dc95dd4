package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ReturnsReferenceValues(t *testing.T) {
	// Given no configuration file exists
	cfg := Default()

	// Then the reference projector dimensions and filesystem backend apply
	require.NotNil(t, cfg)
	assert.Equal(t, BackendFilesystem, cfg.Backend)
	assert.Equal(t, 49, cfg.Projector.Tables)
	assert.Equal(t, 7, cfg.Projector.Bits)
	assert.Equal(t, 128, cfg.Projector.Dimension)
	assert.Equal(t, 2, cfg.MagnitudeRadius)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	// Given a path that does not exist
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.yaml")

	// When loading
	cfg, err := Load(path)

	// Then defaults are returned without error
	require.NoError(t, err)
	assert.Equal(t, Default().Projector, cfg.Projector)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	// Given a YAML file overriding the backend and projector shape
	dir := t.TempDir()
	path := filepath.Join(dir, "annlsh.yaml")
	content := "backend: sqlite\nroot: " + filepath.Join(dir, "idx.db") + "\nprojector:\n  tables: 16\n  bits: 10\n  dimension: 256\nmagnitude_radius: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When loading
	cfg, err := Load(path)

	// Then the file's values win over the hardcoded defaults
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 16, cfg.Projector.Tables)
	assert.Equal(t, 10, cfg.Projector.Bits)
	assert.Equal(t, 256, cfg.Projector.Dimension)
	assert.Equal(t, 3, cfg.MagnitudeRadius)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	// Given a YAML file and an environment override for the same field
	dir := t.TempDir()
	path := filepath.Join(dir, "annlsh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projector:\n  tables: 16\n"), 0o644))
	t.Setenv("ANNLSH_TABLES", "8")

	// When loading
	cfg, err := Load(path)

	// Then the environment variable wins, as the highest-precedence layer
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Projector.Tables)
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend = "postgres"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestValidate_RejectsBitsTooWideForHashCode(t *testing.T) {
	cfg := Default()
	cfg.Projector.Bits = 64

	err := cfg.Validate()

	require.Error(t, err)
}

func TestValidate_RejectsNonPositiveTablesOrDimension(t *testing.T) {
	cfg := Default()
	cfg.Projector.Tables = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Projector.Dimension = -1
	assert.Error(t, cfg.Validate())
}
