package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.yaml")
	writeFile(t, path, `
server:
  baseDN: dc=example,dc=com
import:
  maxWeight: 1048576
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "dc=example,dc=com", cfg.Server.BaseDN)
	require.Equal(t, int64(1048576), cfg.Import.MaxWeight, "override")
	require.Equal(t, int64(64), cfg.Import.BaseWeight, "default")
	require.Equal(t, int64(10<<30), cfg.Storage.MapSize, "default")
}

func TestLoadMissingBaseDNFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.yaml")
	writeFile(t, path, "import:\n  minWeight: 1\n")
	_, err := Load(path)
	require.Error(t, err, "expected validation error for missing server.baseDN")
}

func TestValidateWeightOrdering(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseDN = "dc=x"
	cfg.Import.MinWeight = 100
	cfg.Import.MaxWeight = 50
	require.Error(t, cfg.Validate(), "expected error: minWeight >= maxWeight")
}

func TestValidateBaseWeightMustBePositive(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseDN = "dc=x"
	cfg.Import.BaseWeight = 0
	require.Error(t, cfg.Validate(), "expected error: baseWeight must be > 0")
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "expected error for nonexistent config file")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
