package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.yaml")
	writeFile(t, path, "server:\n  baseDN: dc=one,dc=com\n")

	loaded := make(chan *Config, 4)
	w, err := NewWatcher(path, nil, func(c *Config) { loaded <- c })
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "server:\n  baseDN: dc=two,dc=com\n")

	select {
	case cfg := <-loaded:
		require.Equal(t, "dc=two,dc=com", cfg.Server.BaseDN)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never observed the file write")
	}
}

func TestWatcherSkipsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oba.yaml")
	writeFile(t, path, "server:\n  baseDN: dc=one,dc=com\n")

	loaded := make(chan *Config, 4)
	w, err := NewWatcher(path, nil, func(c *Config) { loaded <- c })
	require.NoError(t, err)
	defer w.Close()

	// An invalid rewrite (missing required baseDN) must not invoke onLoad.
	writeFile(t, path, "import:\n  minWeight: 1\n")
	// A subsequent valid write should still be observed, proving the
	// watcher kept running past the failed reload.
	writeFile(t, path, "server:\n  baseDN: dc=three,dc=com\n")

	select {
	case cfg := <-loaded:
		require.Equal(t, "dc=three,dc=com", cfg.Server.BaseDN)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never recovered after an invalid reload")
	}
}
