// Package config parses and hot-reloads obacore's YAML configuration.
// The struct shape mirrors the teacher's internal/config/config.go
// (Server/Directory/Storage/Logging/Security/ACL sections); parsing is
// delegated to gopkg.in/yaml.v3 rather than the teacher's hand-rolled
// recursive-descent parser, since a real YAML library is strictly more
// correct for an ambient concern like config loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Import  ImportConfig  `yaml:"import"`
	Storage StorageConfig `yaml:"storage"`
	Logging LogConfig     `yaml:"logging"`
	ACL     ACLConfig     `yaml:"acl"`
}

// ServerConfig holds the directory's identity; the wire protocol itself is
// out of scope (spec.md §1) so only the fields Core A/B consult are kept.
type ServerConfig struct {
	BaseDN string `yaml:"baseDN"`
	RootDN string `yaml:"rootDN"`
}

// ImportConfig drives the job controller (spec.md §4.9, §6).
type ImportConfig struct {
	LDIFFiles          []string      `yaml:"ldifFiles"`
	IncludeSubtrees    []string      `yaml:"includeSubtrees"`
	ExcludeSubtrees    []string      `yaml:"excludeSubtrees"`
	IndexAttrs         []string      `yaml:"indexAttrs"`
	SubtreeRename      bool          `yaml:"subtreeRename"`
	UpgradeDNFormat    bool          `yaml:"upgradeDNFormat"`
	DryRun             bool          `yaml:"dryRun"`
	RingCapacityBytes  int64         `yaml:"ringCapacityBytes"`
	MinWeight          int64         `yaml:"minWeight"`
	MaxWeight          int64         `yaml:"maxWeight"`
	BaseWeight         int64         `yaml:"baseWeight"`
	GenerateUniqueID   bool          `yaml:"generateUniqueID"`
	PollInterval       time.Duration `yaml:"pollInterval"`
}

// StorageConfig points at the LMDB environment.
type StorageConfig struct {
	EnvPath  string `yaml:"envPath"`
	MapSize  int64  `yaml:"mapSize"`
	SpoolDir string `yaml:"spoolDir"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ACLConfig points at the ACL declaration file (spec.md §6 v3 format).
type ACLConfig struct {
	File          string `yaml:"file"`
	DefaultPolicy string `yaml:"defaultPolicy"`
}

// Default returns a Config with the teacher's documented defaults applied.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			RingCapacityBytes: 64 * 1024 * 1024,
			MinWeight:         1 << 20,
			MaxWeight:         4 << 20,
			BaseWeight:        64,
			PollInterval:      10 * time.Millisecond,
		},
		Storage: StorageConfig{
			MapSize: 10 << 30,
		},
		Logging: LogConfig{Level: "info"},
		ACL:     ACLConfig{DefaultPolicy: "deny"},
	}
}

// Load reads and parses a YAML config file, applying defaults for unset
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and cross-field invariants (MIN_WEIGHT <
// MAX_WEIGHT per spec.md §3's writer global context).
func (c *Config) Validate() error {
	if c.Server.BaseDN == "" {
		return fmt.Errorf("config: server.baseDN is required")
	}
	if c.Import.MinWeight >= c.Import.MaxWeight {
		return fmt.Errorf("config: import.minWeight must be < import.maxWeight")
	}
	if c.Import.BaseWeight <= 0 {
		return fmt.Errorf("config: import.baseWeight must be > 0")
	}
	return nil
}
