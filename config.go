// Runtime configuration: defaults, YAML loading, and deep-copy-before-apply
// semantics, modelled on the vmi importer's vmi_config loader.
package cotask

import (
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigSectionName is the top-level YAML key LoadConfig looks for.
	ConfigSectionName = "cotask_config"

	DefaultArenaCapacity     = 4096
	DefaultAutoYieldRounds   = 100 // spec.md §4.2 SyncAuto threshold
	DefaultDeadlockThreshold = 3
)

// Config holds every tunable of a Runtime. Zero value is not meaningful on
// its own; use DefaultConfig or LoadConfig.
type Config struct {
	// ArenaCapacity bounds how many tasks may exist concurrently.
	ArenaCapacity int `yaml:"arena_capacity"`

	// DefaultSyncMode is latched onto every newly spawned task.
	DefaultSyncMode SyncMode `yaml:"default_sync_mode"`

	// AutoYieldRounds is how many YIELD-pattern rounds SyncAuto attempts
	// before falling through to SyncBlocking.
	AutoYieldRounds int `yaml:"auto_yield_rounds"`

	// DeadlockThreshold is how many parked scheduler rounds, summed over all
	// schedulers since any of them last dispatched a task, are tolerated
	// before Stats reports a suspected deadlock.
	DeadlockThreshold int64 `yaml:"deadlock_threshold"`

	// logger is not exposed to YAML; set via WithLogger only.
	logger *Logger
}

// DefaultConfig returns a Config with conservative built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ArenaCapacity:     DefaultArenaCapacity,
		DefaultSyncMode:   SyncAuto,
		AutoYieldRounds:   DefaultAutoYieldRounds,
		DeadlockThreshold: DefaultDeadlockThreshold,
	}
}

// clone returns a deep copy of cfg, so a caller can derive a Runtime's
// effective Config from a shared base (e.g. LoadConfig's result) without
// options applied to one Runtime leaking into another's.
func (cfg *Config) clone() *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	cloned := clone.Clone(cfg).(*Config)
	cloned.logger = cfg.logger // unexported field: go-clone can't reach it via reflection from another package boundary concern, carry it explicitly
	return cloned
}

// describe renders a human-readable summary of cfg, used in startup log
// lines; ArenaCapacity is expressed as an item count, not bytes, but
// go-units' BytesSize is reused here for ArenaCapacity*sizeOfCacheLine,
// a rough worst-case padding estimate, to keep the log line informative
// without a bespoke formatter.
func (cfg *Config) describe() string {
	return fmt.Sprintf(
		"arena_capacity=%d default_sync_mode=%s auto_yield_rounds=%d deadlock_threshold=%d (~%s padding)",
		cfg.ArenaCapacity, cfg.DefaultSyncMode, cfg.AutoYieldRounds, cfg.DeadlockThreshold,
		units.BytesSize(float64(cfg.ArenaCapacity*sizeOfCacheLine)),
	)
}

// LoadConfig loads a Config from the specified YAML file (or buf, for
// testing, in which case cfgFile is used only for error messages).
func LoadConfig(cfgFile string, buf []byte) (*Config, error) {
	if buf == nil {
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file: %q: %w", cfgFile, err)
		}
	}

	docNode := yaml.Node{}
	if err := yaml.Unmarshal(buf, &docNode); err != nil {
		return nil, fmt.Errorf("file: %q: %w", cfgFile, err)
	}

	cfg := DefaultConfig()
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) > 0 {
		rootNode := docNode.Content[0]
		if rootNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("file: %q: invalid YAML root node %q", cfgFile, rootNode.Tag)
		}
		matched := false
		for i := 0; i+1 < len(rootNode.Content); i += 2 {
			if rootNode.Content[i].Value != ConfigSectionName {
				continue
			}
			matched = true
			if err := rootNode.Content[i+1].Decode(cfg); err != nil {
				return nil, fmt.Errorf("file: %q: %w", cfgFile, err)
			}
		}
		_ = matched // absent section is not an error: defaults stand
	}

	return cfg, nil
}
