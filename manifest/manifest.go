// Package manifest handles garnet.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/garnet/vm"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "garnet.toml"

// Manifest represents a garnet.toml configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	VM      VMConfig    `toml:"vm"`
	GC      GCConfig    `toml:"gc"`
	Fiber   FiberConfig `toml:"fiber"`
	Stats   StatsConfig `toml:"stats"`

	// Dir is the directory containing the garnet.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"` // compiled unit to run
}

// VMConfig configures each VM.
type VMConfig struct {
	StackSize int  `toml:"stack-size"`
	Debug     bool `toml:"debug"`
}

// GCConfig configures the collector.
type GCConfig struct {
	Enabled   bool `toml:"enabled"`
	Threshold int  `toml:"threshold"`
}

// FiberConfig configures fibers.
type FiberConfig struct {
	PoolSize int `toml:"pool-size"`
}

// StatsConfig configures the run statistics store.
type StatsConfig struct {
	DB string `toml:"db"`
}

// Default returns the manifest used when no garnet.toml exists.
func Default() *Manifest {
	opts := vm.DefaultOptions()
	return &Manifest{
		VM:    VMConfig{StackSize: opts.StackSize, Debug: opts.Debug},
		GC:    GCConfig{Enabled: opts.GCEnabled, Threshold: opts.GCThreshold},
		Fiber: FiberConfig{PoolSize: opts.FiberPoolSize},
	}
}

// Load parses a garnet.toml file from the given directory. Keys missing
// from the file keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

func (m *Manifest) validate() error {
	switch {
	case m.VM.StackSize <= 0:
		return fmt.Errorf("vm.stack-size must be positive, got %d", m.VM.StackSize)
	case m.GC.Threshold <= 0:
		return fmt.Errorf("gc.threshold must be positive, got %d", m.GC.Threshold)
	case m.Fiber.PoolSize < 0:
		return fmt.Errorf("fiber.pool-size must not be negative, got %d", m.Fiber.PoolSize)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a garnet.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the interpreter options the manifest describes.
func (m *Manifest) Options() vm.Options {
	return vm.Options{
		StackSize:     m.VM.StackSize,
		Debug:         m.VM.Debug,
		GCEnabled:     m.GC.Enabled,
		GCThreshold:   m.GC.Threshold,
		FiberPoolSize: m.Fiber.PoolSize,
	}
}

// EntryPath returns the absolute path of the entry unit, or "" if none
// is configured.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// StatsPath returns the absolute path of the statistics database, or ""
// when statistics are not persisted.
func (m *Manifest) StatsPath() string {
	return m.resolve(m.Stats.DB)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
