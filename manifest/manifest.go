// Package manifest handles microc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/microc/compiler"
	"github.com/chazu/microc/pkg/bytecode"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "microc.toml"

// Manifest represents a microc.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Build   BuildConfig  `toml:"build"`
	Run     RunConfig    `toml:"run"`
	Cache   CacheConfig  `toml:"cache"`
	Server  ServerConfig `toml:"server"`

	// Dir is the directory containing the microc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// BuildConfig configures compilation.
type BuildConfig struct {
	Entry          string `toml:"entry"`
	Output         string `toml:"output"`
	Format         string `toml:"format"` // "text" or "cbor"
	Listing        bool   `toml:"listing"`
	AllowShadowing bool   `toml:"allow-shadowing"`
}

// RunConfig configures the reference machine.
type RunConfig struct {
	StackSize int    `toml:"stack-size"`
	MaxSteps  int    `toml:"max-steps"`
	Input     string `toml:"input"`
}

// CacheConfig configures the build cache.
type CacheConfig struct {
	Path    string `toml:"path"`
	Enabled bool   `toml:"enabled"`
}

// ServerConfig configures the compile service.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Output formats.
const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// Default returns the configuration used when no manifest exists.
func Default() *Manifest {
	return &Manifest{
		Build: BuildConfig{
			Entry:          "main.c",
			Output:         "a.out",
			Format:         FormatText,
			AllowShadowing: true,
		},
		Run: RunConfig{
			StackSize: bytecode.DefaultStackSize,
		},
		Cache: CacheConfig{
			Path:    filepath.Join(".microc", "cache.db"),
			Enabled: true,
		},
		Server: ServerConfig{
			Port: 4567,
		},
	}
}

// Load parses a microc.toml file from the given directory. Keys missing
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

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a microc.toml file,
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
			return nil, nil
		}
		dir = parent
	}
}

// Write stores m as microc.toml in dir, refusing to overwrite an existing
// manifest.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (m *Manifest) validate() error {
	switch m.Build.Format {
	case FormatText, FormatCBOR:
	default:
		return fmt.Errorf("build.format must be %q or %q, got %q", FormatText, FormatCBOR, m.Build.Format)
	}
	if m.Run.StackSize <= 0 {
		return fmt.Errorf("run.stack-size must be positive, got %d", m.Run.StackSize)
	}
	if m.Run.MaxSteps < 0 {
		return fmt.Errorf("run.max-steps must not be negative, got %d", m.Run.MaxSteps)
	}
	return nil
}

// CompilerOptions returns the checking options selected by the manifest.
func (m *Manifest) CompilerOptions() compiler.Options {
	return compiler.Options{StrictScopes: !m.Build.AllowShadowing}
}

// Resolve returns p relative to the manifest directory unless it is
// already absolute.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the path of the main source file.
func (m *Manifest) EntryPath() string { return m.Resolve(m.Build.Entry) }

// OutputPath returns the path compiled code is written to.
func (m *Manifest) OutputPath() string { return m.Resolve(m.Build.Output) }

// CachePath returns the path of the build cache database.
func (m *Manifest) CachePath() string { return m.Resolve(m.Cache.Path) }
