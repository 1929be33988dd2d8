// Package manifest handles derw.toml project configuration.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "derw.toml"

// Manifest represents a derw.toml project configuration.
type Manifest struct {
	Package Package     `toml:"package"`
	Source  Source      `toml:"source"`
	Build   BuildConfig `toml:"build"`

	// Dir is the directory containing the derw.toml file (set at load time).
	Dir string `toml:"-"`
}

// Package contains project metadata.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
}

// Source configures source file locations.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry []string `toml:"entry,omitempty"`
}

// BuildConfig configures code generation.
type BuildConfig struct {
	Target string `toml:"target"`
	Output string `toml:"output"`
	Verify bool   `toml:"verify"`
	Cache  bool   `toml:"cache"`
}

// New returns a manifest for a fresh project with every default filled in.
func New(name string) *Manifest {
	return &Manifest{
		Package: Package{Name: name, Version: "0.1.0"},
		Source:  Source{Dirs: []string{"src"}},
		Build:   BuildConfig{Target: "ts", Output: "./", Cache: true},
	}
}

// Parse validates and decodes derw.toml contents. Fields missing from data
// keep their defaults.
func Parse(data []byte) (*Manifest, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	m := &Manifest{Build: BuildConfig{Target: "ts", Output: "./", Cache: true}}
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, err
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	return m, nil
}

// Load parses a derw.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a derw.toml file,
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

// Encode renders the manifest as TOML.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write saves the manifest as dir/derw.toml. An existing file is never
// overwritten.
func (m *Manifest) Write(dir string) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	m.Dir = dir
	return nil
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// EntryPaths returns the configured entry files, relative to the project.
func (m *Manifest) EntryPaths() []string {
	var paths []string
	for _, e := range m.Source.Entry {
		paths = append(paths, filepath.Join(m.Dir, e))
	}
	return paths
}

// OutputDir returns the directory generated files are written to. The
// special value /dev/stdout is returned as is.
func (m *Manifest) OutputDir() string {
	if m.Build.Output == "/dev/stdout" || filepath.IsAbs(m.Build.Output) {
		return m.Build.Output
	}
	return filepath.Join(m.Dir, m.Build.Output)
}

// CachePath returns the path to .derw/cache.db.
func (m *Manifest) CachePath() string {
	return filepath.Join(m.Dir, ".derw", "cache.db")
}
