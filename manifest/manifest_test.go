package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "test-app"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = ["src/Main.derw"]

[build]
target = "elm"
output = "build"
verify = true
cache = false
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Package.Name != "test-app" {
		t.Errorf("package name = %q, want test-app", m.Package.Name)
	}
	if m.Package.Version != "0.1.0" {
		t.Errorf("package version = %q, want 0.1.0", m.Package.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if len(m.Source.Entry) != 1 || m.Source.Entry[0] != "src/Main.derw" {
		t.Errorf("source entry = %v, want [src/Main.derw]", m.Source.Entry)
	}
	if m.Build.Target != "elm" {
		t.Errorf("build target = %q, want elm", m.Build.Target)
	}
	if m.Build.Output != "build" {
		t.Errorf("build output = %q, want build", m.Build.Output)
	}
	if !m.Build.Verify {
		t.Error("build verify = false, want true")
	}
	if m.Build.Cache {
		t.Error("build cache = true, want false")
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want an absolute path", m.Dir)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Default source dir should be "src"
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	if m.Build.Target != "ts" {
		t.Errorf("default target = %q, want ts", m.Build.Target)
	}
	if m.Build.Output != "./" {
		t.Errorf("default output = %q, want ./", m.Build.Output)
	}
	if !m.Build.Cache {
		t.Error("default cache = false, want true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"minimal", "[package]\nname = \"app\"", false},
		{"missing name", "[build]\ntarget = \"ts\"", true},
		{"bad name", "[package]\nname = \"1app\"", true},
		{"bad version", "[package]\nname = \"app\"\nversion = \"one\"", true},
		{"unknown target", "[package]\nname = \"app\"\n[build]\ntarget = \"py\"", true},
		{"entry must be derw", "[package]\nname = \"app\"\n[source]\nentry = [\"src/Main.ts\"]", true},
		{"unknown key", "[package]\nname = \"app\"\nauthor = \"me\"", true},
		{"unknown table", "[package]\nname = \"app\"\n[dependencies]\nx = \"1\"", true},
		{"empty output", "[package]\nname = \"app\"\n[build]\noutput = \"\"", true},
		{"wrong type", "[package]\nname = \"app\"\n[build]\nverify = \"yes\"", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate([]byte(tc.content))
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	err := Validate([]byte("[package]\nname = \"app\"\n[build]\ntarget = \"py\""))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() = %v, want an ErrInvalid", err)
	}

	// TOML syntax errors are reported as they are
	err = Validate([]byte("[package"))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("Validate(bad toml) = %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[build]\ntarget = \"ts\"\n")

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), FileName) {
		t.Errorf("Load() = %v, want an error naming %s", err, FileName)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[package]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Package.Name != "found-project" {
		t.Errorf("package name = %q, want found-project", m.Package.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no derw.toml exists")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := New("fresh-app")
	m.Source.Entry = []string{"src/Main.derw"}

	if err := m.Write(dir); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Package != m.Package {
		t.Errorf("package = %+v, want %+v", loaded.Package, m.Package)
	}
	if loaded.Build != m.Build {
		t.Errorf("build = %+v, want %+v", loaded.Build, m.Build)
	}
	if len(loaded.Source.Entry) != 1 || loaded.Source.Entry[0] != "src/Main.derw" {
		t.Errorf("entry = %v", loaded.Source.Entry)
	}

	// A second write must not clobber the first
	if err := New("other").Write(dir); err == nil {
		t.Error("Write over an existing derw.toml succeeded")
	}
}

func TestPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs:  []string{"src", "lib"},
			Entry: []string{"src/Main.derw"},
		},
		Build: BuildConfig{Output: "build"},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/app/lib" {
		t.Errorf("paths[1] = %q, want /app/lib", paths[1])
	}
	if got := m.EntryPaths(); len(got) != 1 || got[0] != "/app/src/Main.derw" {
		t.Errorf("EntryPaths() = %v", got)
	}
	if got := m.OutputDir(); got != "/app/build" {
		t.Errorf("OutputDir() = %q, want /app/build", got)
	}
	if got := m.CachePath(); got != "/app/.derw/cache.db" {
		t.Errorf("CachePath() = %q", got)
	}

	m.Build.Output = "/dev/stdout"
	if got := m.OutputDir(); got != "/dev/stdout" {
		t.Errorf("OutputDir() = %q, want /dev/stdout", got)
	}
}
