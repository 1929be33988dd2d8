package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/derw/cache"
	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/generator"
)

const mainSource = "import \"./utils\"\n\nmain: number\nmain =\n    1\n"

const utilsSource = "double: number -> number\ndouble x =\n    x * 2\n"

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// options returns quiet options that write back into dir.
func options(dir string, out *bytes.Buffer) Options {
	return Options{
		Target: generator.TypeScript,
		Output: dir,
		Root:   dir,
		Quiet:  true,
		Stdout: out,
	}
}

func TestCompileFollowsImports(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw":  mainSource,
		"utils.derw": utilsSource,
	})

	var out bytes.Buffer
	main := filepath.Join(dir, "Main.derw")
	res, err := Compile(context.Background(), []string{main}, options(dir, &out))
	if err != nil {
		t.Fatalf("Compile failed: %v\n%s", err, out.String())
	}

	want := []string{main, filepath.Join(dir, "utils.derw")}
	if !reflect.DeepEqual(res.Processed, want) {
		t.Errorf("Processed = %v, want %v", res.Processed, want)
	}
	for _, name := range []string{"Main.ts", "utils.ts"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s was not written: %v", name, err)
		}
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestCompileMirrorsLayout(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/Main.derw":  mainSource,
		"src/utils.derw": utilsSource,
	})

	var out bytes.Buffer
	opts := options(dir, &out)
	opts.Output = filepath.Join(dir, "build")
	opts.Target = generator.Elm
	if _, err := Compile(context.Background(), []string{filepath.Join(dir, "src", "Main.derw")}, opts); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "build", "src", "Main.elm"))
	if err != nil {
		t.Fatalf("Main.elm was not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "module Main exposing (..)") {
		t.Errorf("unexpected output:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "build", "src", "utils.elm")); err != nil {
		t.Errorf("utils.elm was not written: %v", err)
	}
}

func TestCompileVisitsEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.derw": "import \"./b\"\n\na: number\na =\n    1\n",
		"b.derw": "import \"./a\"\n\nb: number\nb =\n    2\n",
	})

	var out bytes.Buffer
	a := filepath.Join(dir, "a.derw")
	res, err := Compile(context.Background(), []string{a, filepath.Join(dir, "b.derw")}, options(dir, &out))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Processed) != 2 {
		t.Errorf("Processed = %v, want two files", res.Processed)
	}
	if len(res.Written) != 2 {
		t.Errorf("Written = %v, want two files", res.Written)
	}
}

func TestImportResolution(t *testing.T) {
	tests := []struct {
		name     string
		siblings map[string]string
		warns    bool
	}{
		{"typescript sibling", map[string]string{"utils.ts": "export {}"}, false},
		{"javascript sibling", map[string]string{"utils.js": ""}, false},
		{"nothing to find", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			files := map[string]string{"Main.derw": mainSource}
			for name, content := range tc.siblings {
				files[name] = content
			}
			writeFiles(t, dir, files)

			var out bytes.Buffer
			res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.derw")}, options(dir, &out))
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if len(res.Processed) != 1 {
				t.Errorf("Processed = %v, want only Main.derw", res.Processed)
			}

			want := "Warning! Failed to find `" + filepath.Join(dir, "utils") + "` as either derw, ts or js"
			got := strings.Contains(out.String(), want)
			if got != tc.warns {
				t.Errorf("warned = %v, want %v\n%s", got, tc.warns, out.String())
			}
		})
	}
}

func TestGlobalImportsAreNotResolved(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw": "import fs\n\nmain: number\nmain =\n    1\n",
	})

	var out bytes.Buffer
	res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.derw")}, options(dir, &out))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestParseFailureStillWrites(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw": "value: number\nvalue = \"hello\"\n\nok: number\nok =\n    1\n",
	})

	var out bytes.Buffer
	main := filepath.Join(dir, "Main.derw")
	res, err := Compile(context.Background(), []string{main}, options(dir, &out))
	if !errors.Is(err, ErrParseFailed) {
		t.Fatalf("Compile() error = %v, want ErrParseFailed", err)
	}
	if !reflect.DeepEqual(res.Failed, []string{main}) {
		t.Errorf("Failed = %v", res.Failed)
	}
	if !strings.Contains(out.String(), "Failed to parse "+main+" due to:") {
		t.Errorf("missing failure report:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "Main.ts")); err != nil {
		t.Errorf("partial output was not written: %v", err)
	}
}

func TestMissingEntryIsAnError(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()
	_, err := Compile(context.Background(), []string{filepath.Join(dir, "Nope.derw")}, options(dir, &out))
	if err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("Compile() error = %v, want a read error", err)
	}
}

func TestWrongExtensionWarns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"Main.txt": "main: number\nmain =\n    1\n"})

	var out bytes.Buffer
	res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.txt")}, options(dir, &out))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Try renaming") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
	if _, err := os.Stat(filepath.Join(dir, "Main.ts")); err != nil {
		t.Errorf("Main.ts was not written: %v", err)
	}
}

func TestStdoutOutput(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"Main.derw": "main: number\nmain =\n    1\n"})

	var out bytes.Buffer
	opts := options(dir, &out)
	opts.Output = Stdout
	opts.Quiet = false
	res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.derw")}, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Written) != 0 {
		t.Errorf("Written = %v, want nothing on disk", res.Written)
	}
	got := out.String()
	for _, want := range []string{"Generating 1 files...", "const main: number = 1;", "Processed: "} {
		if !strings.Contains(got, want) {
			t.Errorf("output is missing %q:\n%s", want, got)
		}
	}
}

func TestDebugDump(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw": "a: number\na =\n    1\n\nb: string\nb =\n    \"x\"\n",
	})

	var out bytes.Buffer
	opts := options(dir, &out)
	opts.Debug = true
	opts.Only = "b"
	res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.derw")}, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Filtering for b...") || !strings.Contains(got, `Name: "b"`) {
		t.Errorf("unexpected dump:\n%s", got)
	}
	if strings.Contains(got, `Name: "a"`) {
		t.Errorf("dump includes filtered block:\n%s", got)
	}
	if len(res.Written) != 0 {
		t.Errorf("debug build wrote %v", res.Written)
	}
}

func TestElmCoreModuleWarning(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw": "import \"./List\"\n\nmain: number\nmain =\n    1\n",
		"List.derw": utilsSource,
	})

	var out bytes.Buffer
	opts := options(dir, &out)
	opts.Target = generator.Elm
	res, err := Compile(context.Background(), []string{filepath.Join(dir, "Main.derw")}, opts)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "shadows an Elm core module") {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

type fakeVerifier struct {
	reject string
}

func (f *fakeVerifier) Verify(_ context.Context, source string) error {
	if f.reject != "" && strings.Contains(source, f.reject) {
		return ErrVerifyFailed
	}
	return nil
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw":  mainSource,
		"utils.derw": utilsSource,
	})
	main := filepath.Join(dir, "Main.derw")
	utils := filepath.Join(dir, "utils.derw")

	t.Run("accepted", func(t *testing.T) {
		var out bytes.Buffer
		opts := options(dir, &out)
		opts.Verify = true
		opts.Verifier = &fakeVerifier{}
		if _, err := Compile(context.Background(), []string{main}, opts); err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		// imports are generated before the files that import them
		want := "Successfully compiled " + utils + "\nSuccessfully compiled " + main + "\n"
		if out.String() != want {
			t.Errorf("output = %q, want %q", out.String(), want)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		var out bytes.Buffer
		opts := options(dir, &out)
		opts.Verify = true
		opts.Verifier = &fakeVerifier{reject: "double"}
		res, err := Compile(context.Background(), []string{main}, opts)
		if !errors.Is(err, ErrVerifyFailed) {
			t.Fatalf("Compile() error = %v, want ErrVerifyFailed", err)
		}
		if !reflect.DeepEqual(res.Unverified, []string{utils}) {
			t.Errorf("Unverified = %v", res.Unverified)
		}
		if !strings.Contains(out.String(), "Failed to compile "+utils+" due to") {
			t.Errorf("missing failure report:\n%s", out.String())
		}
	})

	t.Run("other targets are skipped", func(t *testing.T) {
		var out bytes.Buffer
		opts := options(dir, &out)
		opts.Target = generator.JavaScript
		opts.Verify = true
		opts.Verifier = &fakeVerifier{reject: "double"}
		res, err := Compile(context.Background(), []string{main}, opts)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if len(res.Warnings) != 1 {
			t.Errorf("Warnings = %v", res.Warnings)
		}
	})
}

func TestCompileUsesCache(t *testing.T) {
	dir := t.TempDir()
	source := "main: number\nmain =\n    1\n"
	writeFiles(t, dir, map[string]string{"Main.derw": source})

	c, err := cache.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	key := cache.Key(source, "ts", compiler.MainModule)
	if err := c.Put(ctx, key, &cache.Entry{Target: "ts", Output: "// from the cache"}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	opts := options(dir, &out)
	opts.Cache = c
	if _, err := Compile(ctx, []string{filepath.Join(dir, "Main.derw")}, opts); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "Main.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "// from the cache\n" {
		t.Errorf("Main.ts = %q, want the cached output", data)
	}
}

func TestCompileFillsCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"Main.derw":  mainSource,
		"utils.derw": utilsSource,
	})

	c, err := cache.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	main := filepath.Join(dir, "Main.derw")
	for range 2 {
		var out bytes.Buffer
		opts := options(dir, &out)
		opts.Cache = c
		res, err := Compile(ctx, []string{main}, opts)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		// imports are followed on a cache hit too
		if len(res.Processed) != 2 {
			t.Errorf("Processed = %v, want two files", res.Processed)
		}
	}

	n, err := c.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cache holds %d entries, want 2", n)
	}
}

func TestOutputPath(t *testing.T) {
	b := New(nil, Options{Target: generator.JavaScript, Output: "/out", Root: "/proj"})
	tests := map[string]string{
		"/proj/src/Main.derw": "/out/src/Main.js",
		"/proj/a.b.derw":      "/out/a.b.js",
		"/elsewhere/x.derw":   "/out/x.js",
	}
	for in, want := range tests {
		if got := b.OutputPath(in); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/Main.derw":             "",
		"src/nested/Util.derw":      "",
		"src/notes.md":              "",
		"src/.hidden/Skip.derw":     "",
		"src/node_modules/Dep.derw": "",
	})

	got, err := Discover([]string{filepath.Join(dir, "src"), filepath.Join(dir, "missing")})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "src", "Main.derw"),
		filepath.Join(dir, "src", "nested", "Util.derw"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover() = %v, want %v", got, want)
	}
}
