// Package build drives compilation of Derw files to disk. It follows each
// file's relative imports, reports what it could not find, and writes one
// output file per source next to the layout of the input tree.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/derw/cache"
	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/generator"
	"github.com/chazu/derw/manifest"
)

var log = commonlog.GetLogger("derw.build")

// Stdout is the output directory that prints generated code instead of
// writing files.
const Stdout = "/dev/stdout"

// ErrParseFailed is returned when one or more files had errors. Their
// output is still written.
var ErrParseFailed = errors.New("failed to parse")

// Options control a build.
type Options struct {
	Target generator.Target
	// Output is the directory outputs are written under, or Stdout.
	Output string
	// Root is the directory whose layout is mirrored under Output.
	// Defaults to the working directory.
	Root string

	Verify   bool
	Verifier Verifier

	// Debug dumps the parsed module instead of generating code. Only
	// restricts the dump to blocks with that name.
	Debug bool
	Only  string

	Quiet bool
	// Cache, when set, skips parsing and generation for unchanged sources.
	Cache *cache.Cache
	// Stdout receives progress lines and diagnostics. Defaults to os.Stdout.
	Stdout io.Writer
}

// Result summarises a build.
type Result struct {
	Processed  []string // every source visited, in visiting order
	Written    []string // output files, in dependency order
	Failed     []string // sources with errors
	Unverified []string // sources the verifier rejected
	Warnings   []string
}

type job struct {
	file   string
	output string
}

type unit struct {
	module  *compiler.Module // nil when served from the cache
	output  string
	errors  []string
	imports []string // relative to the importing file's directory
}

// Builder compiles a set of entry files and everything they import.
type Builder struct {
	opts    Options
	out     io.Writer
	entries map[string]bool
	seen    map[string]bool
	jobs    []job // dependency order
	result  *Result
}

// New creates a Builder for the given entry files.
func New(files []string, opts Options) *Builder {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Output == "" {
		opts.Output = "./"
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Verify && opts.Verifier == nil {
		opts.Verifier = &Tsc{}
	}
	b := &Builder{
		opts:    opts,
		out:     opts.Stdout,
		entries: make(map[string]bool),
		seen:    make(map[string]bool),
		result:  &Result{},
	}
	for _, f := range files {
		b.entries[filepath.Clean(f)] = true
	}
	return b
}

// Compile builds files with opts. See Builder.Run.
func Compile(ctx context.Context, files []string, opts Options) (*Result, error) {
	return New(files, opts).Run(ctx, files)
}

// Run compiles every file and its imports. I/O failures stop the build;
// files with errors are reported, still written, and make Run return an
// error wrapping ErrParseFailed once everything else is done.
func (b *Builder) Run(ctx context.Context, files []string) (*Result, error) {
	if !b.opts.Quiet {
		fmt.Fprintf(b.out, "Generating %d files...\n", len(files))
	}

	if b.opts.Output != Stdout && !b.opts.Debug {
		if err := os.MkdirAll(b.opts.Output, 0755); err != nil {
			return b.result, fmt.Errorf("cannot create %s: %w", b.opts.Output, err)
		}
	}

	for _, f := range files {
		if err := b.compile(ctx, filepath.Clean(f)); err != nil {
			return b.result, err
		}
	}

	if b.opts.Verify && !b.opts.Debug {
		if b.opts.Target != generator.TypeScript {
			b.warn(fmt.Sprintf("Warning: --verify only checks ts output, not %s", b.opts.Target))
		} else if err := b.verify(ctx); err != nil {
			return b.result, err
		}
	}

	if !b.opts.Quiet {
		fmt.Fprintf(b.out, "Processed: %s\n", strings.Join(b.result.Processed, ", "))
	}

	if len(b.result.Failed) > 0 {
		return b.result, fmt.Errorf("%w: %s", ErrParseFailed, strings.Join(b.result.Failed, ", "))
	}
	if len(b.result.Unverified) > 0 {
		return b.result, fmt.Errorf("%w: %s", ErrVerifyFailed, strings.Join(b.result.Unverified, ", "))
	}
	return b.result, nil
}

func (b *Builder) compile(ctx context.Context, file string) error {
	if b.seen[file] {
		return nil
	}
	b.seen[file] = true
	b.result.Processed = append(b.result.Processed, file)

	ext := filepath.Ext(file)
	if ext != ".derw" {
		b.warn(fmt.Sprintf("Warning: Derw files should be called .derw\nTry renaming %s to %s.derw",
			file, strings.TrimSuffix(file, ext)))
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", file, err)
	}

	name := file
	if b.entries[file] {
		name = compiler.MainModule
	}
	u := b.load(ctx, string(data), name)

	if len(u.errors) > 0 {
		fmt.Fprintf(b.out, "Failed to parse %s due to:\n%s\n", file, strings.Join(u.errors, "\n"))
		b.result.Failed = append(b.result.Failed, file)
	}

	dir := filepath.Dir(file)
	for _, imp := range u.imports {
		if err := b.resolve(ctx, filepath.Join(dir, imp)); err != nil {
			return err
		}
	}

	if b.opts.Debug {
		b.dump(u.module)
		return nil
	}

	if b.opts.Target == generator.Elm && name != compiler.MainModule {
		if module := generator.ElmModuleName(name); manifest.IsReservedModule(module) {
			b.warn(fmt.Sprintf("Warning: %s compiles to the Elm module %s, which shadows an Elm core module", file, module))
		}
	}

	b.jobs = append(b.jobs, job{file: file, output: u.output})

	if b.opts.Output == Stdout {
		fmt.Fprintln(b.out, u.output)
		return nil
	}
	return b.write(file, u.output)
}

// load parses and generates source, going through the cache when there
// is one. Debug builds need the syntax tree and always parse.
func (b *Builder) load(ctx context.Context, source, name string) *unit {
	if b.opts.Cache == nil || b.opts.Debug {
		return b.parse(source, name)
	}

	target := b.opts.Target.Extension()
	key := cache.Key(source, target, name)
	entry, err := b.opts.Cache.Get(ctx, key)
	if err == nil {
		log.Debugf("cache hit for %s", name)
		return &unit{output: entry.Output, errors: entry.Errors, imports: entry.Imports}
	}
	if !errors.Is(err, cache.ErrNotFound) {
		log.Warningf("cache lookup for %s: %s", name, err)
	}

	u := b.parse(source, name)
	entry = &cache.Entry{
		Target:  target,
		Output:  u.output,
		Errors:  u.errors,
		Imports: u.imports,
	}
	if err := b.opts.Cache.Put(ctx, key, entry); err != nil {
		log.Warningf("cannot cache %s: %s", name, err)
	}
	return u
}

func (b *Builder) parse(source, name string) *unit {
	m := compiler.Parse(source, name)
	u := &unit{module: m, errors: m.Errors, imports: m.ImportPaths("")}
	if !b.opts.Debug {
		u.output = generator.Generate(b.opts.Target, m)
	}
	return u
}

// resolve finds the file behind an import path. Derw siblings are
// compiled; ts and js siblings are left alone.
func (b *Builder) resolve(ctx context.Context, path string) error {
	if fileExists(path + ".derw") {
		return b.compile(ctx, path+".derw")
	}
	if fileExists(path+".ts") || fileExists(path+".js") {
		return nil
	}
	b.warn(fmt.Sprintf("Warning! Failed to find `%s` as either derw, ts or js", path))
	return nil
}

func (b *Builder) dump(m *compiler.Module) {
	if b.opts.Only != "" {
		fmt.Fprintf(b.out, "Filtering for %s...\n", b.opts.Only)
		fmt.Fprintln(b.out, compiler.Dump(m.FilterBodyForName(b.opts.Only)))
		return
	}
	fmt.Fprintln(b.out, compiler.Dump(m))
}

// OutputPath returns where the output for file goes: its path relative to
// the root, under the output directory, with the target's extension.
// Files outside the root keep only their base name.
func (b *Builder) OutputPath(file string) string {
	rel := filepath.Base(file)
	root, err1 := filepath.Abs(b.opts.Root)
	abs, err2 := filepath.Abs(file)
	if err1 == nil && err2 == nil {
		if r, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + "." + b.opts.Target.Extension()
	return filepath.Join(b.opts.Output, rel)
}

func (b *Builder) write(file, output string) error {
	path := b.OutputPath(file)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(output+"\n"), 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	log.Debugf("wrote %s", path)
	b.result.Written = append(b.result.Written, path)
	return nil
}

func (b *Builder) warn(msg string) {
	fmt.Fprintln(b.out, msg)
	b.result.Warnings = append(b.result.Warnings, msg)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Discover lists every .derw file under dirs, sorted. Hidden directories
// and node_modules are skipped. Missing dirs are ignored.
func Discover(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == dir {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == ".derw" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cannot list %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
