package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chazu/derw/build"
	"github.com/chazu/derw/cache"
	"github.com/chazu/derw/generator"
	"github.com/chazu/derw/manifest"
)

// handleCompileCommand processes the `derw compile` subcommand. Settings
// come from the nearest derw.toml, if any, and flags override them.
func handleCompileCommand(args []string, stdout io.Writer) error {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return err
	}
	defaults := manifest.New("")
	root := "."
	if m != nil {
		defaults = m
		root = m.Dir
	}
	output := defaults.Build.Output
	if m != nil {
		output = m.OutputDir()
	}

	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	target := fs.String("target", defaults.Build.Target, "Output dialect: ts, js, derw or elm")
	fs.StringVar(&output, "output", output, "Output directory, or /dev/stdout")
	verify := fs.Bool("verify", defaults.Build.Verify, "Type check generated TypeScript with tsc")
	debug := fs.Bool("debug", false, "Print the parsed module instead of generating code")
	only := fs.String("only", "", "With --debug, only print blocks with this name")
	quiet := fs.Bool("quiet", false, "Only print errors and warnings")
	noCache := fs.Bool("no-cache", false, "Do not read or write the build cache")
	verbose := verbosityFlag(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: derw compile [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles the given files and every file they import. Without files,\n")
		fmt.Fprintf(os.Stderr, "compiles the entries in derw.toml, or every .derw file in its source dirs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	configureLogging(*verbose)

	t, err := generator.ParseTarget(*target)
	if err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		files, err = projectFiles(m)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to compile")
	}

	opts := build.Options{
		Target: t,
		Output: output,
		Root:   root,
		Verify: *verify,
		Debug:  *debug,
		Only:   *only,
		Quiet:  *quiet,
		Stdout: stdout,
	}

	if m != nil && m.Build.Cache && !*noCache {
		c, err := cache.Open(m.CachePath())
		if err != nil {
			return err
		}
		defer c.Close()
		opts.Cache = c
	}

	_, err = build.Compile(context.Background(), files, opts)
	return err
}

// projectFiles lists what to compile when no files are named: the
// manifest's entries, else every .derw file in its source dirs, else
// every .derw file under ./src.
func projectFiles(m *manifest.Manifest) ([]string, error) {
	if m == nil {
		return build.Discover([]string{"src"})
	}
	if entries := m.EntryPaths(); len(entries) > 0 {
		return entries, nil
	}
	return build.Discover(m.SourceDirPaths())
}
