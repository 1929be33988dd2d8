package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/derw/build"
	"github.com/chazu/derw/compiler"
	"github.com/chazu/derw/generator"
)

// ---------------------------------------------------------------------------
// derw format
// ---------------------------------------------------------------------------

// errNeedsFormatting is returned by --check when a file is not canonical.
var errNeedsFormatting = errors.New("some files need formatting")

// Format parses a Derw source string and returns canonically formatted
// output. Sources with errors are rejected, since blocks that fail to parse
// would be dropped.
func Format(source string) (string, error) {
	m := compiler.Parse(source, compiler.MainModule)
	if len(m.Errors) > 0 {
		return "", errors.New(strings.Join(m.Errors, "\n"))
	}

	result := generator.GenerateDerw(m)
	// Ensure file ends with exactly one newline
	result = strings.TrimRight(result, "\n") + "\n"
	return result, nil
}

func handleFormatCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("format", flag.ExitOnError)
	checkMode := fs.Bool("check", false, "Check formatting without modifying files")
	verbose := verbosityFlag(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: derw format [--check] <files or directories...>\n\n")
		fmt.Fprintf(os.Stderr, "Format Derw source files to canonical style.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --check   Check formatting without modifying files.\n")
		fmt.Fprintf(os.Stderr, "            Exits with code 1 if any files need formatting.\n\n")
		fmt.Fprintf(os.Stderr, "If no files are given, formats all .derw files in the current directory.\n")
	}
	fs.Parse(args)
	configureLogging(*verbose)

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := collectDerwFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No .derw files found")
		return nil
	}

	changed, err := formatFiles(files, *checkMode)
	if err != nil {
		return err
	}

	for i, path := range files {
		if !changed[i] {
			continue
		}
		if *checkMode {
			fmt.Fprintf(stdout, "would format: %s\n", path)
		} else {
			fmt.Fprintf(stdout, "formatted: %s\n", path)
		}
	}

	if *checkMode {
		for _, c := range changed {
			if c {
				return errNeedsFormatting
			}
		}
	}
	return nil
}

// formatFiles formats every file in parallel. changed[i] reports whether
// files[i] was (or in check mode, would be) rewritten.
func formatFiles(files []string, checkMode bool) ([]bool, error) {
	changed := make([]bool, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		g.Go(func() error {
			c, err := formatFile(path, checkMode)
			if err != nil {
				return fmt.Errorf("formatting %s: %w", path, err)
			}
			changed[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return changed, nil
}

// formatFile formats a single .derw file.
// In check mode, returns true if the file would be changed.
// Otherwise, rewrites the file in place and returns true if it changed.
func formatFile(path string, checkMode bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	original := string(content)
	formatted, err := Format(original)
	if err != nil {
		return false, fmt.Errorf("parse error: %w", err)
	}

	if original == formatted {
		return false, nil
	}
	if checkMode {
		return true, nil
	}

	if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// collectDerwFiles resolves paths to a flat list of .derw file paths.
func collectDerwFiles(paths []string) ([]string, error) {
	var result []string

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", p, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", abs, err)
		}

		if info.IsDir() {
			found, err := build.Discover([]string{abs})
			if err != nil {
				return nil, err
			}
			result = append(result, found...)
		} else if strings.HasSuffix(abs, ".derw") {
			result = append(result, abs)
		} else {
			return nil, fmt.Errorf("%q is not a .derw file", abs)
		}
	}

	return result, nil
}
