package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/derw/manifest"
)

const mainTemplate = `main: string
main =
    "Hello from Derw!"
`

// handleInitCommand processes the `derw init` subcommand: it writes
// derw.toml and a starter src/Main.derw, and keeps the build cache out of
// version control.
func handleInitCommand(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("init", flag.ExitOnError)
	name := flags.String("name", "", "Package name (defaults to the directory name)")
	target := flags.String("target", "ts", "Default output dialect: ts, js, derw or elm")
	verbose := verbosityFlag(flags)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: derw init [--name NAME] [--target ts] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Creates a Derw project in dir (default: the current directory).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flags.PrintDefaults()
	}
	flags.Parse(args)
	configureLogging(*verbose)

	dir := "."
	if flags.NArg() > 0 {
		dir = flags.Arg(0)
	}
	return initProject(dir, *name, *target, stdout)
}

func initProject(dir, name, target string, stdout io.Writer) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", dir, err)
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	if err := os.MkdirAll(filepath.Join(abs, "src"), 0755); err != nil {
		return err
	}

	m := manifest.New(name)
	m.Source.Entry = []string{"src/Main.derw"}
	m.Build.Target = target

	// Catch bad names and targets before anything is written
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := manifest.Validate(data); err != nil {
		return err
	}
	if err := m.Write(abs); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created %s\n", filepath.Join(abs, manifest.FileName))

	mainPath := filepath.Join(abs, "src", "Main.derw")
	if _, err := os.Stat(mainPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(mainPath, []byte(mainTemplate), 0644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created %s\n", mainPath)
	}

	return ignoreCache(filepath.Join(abs, ".gitignore"))
}

// ignoreCache adds the build cache directory to .gitignore unless it is
// already listed.
func ignoreCache(path string) error {
	const entry = ".derw/"

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"
	return os.WriteFile(path, []byte(content), 0644)
}
