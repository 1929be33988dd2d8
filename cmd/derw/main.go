// Derw CLI - compiles, formats and serves Derw source
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/derw/server"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: derw <command> [options] [files...]\n\n")
	fmt.Fprintf(os.Stderr, "Compiles Derw to TypeScript, JavaScript, Elm or canonical Derw.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  compile   Compile files and everything they import\n")
	fmt.Fprintf(os.Stderr, "  format    Rewrite files in canonical layout\n")
	fmt.Fprintf(os.Stderr, "  init      Create derw.toml and src/Main.derw\n")
	fmt.Fprintf(os.Stderr, "  lsp       Start the language server on stdio\n")
	fmt.Fprintf(os.Stderr, "  version   Print the version\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  derw compile                          # Compile the project in derw.toml\n")
	fmt.Fprintf(os.Stderr, "  derw compile --target elm src/Main.derw\n")
	fmt.Fprintf(os.Stderr, "  derw compile --output /dev/stdout src/Main.derw\n")
	fmt.Fprintf(os.Stderr, "  derw compile --debug --only main src/Main.derw\n")
	fmt.Fprintf(os.Stderr, "  derw format --check src\n")
	fmt.Fprintf(os.Stderr, "\nRun 'derw <command> -h' for the options of a command.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "compile":
		err = handleCompileCommand(args, os.Stdout)
	case "format", "fmt":
		err = handleFormatCommand(args, os.Stdout)
	case "init":
		err = handleInitCommand(args, os.Stdout)
	case "lsp":
		err = handleLspCommand(args)
	case "version", "--version":
		fmt.Printf("derw %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// verbosityFlag registers -v on fs. Call configureLogging after parsing.
func verbosityFlag(fs *flag.FlagSet) *bool {
	return fs.Bool("v", false, "Verbose output")
}

func configureLogging(verbose bool) {
	if verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(-1, nil)
	}
}

func handleLspCommand(args []string) error {
	fs := flag.NewFlagSet("lsp", flag.ExitOnError)
	verbose := verbosityFlag(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: derw lsp [-v]\n\n")
		fmt.Fprintf(os.Stderr, "Speaks the Language Server Protocol on stdin and stdout.\n")
		fmt.Fprintf(os.Stderr, "Logs go to stderr.\n")
	}
	fs.Parse(args)
	configureLogging(*verbose)

	return server.NewLSP().Run()
}
