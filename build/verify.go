package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrVerifyFailed is returned when the verifier rejects generated code.
var ErrVerifyFailed = errors.New("generated code did not type check")

// Verifier checks generated TypeScript. Rejections wrap ErrVerifyFailed;
// any other error means the check itself could not run.
type Verifier interface {
	Verify(ctx context.Context, source string) error
}

// Tsc verifies with the TypeScript compiler.
type Tsc struct {
	// Command defaults to "tsc".
	Command string
	Args    []string
}

// Verify writes source to a scratch file and runs tsc --noEmit on it.
func (t *Tsc) Verify(ctx context.Context, source string) error {
	command := t.Command
	if command == "" {
		command = "tsc"
	}

	dir, err := os.MkdirTemp("", "derw-verify-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "main.ts")
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	args := append(append([]string{}, t.Args...), "--noEmit", path)
	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w:\n%s", ErrVerifyFailed, strings.TrimSpace(string(out)))
	}
	return fmt.Errorf("running %s: %w", command, err)
}

// verify runs the verifier over every generated output in parallel and
// reports the results in dependency order: a file's imports come before it.
func (b *Builder) verify(ctx context.Context) error {
	results := make([]error, len(b.jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, j := range b.jobs {
		g.Go(func() error {
			err := b.opts.Verifier.Verify(ctx, j.output)
			if err != nil && !errors.Is(err, ErrVerifyFailed) {
				return fmt.Errorf("verifying %s: %w", j.file, err)
			}
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, j := range b.jobs {
		if results[i] != nil {
			fmt.Fprintf(b.out, "Failed to compile %s due to\n%v\n", j.file, results[i])
			b.result.Unverified = append(b.result.Unverified, j.file)
			continue
		}
		fmt.Fprintf(b.out, "Successfully compiled %s\n", j.file)
	}
	return nil
}
