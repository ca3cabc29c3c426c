package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"diver/internal/config"
)

// ErrUnsupported is returned for files the runner has no toolchain for.
var ErrUnsupported = errors.New("no runner for file type")

// Step is one subprocess invocation.
type Step struct {
	Name string
	Args []string
}

func (s Step) String() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// Runner compiles and runs single source files with the configured toolchain.
type Runner struct {
	tc     config.ToolchainConfig
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// execCommand is swapped in tests.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a Runner writing program output to stdout and stderr.
func NewRunner(tc config.ToolchainConfig, stdout, stderr io.Writer) *Runner {
	if tc.BuildDir == "" {
		tc.BuildDir = "build"
	}
	return &Runner{
		tc:          tc,
		stdin:       os.Stdin,
		stdout:      stdout,
		stderr:      stderr,
		execCommand: exec.CommandContext,
	}
}

// Plan returns the steps needed to run path, compiling into the build
// directory for compiled languages.
func (r *Runner) Plan(path string) ([]Step, error) {
	ext := strings.ToLower(filepath.Ext(path))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	bin := filepath.Join(r.tc.BuildDir, stem)

	switch ext {
	case ".py":
		return []Step{{r.tc.Python, []string{path}}}, nil
	case ".js", ".mjs":
		return []Step{{r.tc.Node, []string{path}}}, nil
	case ".ts":
		return []Step{{r.tc.TSNode, []string{path}}}, nil
	case ".go":
		return []Step{{r.tc.Go, []string{"run", path}}}, nil
	case ".c":
		return []Step{{r.tc.GCC, []string{path, "-o", bin}}, {bin, nil}}, nil
	case ".cpp", ".cc", ".cxx":
		return []Step{{r.tc.GPP, []string{path, "-o", bin}}, {bin, nil}}, nil
	case ".rs":
		return []Step{{r.tc.Rustc, []string{path, "-o", bin}}, {bin, nil}}, nil
	case ".java":
		return []Step{
			{r.tc.Javac, []string{"-d", r.tc.BuildDir, path}},
			{r.tc.Java, []string{"-cp", r.tc.BuildDir, stem}},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// Run executes the plan for path, stopping at the first failing step.
func (r *Runner) Run(ctx context.Context, path string) error {
	steps, err := r.Plan(path)
	if err != nil {
		return err
	}
	if len(steps) > 1 {
		if err := os.MkdirAll(r.tc.BuildDir, 0o755); err != nil {
			return fmt.Errorf("create build dir: %w", err)
		}
	}
	for _, s := range steps {
		cmd := r.execCommand(ctx, s.Name, s.Args...)
		cmd.Stdin = r.stdin
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}
