//go:build integration

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/stickupdate/internal/testutil"
)

const defaultTimeout = 2 * time.Minute

// Harness builds the stickupdate binary once and runs it against scratch
// directories
type Harness struct {
	t      *testing.T
	binary string
	env    []string

	// Dir is the process working directory; a relative manifest path
	// resolves against it
	Dir string
}

// NewHarness builds the binary into a temp dir and returns a harness whose
// HOME and TMPDIR are private to the test
func NewHarness(t *testing.T, ctx context.Context) *Harness {
	t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	binary := filepath.Join(t.TempDir(), "stickupdate")
	t.Logf("Building %s", binary)
	cmd := exec.CommandContext(ctx, "go", "build", "-o", binary, "./cmd/stickupdate")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: t, prefix: "[build] "}
	if err := cmd.Run(); err != nil {
		t.Fatalf("go build: %v", err)
	}

	env := append(os.Environ(),
		"HOME="+t.TempDir(),
		"TMPDIR="+t.TempDir(),
	)
	return &Harness{t: t, binary: binary, env: env, Dir: t.TempDir()}
}

// Result is the outcome of one invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Lines splits stdout into lines without the trailing empty one
func (r Result) Lines() []string {
	out := strings.TrimRight(r.Stdout, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Run executes the binary with args in h.Dir
func (h *Harness) Run(ctx context.Context, args ...string) Result {
	h.t.Helper()
	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = h.Dir
	cmd.Env = h.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			h.t.Fatalf("exec failed: %v", err)
		}
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
}

// MustRun executes the binary and fails the test on a non-zero exit
func (h *Harness) MustRun(ctx context.Context, args ...string) Result {
	h.t.Helper()
	res := h.Run(ctx, args...)
	if res.ExitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			res.ExitCode, res.Stdout, res.Stderr, args)
	}
	return res
}

// Start launches the binary in the background. The returned function
// interrupts it and waits for it to exit.
func (h *Harness) Start(ctx context.Context, args ...string) (stop func() Result) {
	h.t.Helper()
	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = h.Dir
	cmd.Env = h.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		h.t.Fatalf("start: %v", err)
	}

	return func() Result {
		_ = cmd.Process.Signal(os.Interrupt)
		err := cmd.Wait()
		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
	}
}

// WriteManifest writes manifest.txt into h.Dir listing paths
func (h *Harness) WriteManifest(paths ...string) string {
	h.t.Helper()
	path := filepath.Join(h.Dir, "manifest.txt")
	content := strings.Join(paths, "\n")
	if len(paths) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("write manifest: %v", err)
	}
	return path
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

func (r Result) String() string {
	return fmt.Sprintf("exit=%d\nstdout:\n%s\nstderr:\n%s", r.ExitCode, r.Stdout, r.Stderr)
}
