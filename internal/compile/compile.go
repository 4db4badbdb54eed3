// Package compile implements the one-shot compilation stage that turns
// submitted source into a runnable artifact inside a sandbox before any
// test is scheduled.
package compile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"invoker/internal/manifest"
	"invoker/internal/metrics"
	"invoker/internal/sandbox"
)

const (
	sourceName = "solution.cpp"
	outputName = "solution.out"
	fixedTimeLimit = 10
)

// Outcome is the result of a compile attempt.
type Outcome struct {
	// Ok is true when compilation succeeded and outputPath names the
	// artifact copied out of the sandbox.
	Ok bool
	// CompileError holds the user-visible message when the submission
	// itself failed to compile (maps to a Ce submission result).
	CompileError string
	// InternalError holds a judge-internal diagnostic (compiler crashed,
	// OOM'd, or timed out) distinct from a user compile error; maps to a Te
	// submission result.
	InternalError string
	OutputPath    string
}

// Stage runs the compile step: acquire a sandbox, write source, resolve the
// language's compile template, run it with a fixed 10s limit and unlimited
// files/processes, and copy the artifact out on success.
func Stage(ctx context.Context, pool *sandbox.Pool, lang manifest.Language, source io.Reader, workDir string, logger *zap.Logger) (Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	box, err := pool.Initialize(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile: initialize sandbox: %w", err)
	}
	defer box.Release()

	if err := box.WriteIntoBox(source, sourceName); err != nil {
		return Outcome{}, fmt.Errorf("compile: stage source: %w", err)
	}

	program, args, err := lang.CompileCommand(sourceName, outputName)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile: resolve command: %w", err)
	}

	const stderrFile = "compile_errors"
	cmd := sandbox.NewCommand(program, args...).
		WithTimeLimit(sandbox.Limited(fixedTimeLimit)).
		WithCountFilesLimit(sandbox.Unlimited()).
		WithCountProcessLimit(sandbox.Unlimited()).
		WithEnv(true).
		WithStderr(stderrFile)

	result, err := box.Run(ctx, cmd)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile: run: %w", err)
	}

	stderrText := strings.TrimSpace(box.ReadFromBoxString(stderrFile))

	switch sandbox.Kind(result.Status.Kind) {
	case sandbox.Tl, sandbox.Ml, sandbox.Sg:
		metrics.Get().CompileTotal.WithLabelValues("te").Inc()
		return Outcome{InternalError: stderrText}, nil
	case sandbox.Re:
		metrics.Get().CompileTotal.WithLabelValues("ce").Inc()
		return Outcome{CompileError: stderrText}, nil
	}

	artifact, err := box.ReadFromBox(outputName)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile: read artifact: %w", err)
	}
	defer artifact.Close()

	outPath := filepath.Join(workDir, outputName)
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o777)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile: create output: %w", err)
	}
	if _, err := io.Copy(out, artifact); err != nil {
		out.Close()
		return Outcome{}, fmt.Errorf("compile: copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return Outcome{}, fmt.Errorf("compile: finalize artifact: %w", err)
	}
	if err := os.Chmod(outPath, 0o777); err != nil {
		return Outcome{}, fmt.Errorf("compile: chmod artifact: %w", err)
	}

	metrics.Get().CompileTotal.WithLabelValues("ok").Inc()
	return Outcome{Ok: true, OutputPath: outPath}, nil
}
