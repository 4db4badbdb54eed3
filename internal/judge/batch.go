package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"invoker/internal/manifest"
	"invoker/internal/sandbox"
)

const (
	batchTargetInput         = "in.txt"
	batchTargetCorrect       = "correct.txt"
	batchTargetOutput        = "out.txt"
	batchTargetCheckerOutput = "checker_out.txt"
	batchTargetCheckerError  = "checker_err.txt"
	batchTargetChecker       = "checker.out"
	batchTargetSolution      = "solution.out"
)

// BatchEnvironment stages a test input, the compiled solution and the
// problem's checker into one sandbox, runs the solution under the
// submission's limits, then runs the checker unlimited against its output.
type BatchEnvironment struct {
	box     *sandbox.Sandbox
	lang    manifest.Language
	limits  manifest.Limits
	workDir string
	testID  int // 1-based
	logger  *zap.Logger
}

// PrepareBatch leases a sandbox and returns an Environment bound to testID.
func PrepareBatch(ctx context.Context, pool *sandbox.Pool, lang manifest.Language, limits manifest.Limits, workDir string, testID int, logger *zap.Logger) (Environment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	box, err := pool.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("judge: batch: initialize sandbox: %w", err)
	}
	return &BatchEnvironment{
		box:     box,
		lang:    lang,
		limits:  limits,
		workDir: workDir,
		testID:  testID,
		logger:  logger.With(zap.Int("test", testID), zap.String("task_type", "STANDARD")),
	}, nil
}

func (e *BatchEnvironment) Run(ctx context.Context) (Result, error) {
	defer e.box.Release()

	inputPath := filepath.Join(e.workDir, "input", fmt.Sprintf("%d.txt", e.testID))
	correctPath := filepath.Join(e.workDir, "correct", fmt.Sprintf("%d.txt", e.testID))
	checkerPath := filepath.Join(e.workDir, batchTargetChecker)
	solutionPath := filepath.Join(e.workDir, batchTargetSolution)

	inputFile, err := os.Open(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: batch: open input: %w", err)
	}
	defer inputFile.Close()
	checkerFile, err := os.Open(checkerPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: batch: open checker: %w", err)
	}
	defer checkerFile.Close()
	solutionFile, err := os.Open(solutionPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: batch: open solution: %w", err)
	}
	defer solutionFile.Close()

	if err := e.box.WriteGroupIntoBox([]sandbox.StagedFile{
		{Source: inputFile, Target: batchTargetInput},
		{Source: checkerFile, Target: batchTargetChecker},
		{Source: solutionFile, Target: batchTargetSolution},
	}); err != nil {
		return Result{}, fmt.Errorf("judge: batch: stage files: %w", err)
	}

	program, args, err := e.lang.RunCommand(batchTargetSolution)
	if err != nil {
		return Result{}, fmt.Errorf("judge: batch: resolve run command: %w", err)
	}

	solutionCmd := sandbox.NewCommand(program, args...).
		WithTimeLimit(sandbox.Limited(e.limits.Time)).
		WithMemoryLimit(sandbox.Limited(float64(e.limits.Memory))).
		WithRealTimeLimit(e.limits.RealTime).
		WithCountProcessLimit(sandbox.Limited(1)).
		WithCountFilesLimit(sandbox.Limited(4)).
		WithStdin(batchTargetInput).
		WithStdout(batchTargetOutput)
	if e.limits.Stack != nil {
		solutionCmd.WithStackLimit(sandbox.Limited(float64(*e.limits.Stack)))
	}

	solutionResult, err := e.box.Run(ctx, solutionCmd)
	if err != nil {
		e.logger.Error("solution run error", zap.Error(err))
		return Result{}, fmt.Errorf("judge: batch: run solution: %w", err)
	}

	output := e.box.ReadFromBoxString(batchTargetOutput)

	if verdict, ok := FromRunStatus(solutionResult.Status); ok {
		return Result{
			Verdict: verdict,
			Time:    solutionResult.Time,
			Memory:  solutionResult.Memory,
			Output:  output,
			Message: fmt.Sprintf("ISOLATE: %s", orDash(solutionResult.StatusMessage)),
		}, nil
	}

	if correctFile, err := os.Open(correctPath); err == nil {
		writeErr := e.box.WriteIntoBox(correctFile, batchTargetCorrect)
		correctFile.Close()
		if writeErr != nil {
			return Result{}, fmt.Errorf("judge: batch: stage correct output: %w", writeErr)
		}
	} else {
		e.logger.Debug("correct file not found")
	}

	checkerCmd := sandbox.NewCommand(
		"./"+batchTargetChecker, batchTargetInput, batchTargetOutput, batchTargetCorrect,
	).
		WithTimeLimit(sandbox.Unlimited()).
		WithMemoryLimit(sandbox.Unlimited()).
		WithStackLimit(sandbox.Unlimited()).
		WithCountFilesLimit(sandbox.Unlimited()).
		WithCountProcessLimit(sandbox.Unlimited()).
		WithStdout(batchTargetCheckerOutput).
		WithStderr(batchTargetCheckerError)

	checkerResult, err := e.box.Run(ctx, checkerCmd)
	if err != nil {
		e.logger.Error("checker run error", zap.Error(err))
		return Result{}, fmt.Errorf("judge: batch: run checker: %w", err)
	}

	checkerOutput := e.box.ReadFromBoxString(batchTargetCheckerOutput)
	checkerError := e.box.ReadFromBoxString(batchTargetCheckerError)

	verdict := CheckerVerdict(checkerResult.Status)
	message := fmt.Sprintf("checker_output: %s\ncheckerError: %s\n'isolate': %s",
		checkerOutput, checkerError, orDash(checkerResult.StatusMessage))

	return Result{
		Verdict: verdict,
		Time:    solutionResult.Time,
		Memory:  solutionResult.Memory,
		Output:  output,
		Message: message,
	}, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
