package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"invoker/internal/manifest"
	"invoker/internal/pipe"
	"invoker/internal/sandbox"
)

const (
	channelDir = "/.invoker"

	interTargetTest       = "test.txt"
	interTargetInteractor = "interactor.out"
	interTargetOutput     = "interactor_out.txt"
	interTargetError      = "interactor_err.txt"
)

// InteractiveEnvironment runs a solution and a problem-provided interactor
// concurrently, connected through two named pipes opened by the parent
// before either child starts (the "FIFO keeper" pattern: without this, the
// interactor's first write can fail with no reader, or the solution's
// momentary descriptor close can look like premature EOF).
type InteractiveEnvironment struct {
	interactorBox *sandbox.Sandbox
	solutionBox   *sandbox.Sandbox
	lang          manifest.Language
	limits        manifest.Limits
	workDir       string
	testID        int
	logger        *zap.Logger
}

// PrepareInteractive leases two sandboxes (interactor, solution) and returns
// an Environment bound to testID.
func PrepareInteractive(ctx context.Context, pool *sandbox.Pool, lang manifest.Language, limits manifest.Limits, workDir string, testID int, logger *zap.Logger) (Environment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	interactorBox, err := pool.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("judge: interactive: initialize interactor sandbox: %w", err)
	}
	solutionBox, err := pool.Initialize(ctx)
	if err != nil {
		interactorBox.Release()
		return nil, fmt.Errorf("judge: interactive: initialize solution sandbox: %w", err)
	}

	return &InteractiveEnvironment{
		interactorBox: interactorBox,
		solutionBox:   solutionBox,
		lang:          lang,
		limits:        limits,
		workDir:       workDir,
		testID:        testID,
		logger:        logger.With(zap.Int("test", testID), zap.String("task_type", "INTERACTIVE")),
	}, nil
}

func (e *InteractiveEnvironment) Run(ctx context.Context) (Result, error) {
	defer e.interactorBox.Release()
	defer e.solutionBox.Release()

	testPath := filepath.Join(e.workDir, "test", fmt.Sprintf("%d.txt", e.testID))
	interactorBinPath := filepath.Join(e.workDir, interTargetInteractor)
	solutionBinPath := filepath.Join(e.workDir, "solution.out")

	testFile, err := os.Open(testPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: open test: %w", err)
	}
	defer testFile.Close()
	interactorFile, err := os.Open(interactorBinPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: open interactor: %w", err)
	}
	defer interactorFile.Close()
	solutionFile, err := os.Open(solutionBinPath)
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: open solution: %w", err)
	}
	defer solutionFile.Close()

	if err := e.interactorBox.WriteGroupIntoBox([]sandbox.StagedFile{
		{Source: testFile, Target: interTargetTest},
		{Source: interactorFile, Target: interTargetInteractor},
	}); err != nil {
		return Result{}, fmt.Errorf("judge: interactive: stage interactor files: %w", err)
	}
	if err := e.solutionBox.WriteIntoBox(solutionFile, "solution.out"); err != nil {
		return Result{}, fmt.Errorf("judge: interactive: stage solution: %w", err)
	}

	solIn, err := pipe.New(channelDir, e.logger)
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: create sol_in pipe: %w", err)
	}
	defer solIn.Close()
	solOut, err := pipe.New(channelDir, e.logger)
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: create sol_out pipe: %w", err)
	}
	defer solOut.Close()

	keeperIn, err := openKeeper(solIn.Path())
	if err != nil {
		return Result{}, err
	}
	defer keeperIn.Close()
	keeperOut, err := openKeeper(solOut.Path())
	if err != nil {
		return Result{}, err
	}
	defer keeperOut.Close()

	runProgram, runArgs, err := e.lang.RunCommand("solution.out")
	if err != nil {
		return Result{}, fmt.Errorf("judge: interactive: resolve run command: %w", err)
	}

	interactorCmd := sandbox.NewCommand("./"+interTargetInteractor, interTargetTest, interTargetOutput).
		WithTimeLimit(sandbox.Limited(e.limits.Time)).
		WithRealTimeLimit(e.limits.RealTime).
		WithMemoryLimit(sandbox.Unlimited()).
		WithStackLimit(sandbox.Unlimited()).
		WithCountProcessLimit(sandbox.Unlimited()).
		WithOpenDir(channelDir).
		WithStdin(solOut.Path()).
		WithStdout(solIn.Path()).
		WithStderr(interTargetError)

	solutionCmd := sandbox.NewCommand(runProgram, runArgs...).
		WithTimeLimit(sandbox.Limited(e.limits.Time)).
		WithMemoryLimit(sandbox.Limited(float64(e.limits.Memory))).
		WithRealTimeLimit(e.limits.RealTime).
		WithCountProcessLimit(sandbox.Limited(1)).
		WithOpenDir(channelDir).
		WithStdin(solIn.Path()).
		WithStdout(solOut.Path())
	if e.limits.Stack != nil {
		solutionCmd.WithStackLimit(sandbox.Limited(float64(*e.limits.Stack)))
	}

	var (
		wg               sync.WaitGroup
		solutionResult   sandbox.RunResult
		interactorResult sandbox.RunResult
		solutionErr      error
		interactorErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		solutionResult, solutionErr = e.solutionBox.Run(ctx, solutionCmd)
	}()
	go func() {
		defer wg.Done()
		interactorResult, interactorErr = e.interactorBox.Run(ctx, interactorCmd)
	}()
	wg.Wait()

	if solutionErr != nil {
		return Result{}, fmt.Errorf("judge: interactive: run solution: %w", solutionErr)
	}
	if interactorErr != nil {
		return Result{}, fmt.Errorf("judge: interactive: run interactor: %w", interactorErr)
	}

	interactorOutput := e.interactorBox.ReadFromBoxString(interTargetOutput)
	interactorError := e.interactorBox.ReadFromBoxString(interTargetError)

	if verdict, ok := FromRunStatus(solutionResult.Status); ok {
		return Result{
			Verdict: verdict,
			Time:    solutionResult.Time,
			Memory:  solutionResult.Memory,
			Output:  interactorOutput,
			Message: fmt.Sprintf("ISOLATE: %s\nINTERACTOR_ERRORS: %s", orDash(solutionResult.StatusMessage), interactorError),
		}, nil
	}

	verdict := InteractorVerdict(interactorResult.Status)
	return Result{
		Verdict: verdict,
		Time:    solutionResult.Time,
		Memory:  solutionResult.Memory,
		Output:  interactorOutput,
		Message: fmt.Sprintf("interactor_output: %s\ninteractor_error: %s", interactorOutput, interactorError),
	}, nil
}

// openKeeper opens path for read+write without blocking on a peer, keeping
// the FIFO from EOF-ing or rejecting the first write before both children
// have their own ends open.
func openKeeper(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		return nil, fmt.Errorf("judge: interactive: open pipe keeper %s: %w", path, err)
	}
	return f, nil
}
