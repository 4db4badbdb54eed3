package judge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"invoker/internal/archive"
	"invoker/internal/compile"
	"invoker/internal/manifest"
	"invoker/internal/metrics"
	"invoker/internal/sandbox"
)

// ErrBusy is returned by Judger.Judge when a submission is already running.
// The judger accepts exactly one submission at a time; a second call fails
// fast instead of queueing.
var ErrBusy = errors.New("judge: busy")

// SubmissionResult is the final, scored outcome of one judged submission.
type SubmissionResult struct {
	// Verdict is VerdictCe or VerdictTe on a terminal judge-level failure,
	// or VerdictOk when scoring completed (individual test verdicts may
	// still be non-Ok; Score/GroupScores reflect that).
	Verdict     Verdict
	Message     string
	Score       int
	GroupScores []int
	TestResults []TestOutcome
}

// TestOutcome is one test's Result tagged with its 1-based index and group.
type TestOutcome struct {
	Test    int
	GroupID int
	Result  Result
}

// Judger orchestrates one submission at a time: unpack, parse manifest,
// compile, then run tests group by group honoring group dependencies and
// skipping a group's not-yet-scheduled tests once one test in it has failed.
// Tests already running when that failure is recorded are not stopped.
type Judger struct {
	pool    *sandbox.Pool
	baseDir string
	logger  *zap.Logger

	sem chan struct{} // capacity 1, used as a try-lock

	mu        sync.Mutex
	cancelled bool
}

// NewJudger returns a Judger that stages work under baseDir.
func NewJudger(pool *sandbox.Pool, baseDir string, logger *zap.Logger) *Judger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judger{
		pool:    pool,
		baseDir: baseDir,
		logger:  logger,
		sem:     make(chan struct{}, 1),
	}
}

// CancelAllTests requests cooperative cancellation of the in-flight
// submission, if any. It does not wait for in-flight test runs to observe
// the cancellation — Judge's scheduling loop checks the cancelled flag between
// tests and stops scheduling new ones, but a test already handed to a sandbox runs to
// completion (isolate has no external kill switch short of killing the
// sandbox process tree, which would corrupt the slot for reuse).
func (j *Judger) CancelAllTests() {
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
}

func (j *Judger) resetCancelled() {
	j.mu.Lock()
	j.cancelled = false
	j.mu.Unlock()
}

func (j *Judger) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Judge unpacks archivePath, compiles and tests the submission it contains,
// and returns the final scored result. It returns ErrBusy immediately if
// another submission is already being judged.
func (j *Judger) Judge(ctx context.Context, submissionID string, archivePath string) (SubmissionResult, error) {
	select {
	case j.sem <- struct{}{}:
	default:
		metrics.Get().SubmissionsBusy.Inc()
		return SubmissionResult{}, ErrBusy
	}
	defer func() { <-j.sem }()

	j.resetCancelled()

	logger := j.logger.With(zap.String("submission", submissionID))
	workDir := filepath.Join(j.baseDir, "judge")
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove work dir", zap.Error(err))
		}
	}()

	result, err := j.judge(ctx, logger, workDir, archivePath)
	metrics.Get().SubmissionsTotal.WithLabelValues(string(result.Verdict)).Inc()
	return result, err
}

func (j *Judger) judge(ctx context.Context, logger *zap.Logger, workDir, archivePath string) (SubmissionResult, error) {
	if err := os.MkdirAll(workDir, 0o777); err != nil {
		return SubmissionResult{}, fmt.Errorf("judge: create work dir: %w", err)
	}

	if err := archive.Unpack(archivePath, workDir); err != nil {
		return SubmissionResult{Verdict: VerdictTe, Message: err.Error()}, nil
	}

	man, err := manifest.ParseFile(filepath.Join(workDir, "config.yaml"))
	if err != nil {
		return SubmissionResult{Verdict: VerdictTe, Message: err.Error()}, nil
	}

	sourceFile, err := os.Open(filepath.Join(workDir, "solution"))
	if err != nil {
		return SubmissionResult{Verdict: VerdictTe, Message: err.Error()}, nil
	}
	outcome, err := compile.Stage(ctx, j.pool, man.Lang, sourceFile, workDir, logger)
	sourceFile.Close()
	if err != nil {
		return SubmissionResult{Verdict: VerdictTe, Message: err.Error()}, nil
	}
	if outcome.CompileError != "" {
		return SubmissionResult{Verdict: VerdictCe, Message: outcome.CompileError}, nil
	}
	if outcome.InternalError != "" {
		return SubmissionResult{Verdict: VerdictTe, Message: outcome.InternalError}, nil
	}

	groupScores := make([]int, len(man.Groups))
	blocked := make([]*int, len(man.Groups))
	var blockedMu sync.Mutex

	markBlocked := func(groupID, test int) {
		blockedMu.Lock()
		defer blockedMu.Unlock()
		if blocked[groupID] == nil || test < *blocked[groupID] {
			t := test
			blocked[groupID] = &t
		}
	}
	// isBlocked must see through transitive dependencies, not just direct
	// ones: a group skipped entirely because its own dependency failed
	// never gets a blocked[] entry of its own (no test of its ever ran to
	// fail), so a group depending on *that* group would otherwise see a
	// clean bill and run anyway.
	var isBlockedLocked func(groupID int, seen map[int]bool) bool
	isBlockedLocked = func(groupID int, seen map[int]bool) bool {
		if blocked[groupID] != nil {
			return true
		}
		if seen[groupID] {
			return false
		}
		seen[groupID] = true
		for _, dep := range man.Groups[groupID].Depends {
			if isBlockedLocked(dep, seen) {
				return true
			}
		}
		return false
	}
	isBlocked := func(groupID int) bool {
		blockedMu.Lock()
		defer blockedMu.Unlock()
		return isBlockedLocked(groupID, map[int]bool{})
	}

	var outcomes []TestOutcome
	var outcomesMu sync.Mutex

	for gi, group := range man.Groups {
		if j.isCancelled() {
			break
		}
		var wg sync.WaitGroup
		for test := group.Range.First; test <= group.Range.Last; test++ {
			if isBlocked(gi) || j.isCancelled() {
				continue
			}
			wg.Add(1)
			go func(gi, test int, group manifest.Group) {
				defer wg.Done()
				res, err := j.runTest(ctx, man, gi, test, workDir, logger)
				if err != nil {
					logger.Error("test run failed", zap.Int("test", test), zap.Error(err))
					res = Result{Verdict: VerdictTe, Message: err.Error()}
				}
				metrics.Get().TestsTotal.WithLabelValues(string(res.Verdict)).Inc()
				outcomesMu.Lock()
				outcomes = append(outcomes, TestOutcome{Test: test, GroupID: gi, Result: res})
				outcomesMu.Unlock()
				if !res.Verdict.IsSuccess() {
					markBlocked(gi, test)
				}
			}(gi, test, group)
		}
		wg.Wait()
	}

	// A group that was itself never marked blocked can still owe its score
	// to zero if a dependency is blocked: its tests were never spawned at
	// all, so it had no chance to earn the points either. Reuses the same
	// transitive check the scheduling loop used above.
	blockedMu.Lock()
	effectivelyBlocked := make([]bool, len(man.Groups))
	for i := range man.Groups {
		effectivelyBlocked[i] = isBlockedLocked(i, map[int]bool{})
	}
	blockedMu.Unlock()

	total := 0
	for i, group := range man.Groups {
		if !effectivelyBlocked[i] {
			groupScores[i] = group.Cost
			total += group.Cost
		}
	}

	return SubmissionResult{
		Verdict:     VerdictOk,
		Score:       total,
		GroupScores: groupScores,
		TestResults: outcomes,
	}, nil
}

func (j *Judger) runTest(ctx context.Context, man *manifest.Manifest, groupID, test int, workDir string, logger *zap.Logger) (Result, error) {
	var env Environment
	var err error
	switch man.Type {
	case manifest.TypeInteractive:
		env, err = PrepareInteractive(ctx, j.pool, man.Lang, man.Limits, workDir, test, logger)
	default:
		env, err = PrepareBatch(ctx, j.pool, man.Lang, man.Limits, workDir, test, logger)
	}
	if err != nil {
		return Result{}, err
	}
	return env.Run(ctx)
}
