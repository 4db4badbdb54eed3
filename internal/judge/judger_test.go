package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoker/internal/archive"
	"invoker/internal/sandbox"
	"invoker/internal/sandboxtest"
)

const twoGroupManifest = `
type: standard
lang: cpp
limits:
  time: 2
  real_time: 4
  memory: 65536
groups:
  - id: 0
    range: {first: 1, last: 1}
    cost: 40
  - id: 1
    range: {first: 2, last: 2}
    cost: 60
    depends: [0]
`

func buildSubmissionArchive(t *testing.T, manifestYAML string) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.yaml"), []byte(manifestYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "solution"), []byte("int main(){}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "checker.out"), []byte("checker"), 0o777))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "input"), 0o777))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "correct"), 0o777))
	for _, n := range []string{"1", "2"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, "input", n+".txt"), []byte("x\n"), 0o666))
		require.NoError(t, os.WriteFile(filepath.Join(src, "correct", n+".txt"), []byte("y\n"), 0o666))
	}

	archivePath := filepath.Join(t.TempDir(), "submission.tar")
	require.NoError(t, archive.PackFile(archivePath, src))
	return archivePath
}

func TestJudgeAllTestsPass(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		if cmd.Program() == "/usr/bin/g++" {
			require.NoError(t, backend.WriteFile(boxID, "solution.out", "binary"))
			return sandboxtest.Ok(), nil
		}
		if cmd.Stdout() == "out.txt" {
			require.NoError(t, backend.WriteFile(boxID, "out.txt", "y\n"))
			return sandboxtest.Ok(), nil
		}
		return sandboxtest.Ok(), nil
	})

	pool := newTestPool(t, backend)
	archivePath := buildSubmissionArchive(t, twoGroupManifest)
	judger := NewJudger(pool, t.TempDir(), nil)

	result, err := judger.Judge(context.Background(), "sub-1", archivePath)
	require.NoError(t, err)
	assert.Equal(t, VerdictOk, result.Verdict)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, []int{40, 60}, result.GroupScores)
}

func TestJudgeFirstGroupFailureBlocksDependent(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		if cmd.Program() == "/usr/bin/g++" {
			require.NoError(t, backend.WriteFile(boxID, "solution.out", "binary"))
			return sandboxtest.Ok(), nil
		}
		if cmd.Stdout() == "out.txt" {
			return sandboxtest.Tl(), nil
		}
		return sandboxtest.Ok(), nil
	})

	pool := newTestPool(t, backend)
	archivePath := buildSubmissionArchive(t, twoGroupManifest)
	judger := NewJudger(pool, t.TempDir(), nil)

	result, err := judger.Judge(context.Background(), "sub-2", archivePath)
	require.NoError(t, err)
	assert.Equal(t, VerdictOk, result.Verdict)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, []int{0, 0}, result.GroupScores)
}

func TestJudgeCompileErrorStopsBeforeTests(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		return sandboxtest.Re(1), nil
	})

	pool := newTestPool(t, backend)
	archivePath := buildSubmissionArchive(t, twoGroupManifest)
	judger := NewJudger(pool, t.TempDir(), nil)

	result, err := judger.Judge(context.Background(), "sub-3", archivePath)
	require.NoError(t, err)
	assert.Equal(t, VerdictCe, result.Verdict)
}

func TestJudgeRejectsConcurrentSubmission(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		return sandboxtest.Ok(), nil
	})

	pool := newTestPool(t, backend)
	archivePath := buildSubmissionArchive(t, twoGroupManifest)
	judger := NewJudger(pool, t.TempDir(), nil)

	judger.sem <- struct{}{}
	defer func() { <-judger.sem }()

	_, err := judger.Judge(context.Background(), "sub-4", archivePath)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestJudgeCancelAllTestsStopsSchedulingFurtherGroups(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	pool := newTestPool(t, backend)
	archivePath := buildSubmissionArchive(t, twoGroupManifest)
	judger := NewJudger(pool, t.TempDir(), nil)

	solutionRuns := 0
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		if cmd.Program() == "/usr/bin/g++" {
			require.NoError(t, backend.WriteFile(boxID, "solution.out", "binary"))
			return sandboxtest.Ok(), nil
		}
		if cmd.Stdout() == "out.txt" {
			solutionRuns++
			require.NoError(t, backend.WriteFile(boxID, "out.txt", "y\n"))
			// Fire STOP as soon as the first test's solution has run, the
			// same point spec scenario 6 fires it relative to the first
			// TEST message.
			judger.CancelAllTests()
			return sandboxtest.Ok(), nil
		}
		return sandboxtest.Ok(), nil
	})

	result, err := judger.Judge(context.Background(), "sub-5", archivePath)
	require.NoError(t, err)
	assert.Equal(t, VerdictOk, result.Verdict)
	assert.Equal(t, 1, solutionRuns, "no further tests should run once cancelled")
	assert.Len(t, result.TestResults, 1)

	result2, err := judger.Judge(context.Background(), "sub-6", archivePath)
	require.NoError(t, err)
	assert.Equal(t, VerdictOk, result2.Verdict)
}
