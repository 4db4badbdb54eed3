package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoker/internal/manifest"
	"invoker/internal/sandbox"
	"invoker/internal/sandboxtest"
)

func newTestPool(t *testing.T, backend *sandboxtest.StubBackend) *sandbox.Pool {
	t.Helper()
	cfg := sandbox.DefaultPoolConfig()
	cfg.SandboxesCount = 4
	pool, err := sandbox.NewPool(context.Background(), backend, cfg, nil)
	require.NoError(t, err)
	return pool
}

func writeBatchFixtures(t *testing.T, workDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "input"), 0o777))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "correct"), 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "input", "1.txt"), []byte("3 4\n"), 0o666))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "correct", "1.txt"), []byte("7\n"), 0o666))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "checker.out"), []byte("checker"), 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "solution.out"), []byte("solution"), 0o777))
}

func TestBatchEnvironmentAccepted(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		require.NoError(t, backend.WriteFile(boxID, "out.txt", "7\n"))
		return sandboxtest.Ok(), nil
	})
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		require.NoError(t, backend.WriteFile(boxID, "checker_out.txt", "ok"))
		return sandboxtest.Ok(), nil
	})

	pool := newTestPool(t, backend)
	workDir := t.TempDir()
	writeBatchFixtures(t, workDir)
	lang := manifest.LangCpp
	limits := manifest.Limits{Time: 2, RealTime: 4, Memory: 65536}

	env, err := PrepareBatch(context.Background(), pool, lang, limits, workDir, 1, nil)
	require.NoError(t, err)
	res, err := env.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VerdictOk, res.Verdict)
}

func TestBatchEnvironmentTimeLimitShortCircuitsChecker(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		return sandboxtest.Tl(), nil
	})

	pool := newTestPool(t, backend)
	workDir := t.TempDir()
	writeBatchFixtures(t, workDir)
	lang := manifest.LangCpp
	limits := manifest.Limits{Time: 1, RealTime: 2, Memory: 65536}

	env, err := PrepareBatch(context.Background(), pool, lang, limits, workDir, 1, nil)
	require.NoError(t, err)
	res, err := env.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VerdictTl, res.Verdict)
}

func TestBatchEnvironmentWrongAnswer(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		require.NoError(t, backend.WriteFile(boxID, "out.txt", "8\n"))
		return sandboxtest.Ok(), nil
	})
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		return sandboxtest.Re(1), nil
	})

	pool := newTestPool(t, backend)
	workDir := t.TempDir()
	writeBatchFixtures(t, workDir)
	lang := manifest.LangCpp
	limits := manifest.Limits{Time: 2, RealTime: 4, Memory: 65536}

	env, err := PrepareBatch(context.Background(), pool, lang, limits, workDir, 1, nil)
	require.NoError(t, err)
	res, err := env.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VerdictWa, res.Verdict)
}
