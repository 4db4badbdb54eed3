package compile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"invoker/internal/manifest"
	"invoker/internal/sandboxtest"
	"invoker/internal/sandbox"
)

func TestStageSuccessCopiesArtifact(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		_ = backend.WriteFile(boxID, "solution.out", "binary")
		return sandboxtest.Ok(), nil
	})

	pool, err := sandbox.NewPool(context.Background(), backend, sandbox.DefaultPoolConfig(), nil)
	require.NoError(t, err)

	workDir := t.TempDir()
	outcome, err := Stage(context.Background(), pool, manifest.LangCpp, strings.NewReader("int main(){}"), workDir, nil)
	require.NoError(t, err)
	require.True(t, outcome.Ok)
	require.FileExists(t, outcome.OutputPath)
}

func TestStageCompileErrorMapsToCe(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		_ = backend.WriteFile(boxID, "compile_errors", "syntax error")
		return sandboxtest.Re(1), nil
	})

	pool, err := sandbox.NewPool(context.Background(), backend, sandbox.DefaultPoolConfig(), nil)
	require.NoError(t, err)

	outcome, err := Stage(context.Background(), pool, manifest.LangCpp, strings.NewReader("broken"), t.TempDir(), nil)
	require.NoError(t, err)
	require.False(t, outcome.Ok)
	require.Equal(t, "syntax error", outcome.CompileError)
}

func TestStageCompilerCrashMapsToTe(t *testing.T) {
	backend := sandboxtest.NewStubBackend()
	backend.OnRun(func(boxID int, cmd *sandbox.Command) (sandbox.RunResult, error) {
		return sandboxtest.Ml(), nil
	})

	pool, err := sandbox.NewPool(context.Background(), backend, sandbox.DefaultPoolConfig(), nil)
	require.NoError(t, err)

	outcome, err := Stage(context.Background(), pool, manifest.LangCpp, strings.NewReader("x"), t.TempDir(), nil)
	require.NoError(t, err)
	require.False(t, outcome.Ok)
	require.Empty(t, outcome.CompileError)
	require.Equal(t, "-", outcome.InternalError)
}
