package pipe

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesFIFOAndCloseRemovesIt(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(p.Path())
	require.NoError(t, err)
	require.True(t, info.Mode()&os.ModeNamedPipe != 0, "expected a FIFO at %s", p.Path())

	path := p.Path()
	require.NoError(t, p.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
