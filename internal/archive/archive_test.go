package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.yaml"), []byte("type: standard\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "input"), 0o777))
	require.NoError(t, os.WriteFile(filepath.Join(src, "input", "1.txt"), []byte("3 4\n"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, Pack(&buf, src))

	dst := t.TempDir()
	require.NoError(t, UnpackReader(&buf, dst))

	data, err := os.ReadFile(filepath.Join(dst, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "type: standard\n", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "input", "1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "3 4\n", string(data))
}

func TestUnpackRejectsPathEscape(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	payload := []byte("evil")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escaped.txt",
		Mode: 0o777,
		Size: int64(len(payload)),
	}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	dst := t.TempDir()
	err = UnpackReader(&buf, dst)
	assert.Error(t, err)
}

func TestPackFileAndUnpackFile(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "solution"), []byte("int main(){}"), 0o644))

	archivePath := filepath.Join(t.TempDir(), "sub.tar")
	require.NoError(t, PackFile(archivePath, src))

	dst := t.TempDir()
	require.NoError(t, Unpack(archivePath, dst))

	data, err := os.ReadFile(filepath.Join(dst, "solution"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(data))
}
