// Package pipe manages scoped filesystem FIFOs used to connect an
// interactor to a solution inside two separate sandboxes.
package pipe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// NamedPipe is a FIFO created under a channel directory with a random name.
// Close removes the FIFO; callers are expected to have already opened and
// closed whatever file descriptors they held.
type NamedPipe struct {
	path   string
	logger *zap.Logger
}

// New creates a FIFO (mode 0777) under dir with a random name and returns a
// handle to it. The caller is responsible for opening it for read/write as
// needed before spawning anything that depends on it existing.
func New(dir string, logger *zap.Logger) (*NamedPipe, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, fmt.Errorf("pipe: create channel dir: %w", err)
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("pipe: generate name: %w", err)
	}
	name := fmt.Sprintf("%d", binary.BigEndian.Uint64(b[:]))
	path := filepath.Join(dir, name)

	cmd := exec.Command("mkfifo", "-m", "777", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pipe: mkfifo %s: %w (%s)", path, err, out)
	}

	return &NamedPipe{path: path, logger: logger}, nil
}

// Path returns the filesystem path of the FIFO.
func (p *NamedPipe) Path() string {
	return p.path
}

// Close removes the FIFO from disk. Safe to call more than once.
func (p *NamedPipe) Close() error {
	if p.path == "" {
		return nil
	}
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		p.logger.Warn("pipe: remove failed", zap.String("path", p.path), zap.Error(err))
		return err
	}
	p.path = ""
	return nil
}
