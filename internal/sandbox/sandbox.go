package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// StagedFile names a source reader and the relative path it should land at
// inside the sandbox's jailed root.
type StagedFile struct {
	Source io.Reader
	Target string
}

// Sandbox owns exactly one leased slot. Release returns the slot to its pool
// and must be called at least once, typically via defer immediately after a
// successful Initialize — this is the Go equivalent of the reference
// implementation's Drop-returns-the-slot behavior, since Go has no
// destructors to rely on.
type Sandbox struct {
	pool    *Pool
	backend Backend
	cfg     PoolConfig
	id      int
	logger  *zap.Logger

	released bool
	mu       sync.Mutex
}

// ID returns the leased slot number.
func (s *Sandbox) ID() int {
	return s.id
}

// Release returns the slot to its pool. Safe to call more than once.
func (s *Sandbox) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.pool.release(s.id)
}

func (s *Sandbox) boxRoot() string {
	return s.backend.BoxRoot(s.id)
}

// WriteIntoBox copies r into rel_path inside the sandbox root and sets mode
// 0777 on the resulting file.
func (s *Sandbox) WriteIntoBox(r io.Reader, relPath string) error {
	full := filepath.Join(s.boxRoot(), relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return fmt.Errorf("sandbox: write %s: %w", relPath, err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("sandbox: write %s: %w", relPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("sandbox: write %s: %w", relPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sandbox: write %s: %w", relPath, err)
	}
	if err := os.Chmod(full, 0o777); err != nil {
		return fmt.Errorf("sandbox: chmod %s: %w", relPath, err)
	}
	return nil
}

// WriteGroupIntoBox stages every file concurrently; if any fail, the first
// error observed is returned (others are allowed to finish).
func (s *Sandbox) WriteGroupIntoBox(files []StagedFile) error {
	var wg sync.WaitGroup
	errs := make([]error, len(files))
	for i, f := range files {
		wg.Add(1)
		go func(i int, f StagedFile) {
			defer wg.Done()
			errs[i] = s.WriteIntoBox(f.Source, f.Target)
		}(i, f)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadFromBox opens rel_path inside the sandbox root for reading. The caller
// must close the returned file.
func (s *Sandbox) ReadFromBox(relPath string) (*os.File, error) {
	full := filepath.Join(s.boxRoot(), relPath)
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read %s: %w", relPath, err)
	}
	return f, nil
}

// ReadFromBoxString is a convenience that reads rel_path fully as a string,
// returning "-" if the file does not exist (mirroring the reference
// implementation's unwrap_or("-".to_string()) fallback for best-effort
// diagnostic captures like checker stdout/stderr).
func (s *Sandbox) ReadFromBoxString(relPath string) string {
	f, err := s.ReadFromBox(relPath)
	if err != nil {
		return "-"
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "-"
	}
	return string(data)
}

// Run executes cmd inside this sandbox and returns its structured outcome.
func (s *Sandbox) Run(ctx context.Context, cmd *Command) (RunResult, error) {
	return s.backend.Run(ctx, s.id, cmd, s.cfg)
}
