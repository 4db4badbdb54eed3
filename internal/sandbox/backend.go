package sandbox

import "context"

// Backend drives the process that actually enforces resource limits for one
// sandboxed run. The isolate-CLI backend is the default; a Docker-based
// backend implements the same contract for environments without a setuid
// jail binary available (see docker_backend.go).
type Backend interface {
	// Probe verifies the backend is usable (e.g. a --version check).
	Probe(ctx context.Context) error
	// Init prepares box boxID for use and returns an error if initialization
	// fails; on failure the caller returns the slot to the pool unused.
	Init(ctx context.Context, boxID int) error
	// Cleanup tears down all boxes. Idempotent.
	Cleanup(ctx context.Context) error
	// BoxRoot returns the jailed root directory for boxID, into and out of
	// which callers stage files directly on the filesystem.
	BoxRoot(boxID int) string
	// Run executes cmd inside boxID and returns its structured outcome.
	Run(ctx context.Context, boxID int, cmd *Command, defaults PoolConfig) (RunResult, error)
}
