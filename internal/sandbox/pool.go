package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"invoker/internal/metrics"
	"invoker/internal/resourcepool"
)

// Pool leases numbered, OS-isolated execution slots and enforces per-run
// resource policy through a Backend. Construction verifies the backend is
// usable and seeds a resourcepool.Pool[int] with every slot id.
type Pool struct {
	backend Backend
	cfg     PoolConfig
	slots   *resourcepool.Pool[int]
	logger  *zap.Logger
}

// NewPool probes backend and builds a pool of cfg.SandboxesCount slots.
func NewPool(ctx context.Context, backend Backend, cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := backend.Probe(ctx); err != nil {
		return nil, fmt.Errorf("sandbox: pool construction: %w", err)
	}

	ids := make([]int, cfg.SandboxesCount)
	for i := range ids {
		ids[i] = i
	}

	metrics.Get().SandboxPoolSize.Set(float64(cfg.SandboxesCount))
	metrics.Get().SandboxPoolFree.Set(float64(cfg.SandboxesCount))

	return &Pool{
		backend: backend,
		cfg:     cfg,
		slots:   resourcepool.New(ids),
		logger:  logger,
	}, nil
}

// ErrSandboxInit marks a jail --init failure. The caller has already had its
// slot returned to the pool by the time this error is observed.
var ErrSandboxInit = fmt.Errorf("sandbox: initialize_sandbox failed")

// Initialize leases a slot and initializes it via the backend, returning a
// Sandbox bound to that slot. On failure the slot is returned to the pool and
// ErrSandboxInit is returned (wrapped with the underlying cause).
func (p *Pool) Initialize(ctx context.Context) (*Sandbox, error) {
	id, err := p.slots.Take(ctx)
	if err != nil {
		return nil, err
	}
	metrics.Get().SandboxPoolFree.Set(float64(p.slots.Len()))

	if err := p.backend.Init(ctx, id); err != nil {
		p.slots.Put(id)
		metrics.Get().SandboxPoolFree.Set(float64(p.slots.Len()))
		metrics.Get().SandboxInitFails.Inc()
		return nil, fmt.Errorf("%w: %v", ErrSandboxInit, err)
	}

	return &Sandbox{
		pool:    p,
		backend: p.backend,
		cfg:     p.cfg,
		id:      id,
		logger:  p.logger.With(zap.Int("box_id", id)),
	}, nil
}

// Clean invokes the backend's cleanup. Idempotent.
func (p *Pool) Clean(ctx context.Context) error {
	return p.backend.Cleanup(ctx)
}

func (p *Pool) release(id int) {
	p.slots.Put(id)
	metrics.Get().SandboxPoolFree.Set(float64(p.slots.Len()))
}
