package judge

import "context"

// Environment is the shared shape of the two test pipelines: prepare state
// bound to one leased sandbox (or two, for the interactive case), then run
// to produce one Result. This is the Go rendering of the "prepare state,
// then run() -> TestResult" trait the reference implementation's
// double_run.rs / test_runner.rs split into a constructor plus a trait
// object.
type Environment interface {
	Run(ctx context.Context) (Result, error)
}
