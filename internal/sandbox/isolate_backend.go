package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// IsolateBackend drives the isolate-style jail binary directly as a child
// process, per the documented CLI: --init/--cleanup/--run with limit flags,
// and a --meta file parsed after the run completes.
type IsolateBackend struct {
	exePath string
	cfg     PoolConfig
	logger  *zap.Logger
}

// NewIsolateBackend builds a backend bound to the given jail executable and
// default limits/paths.
func NewIsolateBackend(exePath string, cfg PoolConfig, logger *zap.Logger) *IsolateBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IsolateBackend{exePath: exePath, cfg: cfg, logger: logger}
}

func (b *IsolateBackend) Probe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, b.exePath, "--version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sandbox: isolate --version probe failed: %w (%s)", err, out)
	}
	return nil
}

// writeConfigFile renders the pool config to the path isolate itself expects
// (as documented by the jail binary's own --cg / config resolution), so that
// box-id allocation, uid/gid ranges and root paths match what this backend
// assumes.
func (b *IsolateBackend) writeConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.cfg.configFileText()), 0o644)
}

func (b *IsolateBackend) boxIDFlag(boxID int) string {
	return "--box-id=" + strconv.Itoa(boxID)
}

func (b *IsolateBackend) Init(ctx context.Context, boxID int) error {
	cmd := exec.CommandContext(ctx, b.exePath, "--init", b.boxIDFlag(boxID))
	if out, err := cmd.CombinedOutput(); err != nil {
		b.logger.Warn("sandbox: init failed", zap.Int("box_id", boxID), zap.Error(err), zap.ByteString("output", out))
		return fmt.Errorf("sandbox: init box %d: %w", boxID, err)
	}
	return nil
}

func (b *IsolateBackend) Cleanup(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, b.exePath, "--cleanup")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sandbox: cleanup: %w (%s)", err, out)
	}
	return nil
}

func (b *IsolateBackend) BoxRoot(boxID int) string {
	return filepath.Join(b.cfg.BoxRoot, strconv.Itoa(boxID), "box")
}

// Run builds the full isolate invocation for cmd and parses the resulting
// meta file, per spec §4.3.1's flag table.
func (b *IsolateBackend) Run(ctx context.Context, boxID int, c *Command, defaults PoolConfig) (RunResult, error) {
	metaFile, err := os.CreateTemp("", fmt.Sprintf("isolate-meta-%d-*.txt", boxID))
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: create meta file: %w", err)
	}
	metaPath := metaFile.Name()
	_ = metaFile.Close()
	defer os.Remove(metaPath)

	args := []string{b.boxIDFlag(boxID), "--meta=" + metaPath}

	boxRoot := b.BoxRoot(boxID)

	if c.Stdin() != "" {
		args = append(args, "--stdin="+c.Stdin())
	}
	if c.Stdout() != "" {
		if err := precreateRelative(boxRoot, c.Stdout()); err != nil {
			return RunResult{}, err
		}
		args = append(args, "--stdout="+c.Stdout())
	}
	if c.Stderr() != "" {
		if err := precreateRelative(boxRoot, c.Stderr()); err != nil {
			return RunResult{}, err
		}
		args = append(args, "--stderr="+c.Stderr())
	}

	for _, dir := range c.OpenDirs() {
		args = append(args, "--dir="+dir)
	}

	if tl := c.TimeLimit(); tl != nil && !tl.IsUnlimited() {
		args = append(args, "--time="+formatFloat(tl.Value()))
	}
	if rtl := c.RealTimeLimit(); rtl != nil {
		args = append(args, "--wall-time="+formatFloat(*rtl))
	}

	extraTime := defaults.ExtraTimeDefaultLimit
	if etl := c.ExtraTimeLimit(); etl != nil {
		extraTime = *etl
	}
	args = append(args, "--extra-time="+formatFloat(extraTime))

	if ml := c.MemoryLimit(); ml != nil && !ml.IsUnlimited() {
		args = append(args, "--mem="+strconv.FormatInt(int64(ml.Value()), 10))
	}

	stackLimit := Limited(float64(defaults.StackDefaultLimit))
	if sl := c.StackLimit(); sl != nil {
		stackLimit = *sl
	}
	if !stackLimit.IsUnlimited() {
		args = append(args, "--stack="+strconv.FormatInt(int64(stackLimit.Value()), 10))
	}

	openFilesLimit := Limited(float64(defaults.OpenFilesDefaultLimit))
	if cf := c.CountFiles(); cf != nil {
		openFilesLimit = *cf
	}
	if !openFilesLimit.IsUnlimited() {
		args = append(args, "--open-files="+strconv.FormatInt(int64(openFilesLimit.Value()), 10))
	}

	processLimit := Limited(float64(defaults.ProcessDefaultLimit))
	if cp := c.CountProcess(); cp != nil {
		processLimit = *cp
	}
	if processLimit.IsUnlimited() {
		args = append(args, "--processes")
	} else {
		args = append(args, "--processes="+strconv.FormatInt(int64(processLimit.Value()), 10))
	}

	if c.UseEnv() {
		args = append(args, "--full-env")
	}

	args = append(args, "--run", "--", c.Program())
	args = append(args, c.Args()...)

	cmd := exec.CommandContext(ctx, b.exePath, args...)
	_ = cmd.Run() // isolate's own exit status reflects the sandboxed program, not a tool failure

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: read meta file: %w", err)
	}
	return parseMetaFile(metaBytes)
}

func precreateRelative(boxRoot, relPath string) error {
	if filepath.IsAbs(relPath) {
		return nil
	}
	full := filepath.Join(boxRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return fmt.Errorf("sandbox: precreate %s: %w", relPath, err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY, 0o777)
	if err != nil {
		return fmt.Errorf("sandbox: precreate %s: %w", relPath, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
