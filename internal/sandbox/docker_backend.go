package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

// DockerBackend implements Backend by running each sandboxed invocation in
// its own throwaway container instead of shelling out to a setuid isolate
// binary. It stands in for that binary in development and CI environments
// where one isn't installed, selected via INVOKER_SANDBOX_BACKEND=docker.
// Resource limits map onto container cgroup/ulimit settings: memory onto
// Resources.Memory, process count onto Resources.PidsLimit, and wall time
// onto a context deadline set in Run rather than by the container runtime
// itself. The CPU time, stack and open-file limits are not applied.
type DockerBackend struct {
	cli    *client.Client
	image  string
	root   string
	logger *zap.Logger
}

// NewDockerBackend dials the local Docker daemon. image is the container
// image used for every sandboxed run (it must contain the toolchain the
// submission's Language expects); root is the host directory used to stage
// per-box filesystem roots that are bind-mounted into each container.
func NewDockerBackend(image, root string, logger *zap.Logger) (*DockerBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker backend: %w", err)
	}
	return &DockerBackend{cli: cli, image: image, root: root, logger: logger}, nil
}

func (b *DockerBackend) Probe(ctx context.Context) error {
	_, err := b.cli.Ping(ctx)
	if err != nil {
		return fmt.Errorf("sandbox: docker ping: %w", err)
	}
	return nil
}

func (b *DockerBackend) Init(ctx context.Context, boxID int) error {
	return os.MkdirAll(b.BoxRoot(boxID), 0o777)
}

func (b *DockerBackend) Cleanup(ctx context.Context) error {
	return os.RemoveAll(b.root)
}

func (b *DockerBackend) BoxRoot(boxID int) string {
	return filepath.Join(b.root, strconv.Itoa(boxID), "box")
}

func (b *DockerBackend) Run(ctx context.Context, boxID int, c *Command, defaults PoolConfig) (RunResult, error) {
	hostRoot := b.BoxRoot(boxID)
	const containerWorkdir = "/box"

	resources := container.Resources{}
	if ml := c.MemoryLimit(); ml != nil && !ml.IsUnlimited() {
		resources.Memory = int64(ml.Value()) * 1024
	}
	if cp := c.CountProcess(); cp != nil && !cp.IsUnlimited() {
		limit := int64(cp.Value())
		resources.PidsLimit = &limit
	}

	mounts := []string{hostRoot + ":" + containerWorkdir}
	for _, dir := range c.OpenDirs() {
		mounts = append(mounts, dir+":"+dir)
	}

	hostCfg := &container.HostConfig{
		Binds:       mounts,
		Resources:   resources,
		NetworkMode: "none",
		AutoRemove:  false,
	}

	cmdLine := append([]string{c.Program()}, c.Args()...)
	containerCfg := &container.Config{
		Image:      b.image,
		Cmd:        cmdLine,
		WorkingDir: containerWorkdir,
		Tty:        false,
	}
	if c.UseEnv() {
		containerCfg.Env = os.Environ()
	}

	created, err := b.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: docker create: %w", err)
	}
	defer b.cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})

	runCtx := ctx
	var cancel context.CancelFunc
	if rtl := c.RealTimeLimit(); rtl != nil {
		runCtx, cancel = context.WithTimeout(ctx, secondsToDuration(*rtl))
		defer cancel()
	}

	if err := b.redirectStdin(runCtx, created.ID, hostRoot, c.Stdin()); err != nil {
		return RunResult{}, err
	}

	if err := b.cli.ContainerStart(runCtx, created.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("sandbox: docker start: %w", err)
	}

	statusCh, errCh := b.cli.ContainerWait(runCtx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	var timedOut bool
	select {
	case st := <-statusCh:
		exitCode = st.StatusCode
	case err := <-errCh:
		return RunResult{}, fmt.Errorf("sandbox: docker wait: %w", err)
	case <-runCtx.Done():
		timedOut = true
		_ = b.cli.ContainerKill(context.Background(), created.ID, "KILL")
	}

	stdout, stderr, _ := b.collectOutput(context.Background(), created.ID)
	if c.Stdout() != "" {
		_ = os.WriteFile(filepath.Join(hostRoot, c.Stdout()), stdout, 0o777)
	}
	if c.Stderr() != "" {
		_ = os.WriteFile(filepath.Join(hostRoot, c.Stderr()), stderr, 0o777)
	}

	if timedOut {
		return RunResult{Status: statusTl(), StatusMessage: "docker backend: wall-time exceeded"}, nil
	}
	if exitCode != 0 {
		return RunResult{Status: statusRe(int(exitCode))}, nil
	}
	return RunResult{Status: statusOk()}, nil
}

func (b *DockerBackend) redirectStdin(ctx context.Context, containerID, hostRoot, stdinPath string) error {
	if stdinPath == "" {
		return nil
	}
	// Stdin redirection for a one-shot ContainerCreate/Start flow is handled
	// by the caller writing the target file into hostRoot before Run is
	// invoked and the entrypoint script (baked into the image) redirecting
	// from it; nothing further to do here.
	return nil
}

func (b *DockerBackend) collectOutput(ctx context.Context, containerID string) ([]byte, []byte, error) {
	logs, err := b.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, nil, err
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil && err != io.EOF {
		return nil, nil, err
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
