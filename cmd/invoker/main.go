// Command invoker runs one worker: it leases sandboxes from a jail backend,
// judges submissions delivered either over its websocket connection to a
// manager or passed as file arguments on the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"go.uber.org/zap"

	"invoker/internal/config"
	"invoker/internal/judge"
	"invoker/internal/logging"
	"invoker/internal/sandbox"
	"invoker/internal/transport"
)

func main() {
	logging.Init()
	defer logging.Sync()
	logger := logging.L()

	if err := run(logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	backendKind := os.Getenv("INVOKER_SANDBOX_BACKEND")
	if backendKind != "docker" {
		if err := requireRoot(); err != nil {
			return err
		}
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load worker config: %w", err)
	}

	poolCfg, err := config.LoadPoolConfig(cfg.ConfigDir)
	if err != nil {
		return fmt.Errorf("load pool config: %w", err)
	}
	poolCfg.IsolateExePath = cfg.IsolateExePath

	ctx := context.Background()

	backend, err := buildBackend(backendKind, poolCfg, logger)
	if err != nil {
		return fmt.Errorf("build sandbox backend: %w", err)
	}

	pool, err := sandbox.NewPool(ctx, backend, poolCfg, logger)
	if err != nil {
		return fmt.Errorf("initialize sandbox pool: %w", err)
	}
	defer pool.Clean(ctx)

	judgerWorkDir := cfg.WorkDir
	judger := judge.NewJudger(pool, judgerWorkDir, logger)

	for _, path := range os.Args[1:] {
		judgeArchivePath(ctx, judger, path, logger)
	}

	client := transport.NewClient(cfg.ManagerHost, nil, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to manager: %w", err)
	}
	defer client.Close()

	logger.Info("entering message loop", zap.String("manager_host", cfg.ManagerHost))

	exitCode, runErr := messageLoop(ctx, judger, client, logger)

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := client.Send(transport.Outbound{Type: "EXITED", Code: exitCode, Message: msg}); err != nil {
		logger.Warn("failed to send final EXITED message", zap.Error(err))
	}
	return runErr
}

func buildBackend(kind string, poolCfg sandbox.PoolConfig, logger *zap.Logger) (sandbox.Backend, error) {
	switch kind {
	case "docker":
		image := os.Getenv("INVOKER_DOCKER_IMAGE")
		if image == "" {
			image = "invoker-sandbox:latest"
		}
		return sandbox.NewDockerBackend(image, poolCfg.BoxRoot, logger)
	default:
		return sandbox.NewIsolateBackend(poolCfg.IsolateExePath, poolCfg, logger), nil
	}
}

func requireRoot() error {
	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("determine current user: %w", err)
	}
	if u.Uid != "0" {
		return fmt.Errorf("must be started as root (or with INVOKER_SANDBOX_BACKEND=docker)")
	}
	return nil
}

func messageLoop(ctx context.Context, judger *judge.Judger, client *transport.Client, logger *zap.Logger) (int, error) {
	for {
		in, err := client.Recv()
		if err != nil {
			return 1, fmt.Errorf("receive message: %w", err)
		}

		switch in.Type {
		case "START":
			go judgeSubmission(ctx, judger, in.Data, client, logger)
		case "STOP":
			judger.CancelAllTests()
		case "CLOSE":
			return 0, nil
		default:
			logger.Warn("unhandled inbound message type", zap.String("type", in.Type))
		}
	}
}

func judgeSubmission(ctx context.Context, judger *judge.Judger, data []byte, client *transport.Client, logger *zap.Logger) {
	tmp, err := os.CreateTemp("", "invoker-submission-*.tar")
	if err != nil {
		sendError(client, logger, err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		sendError(client, logger, err)
		return
	}
	tmp.Close()

	result, err := judger.Judge(ctx, tmp.Name(), tmp.Name())
	if err != nil {
		sendOpError(client, logger, err)
		return
	}

	for _, t := range result.TestResults {
		if err := client.Send(transport.Outbound{
			Type:    "TEST",
			TestID:  t.Test,
			Verdict: string(t.Result.Verdict),
			Time:    t.Result.Time,
			Memory:  t.Result.Memory,
			Output:  []byte(t.Result.Output),
		}); err != nil {
			logger.Warn("failed to send test verdict", zap.Error(err))
		}
	}

	out := transport.Outbound{Type: "VERDICT", FinalVerdict: string(result.Verdict)}
	switch result.Verdict {
	case judge.VerdictOk:
		out.Score = result.Score
		out.GroupScores = result.GroupScores
	default:
		out.Message = result.Message
	}
	if err := client.Send(out); err != nil {
		logger.Warn("failed to send final verdict", zap.Error(err))
	}
}

func sendError(client *transport.Client, logger *zap.Logger, err error) {
	if sendErr := client.Send(transport.Outbound{Type: "ERROR", Message: err.Error()}); sendErr != nil {
		logger.Warn("failed to send ERROR message", zap.Error(sendErr))
	}
}

func sendOpError(client *transport.Client, logger *zap.Logger, err error) {
	if sendErr := client.Send(transport.Outbound{Type: "OPERROR", Message: err.Error()}); sendErr != nil {
		logger.Warn("failed to send OPERROR message", zap.Error(sendErr))
	}
}

// judgeArchivePath judges a submission archive passed directly as a CLI
// argument through the same Judger.Judge entry point the transport path uses.
// It runs before the transport is connected, and only logs the outcome: no
// TEST or VERDICT message is sent for it.
func judgeArchivePath(ctx context.Context, judger *judge.Judger, path string, logger *zap.Logger) {
	if _, err := os.Stat(path); err != nil {
		logger.Error("cannot read archive argument", zap.String("path", path), zap.Error(err))
		return
	}

	result, err := judger.Judge(ctx, fmt.Sprintf("cli-%s", path), path)
	if err != nil {
		logger.Error("judging archive argument failed", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("judged archive argument",
		zap.String("path", path),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("score", result.Score),
	)
}
