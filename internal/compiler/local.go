package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/grading"
	dockerexec "github.com/noah-isme/gema-grader/pkg/docker"
)

const (
	defaultJavaImage      = "eclipse-temurin:17-jdk-alpine"
	defaultCompileTimeout = 10 * time.Second
	defaultRunTimeout     = 15 * time.Second
	stdinFileName         = "stdin.txt"
	sandboxDir            = "/workspace"
)

// LocalConfig tunes the Docker sandbox used by LocalRunner.
type LocalConfig struct {
	Image          string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	MemoryLimitMB  int64
	CPUShares      int64
	WorkspaceRoot  string
}

// LocalRunner compiles and runs submissions with javac/java inside a container.
type LocalRunner struct {
	executor dockerexec.Executor
	cfg      LocalConfig
	logger   zerolog.Logger
}

// NewLocalRunner constructs a sandboxed local runner.
func NewLocalRunner(executor dockerexec.Executor, cfg LocalConfig, logger zerolog.Logger) *LocalRunner {
	if cfg.Image == "" {
		cfg.Image = defaultJavaImage
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = defaultCompileTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	return &LocalRunner{
		executor: executor,
		cfg:      cfg,
		logger:   logger.With().Str("component", "local_runner").Logger(),
	}
}

// Name implements Step.
func (r *LocalRunner) Name() string {
	return BackendLocal
}

// Attempt implements Step.
func (r *LocalRunner) Attempt(ctx context.Context, transactionSource, portfolioSource string) (grading.CompilationResult, error) {
	if r.executor == nil {
		return grading.CompilationResult{}, fmt.Errorf("%w: no docker executor configured", ErrToolchainUnavailable)
	}

	workspace, err := os.MkdirTemp(r.cfg.WorkspaceRoot, "grader-")
	if err != nil {
		return grading.CompilationResult{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	transactionFile := ClassName(transactionSource, "TransactionHistory") + ".java"
	portfolioFile := ClassName(portfolioSource, "PortfolioManager") + ".java"
	files := map[string]string{
		transactionFile: transactionSource,
		portfolioFile:   portfolioSource,
		stdinFileName:   grading.SyntheticStdin,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(workspace, name), []byte(content), 0o644); err != nil {
			return grading.CompilationResult{}, fmt.Errorf("write %s: %w", name, err)
		}
	}

	compiled, err := r.executor.Run(ctx, r.job("compile", workspace, r.cfg.CompileTimeout,
		[]string{"javac", "-encoding", "UTF-8", transactionFile, portfolioFile}))
	switch {
	case compiled.TimedOut:
		return grading.CompilationResult{
			CompilationErrors: fmt.Sprintf("compilation timed out after %s", r.cfg.CompileTimeout),
		}, nil
	case err != nil:
		return grading.CompilationResult{}, unavailable(err)
	case compiled.ExitCode != 0:
		return grading.CompilationResult{
			CompilationErrors: joinOutput(compiled.Stderr, compiled.Stdout),
		}, nil
	}

	entry := MainClass(transactionSource, portfolioSource, "PortfolioManager")
	run, err := r.executor.Run(ctx, r.job("run", workspace, r.cfg.RunTimeout,
		[]string{"sh", "-c", fmt.Sprintf("java -cp . %s < %s", entry, stdinFileName)}))
	if run.Truncated {
		r.logger.Warn().Str("entry", entry).Msg("program output exceeded the sandbox limit and was truncated")
	}
	switch {
	case run.TimedOut:
		return grading.CompilationResult{
			CompilationSuccess: true,
			CompilationErrors:  joinOutput(run.Stderr, fmt.Sprintf("execution timed out after %s", r.cfg.RunTimeout)),
			ExecutionOutput:    run.Stdout,
		}, nil
	case err != nil:
		return grading.CompilationResult{}, unavailable(err)
	case run.ExitCode != 0:
		r.logger.Debug().Int("exit_code", run.ExitCode).Msg("submission exited with failure")
		return grading.CompilationResult{
			CompilationSuccess: true,
			CompilationErrors:  joinOutput(run.Stderr, fmt.Sprintf("process exited with code %d", run.ExitCode)),
			ExecutionOutput:    run.Stdout,
		}, nil
	}

	return grading.CompilationResult{
		CompilationSuccess: true,
		ExecutionSuccess:   true,
		ExecutionOutput:    run.Stdout,
	}, nil
}

func (r *LocalRunner) job(phase, workspace string, timeout time.Duration, cmd []string) dockerexec.Job {
	return dockerexec.Job{
		Phase:         phase,
		Image:         r.cfg.Image,
		Cmd:           cmd,
		Timeout:       timeout,
		Workspace:     workspace,
		WorkingDir:    sandboxDir,
		MemoryLimitMB: r.cfg.MemoryLimitMB,
		CPUShares:     r.cfg.CPUShares,
	}
}

func unavailable(err error) error {
	if errors.Is(err, ErrToolchainUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrToolchainUnavailable, err)
}

func joinOutput(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
