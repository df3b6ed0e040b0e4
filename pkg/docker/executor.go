package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWorkingDir  = "/workspace"
	defaultPidsLimit   = 64
	defaultOutputLimit = 256 * 1024
)

var (
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "sandbox",
		Name:      "job_duration_seconds",
		Help:      "Duration of sandboxed javac/java jobs.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"phase"})

	jobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "sandbox",
		Name:      "jobs_total",
		Help:      "Sandboxed jobs by phase and outcome.",
	}, []string{"phase", "outcome"})
)

// ErrUnavailable reports that the Docker daemon could not create or start the
// sandbox. Callers treat it as a missing toolchain rather than a program failure.
var ErrUnavailable = errors.New("docker sandbox unavailable")

// Executor runs one job inside a throwaway container.
type Executor interface {
	Run(ctx context.Context, job Job) (Outcome, error)
}

// Job describes one command run against a bind-mounted workspace.
type Job struct {
	// Phase labels metrics and spans, e.g. "compile" or "run".
	Phase         string
	Image         string
	Cmd           []string
	Env           []string
	Timeout       time.Duration
	Workspace     string
	WorkingDir    string
	MemoryLimitMB int64
	CPUShares     int64
	ReadOnlyFS    bool
}

// Outcome is what the job printed and how it ended.
type Outcome struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
	// Truncated is set when either stream exceeded the output limit.
	Truncated bool
}

// Config groups sandbox configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	PidsLimit     int64
	OutputLimit   int
	WorkingDir    string
	Logger        zerolog.Logger
}

// Sandbox runs untrusted submissions in network-less, capability-free containers.
type Sandbox struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewSandbox constructs a Docker backed sandbox. It does not contact the daemon.
func NewSandbox(cfg Config) (*Sandbox, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkingDir == "" {
		cfg.WorkingDir = defaultWorkingDir
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = defaultPidsLimit
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Sandbox{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/pkg/docker"),
		logger: logger.With().Str("component", "sandbox").Logger(),
	}, nil
}

// Run executes the job and always removes its container. A timeout is reported
// through Outcome.TimedOut together with whatever output was produced.
func (s *Sandbox) Run(parent context.Context, job Job) (Outcome, error) {
	if job.Image == "" {
		return Outcome{}, errors.New("image is required")
	}
	if job.Phase == "" {
		job.Phase = "run"
	}

	ctx, span := s.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.image", job.Image),
		attribute.String("sandbox.phase", job.Phase),
	))
	defer span.End()

	if err := s.ensureImage(ctx, job.Image); err != nil {
		return Outcome{}, s.fail(span, job.Phase, "unavailable", err)
	}

	containerID, err := s.create(ctx, job)
	if err != nil {
		return Outcome{}, s.fail(span, job.Phase, "unavailable", err)
	}
	defer s.remove(containerID)

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return Outcome{}, s.fail(span, job.Phase, "unavailable", fmt.Errorf("%w: container start: %v", ErrUnavailable, err))
	}

	outcome := Outcome{}
	statusCh, errCh := s.client.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		outcome.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		if waitCtx.Err() == nil {
			return Outcome{}, s.fail(span, job.Phase, "error", fmt.Errorf("container wait: %w", err))
		}
		outcome.TimedOut = true
	case <-waitCtx.Done():
		outcome.TimedOut = true
	}
	outcome.Duration = time.Since(start)
	jobDuration.WithLabelValues(job.Phase).Observe(outcome.Duration.Seconds())

	if outcome.TimedOut {
		if parent.Err() != nil {
			return outcome, s.fail(span, job.Phase, "cancelled", parent.Err())
		}
		s.kill(containerID)
		span.SetStatus(codes.Error, "timed out")
	}

	if err := s.collect(containerID, &outcome); err != nil {
		s.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to read container output")
	}

	span.SetAttributes(
		attribute.Int("sandbox.exit_code", outcome.ExitCode),
		attribute.Bool("sandbox.timed_out", outcome.TimedOut),
	)
	jobOutcomes.WithLabelValues(job.Phase, outcomeLabel(outcome)).Inc()

	return outcome, nil
}

// Ping checks that the Docker daemon answers.
func (s *Sandbox) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close shuts down the underlying client.
func (s *Sandbox) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Sandbox) ensureImage(ctx context.Context, ref string) error {
	if _, _, err := s.client.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("%w: inspect image: %v", ErrUnavailable, err)
	}

	s.logger.Info().Str("image", ref).Msg("pulling sandbox image")
	reader, err := s.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: pull image: %v", ErrUnavailable, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("%w: pull image: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Sandbox) create(ctx context.Context, job Job) (string, error) {
	memoryMB := job.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = s.cfg.MemoryLimitMB
	}
	cpuShares := job.CPUShares
	if cpuShares <= 0 {
		cpuShares = s.cfg.CPUShares
	}
	pids := s.cfg.PidsLimit

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: job.ReadOnlyFS,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:    memoryMB * 1024 * 1024,
			CPUShares: cpuShares,
			PidsLimit: &pids,
		},
	}
	if job.ReadOnlyFS {
		hostCfg.Tmpfs = map[string]string{"/tmp": "rw,size=16m"}
	}
	if job.Workspace != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: job.Workspace,
			Target: s.cfg.WorkingDir,
		}}
	}

	workingDir := job.WorkingDir
	if workingDir == "" {
		workingDir = s.cfg.WorkingDir
	}

	resp, err := s.client.ContainerCreate(ctx, &container.Config{
		Image:           job.Image,
		Cmd:             job.Cmd,
		Env:             job.Env,
		WorkingDir:      workingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("%w: container create: %v", ErrUnavailable, err)
	}
	for _, warning := range resp.Warnings {
		s.logger.Debug().Str("container_id", resp.ID).Msg(warning)
	}
	return resp.ID, nil
}

func (s *Sandbox) collect(containerID string, outcome *Outcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := s.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err
	}
	defer logs.Close()

	stdout, stderr, truncated, err := demuxOutput(logs, s.cfg.OutputLimit)
	outcome.Stdout = stdout
	outcome.Stderr = stderr
	outcome.Truncated = truncated
	return err
}

func (s *Sandbox) kill(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.ContainerKill(ctx, containerID, "KILL"); err != nil {
		s.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
	}
}

func (s *Sandbox) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
	}
}

func (s *Sandbox) fail(span trace.Span, phase, outcome string, err error) error {
	jobOutcomes.WithLabelValues(phase, outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func outcomeLabel(outcome Outcome) string {
	switch {
	case outcome.TimedOut:
		return "timeout"
	case outcome.ExitCode != 0:
		return "nonzero_exit"
	default:
		return "ok"
	}
}

// demuxOutput splits Docker's multiplexed log stream, keeping at most limit
// bytes per stream. A student program stuck in a print loop must not exhaust memory.
func demuxOutput(reader io.Reader, limit int) (string, string, bool, error) {
	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	_, err := stdcopy.StdCopy(stdout, stderr, reader)
	return stdout.String(), stderr.String(), stdout.truncated || stderr.truncated, err
}

type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}
