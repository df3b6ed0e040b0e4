package compiler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	dockerexec "github.com/noah-isme/gema-grader/pkg/docker"
)

// ChainConfig selects the steps placed in front of the simulation fallback.
type ChainConfig struct {
	// Offline skips every real toolchain and grades through simulation only.
	Offline        bool
	DockerEnabled  bool
	DockerHost     string
	Local          LocalConfig
	RemoteServices []RemoteService
	Clock          func() time.Time
}

// NewChain assembles the adapter: local Docker sandbox when the daemon answers,
// then each remote service in order. The returned closer releases the Docker client.
func NewChain(ctx context.Context, cfg ChainConfig, logger zerolog.Logger) (*Adapter, func() error) {
	closer := func() error { return nil }
	simulator := NewSimulator(cfg.Clock)
	if cfg.Offline {
		return NewAdapter(logger, simulator), closer
	}

	var steps []Step
	if cfg.DockerEnabled {
		if executor := connectDocker(ctx, cfg, logger); executor != nil {
			steps = append(steps, NewLocalRunner(executor, cfg.Local, logger))
			closer = executor.Close
		}
	}
	for _, service := range cfg.RemoteServices {
		steps = append(steps, NewRemoteRunner(service, logger))
	}

	adapter := NewAdapter(logger, simulator, steps...)
	logger.Info().Strs("steps", adapter.Steps()).Msg("compiler chain ready")
	return adapter, closer
}

func connectDocker(ctx context.Context, cfg ChainConfig, logger zerolog.Logger) *dockerexec.Sandbox {
	executor, err := dockerexec.NewSandbox(dockerexec.Config{
		Host:          cfg.DockerHost,
		MemoryLimitMB: cfg.Local.MemoryLimitMB,
		CPUShares:     cfg.Local.CPUShares,
		Logger:        logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("docker client unavailable, local compilation disabled")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := executor.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("docker daemon unreachable, local compilation disabled")
		_ = executor.Close()
		return nil
	}

	return executor
}
