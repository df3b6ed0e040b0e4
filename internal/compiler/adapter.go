package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/observability"
)

// ErrToolchainUnavailable signals that a step could not attempt the build at all
// and the adapter should move on to the next one.
var ErrToolchainUnavailable = errors.New("toolchain unavailable")

// Backend names recorded on results.
const (
	BackendLocal     = "local"
	BackendSimulated = "simulated"
	remotePrefix     = "remote:"
)

// Step is one link of the fallback chain. A returned error means the step
// produced nothing usable; a returned result is authoritative, including
// compilation failures.
type Step interface {
	Name() string
	Attempt(ctx context.Context, transactionSource, portfolioSource string) (grading.CompilationResult, error)
}

// Adapter tries each step in order and falls back to simulation when all fail.
type Adapter struct {
	steps    []Step
	fallback *Simulator
	logger   zerolog.Logger
}

// NewAdapter constructs the fallback chain. A nil simulator uses the wall clock.
func NewAdapter(logger zerolog.Logger, fallback *Simulator, steps ...Step) *Adapter {
	if fallback == nil {
		fallback = NewSimulator(nil)
	}
	return &Adapter{
		steps:    steps,
		fallback: fallback,
		logger:   logger.With().Str("component", "compiler_adapter").Logger(),
	}
}

// Steps returns the names of the configured steps, simulation excluded.
func (a *Adapter) Steps() []string {
	names := make([]string, 0, len(a.steps))
	for _, step := range a.steps {
		names = append(names, step.Name())
	}
	return names
}

// CompileAndRun never fails. Whatever the chain observes is folded into the result.
func (a *Adapter) CompileAndRun(ctx context.Context, transactionSource, portfolioSource string) grading.CompilationResult {
	for _, step := range a.steps {
		if ctx.Err() != nil {
			a.logger.Warn().Err(ctx.Err()).Msg("context done, skipping to simulation")
			break
		}

		result, err := a.attempt(ctx, step, transactionSource, portfolioSource)
		if err != nil {
			outcome := "error"
			if errors.Is(err, ErrToolchainUnavailable) {
				outcome = "unavailable"
			}
			observability.CompilerAttempts().WithLabelValues(step.Name(), outcome).Inc()
			a.logger.Warn().Err(err).Str("backend", step.Name()).Msg("compile step failed, trying next")
			continue
		}

		result.Backend = step.Name()
		observability.CompilerAttempts().WithLabelValues(step.Name(), outcomeOf(result)).Inc()
		return result
	}

	result := a.fallback.Simulate(transactionSource, portfolioSource)
	observability.CompilerAttempts().WithLabelValues(BackendSimulated, outcomeOf(result)).Inc()
	a.logger.Info().Bool("compiled", result.CompilationSuccess).Msg("using simulated compilation")
	return result
}

func (a *Adapter) attempt(ctx context.Context, step Step, transactionSource, portfolioSource string) (result grading.CompilationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", step.Name(), r)
		}
	}()
	return step.Attempt(ctx, transactionSource, portfolioSource)
}

func outcomeOf(result grading.CompilationResult) string {
	switch {
	case !result.CompilationSuccess:
		return "compile_error"
	case !result.ExecutionSuccess:
		return "runtime_error"
	default:
		return "success"
	}
}
