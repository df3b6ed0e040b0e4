package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-grader/internal/observability"
)

// Runner compiles and executes a submission. Implementations must never fail;
// every problem is reported inside the returned result.
type Runner interface {
	CompileAndRun(ctx context.Context, transactionSource, portfolioSource string) CompilationResult
}

// BackendFailed marks results produced by the internal failure path.
const BackendFailed = "failed"

// Grader runs the full grading pipeline for one submission at a time.
type Grader struct {
	runner     Runner
	calculator Calculator
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewGrader constructs a grader backed by the given runner and rubric.
func NewGrader(runner Runner, rubric Rubric, logger zerolog.Logger) *Grader {
	return &Grader{
		runner:     runner,
		calculator: NewCalculator(rubric),
		logger:     logger.With().Str("component", "grader").Str("rubric", rubric.Name).Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-grader/internal/grading"),
	}
}

// Rubric returns the rubric applied by the grader.
func (g *Grader) Rubric() Rubric {
	return g.calculator.Rubric()
}

// Grade analyzes, runs and scores a submission. It never fails: internal
// errors yield a zero-score result with a single explanatory feedback line.
func (g *Grader) Grade(ctx context.Context, input SubmissionInput) (result Result) {
	ctx, span := g.tracer.Start(ctx, "grading.grade")
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = g.failed(span, fmt.Errorf("panic: %v", r))
		}
		observability.GradingDuration().Observe(time.Since(start).Seconds())
	}()

	var (
		analysis    AnalysisReport
		compilation CompilationResult
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		defer recoverInto(&err, "analyzer")
		analysis = Analyze(input.TransactionSource, input.PortfolioSource, input.StudentName)
		return nil
	})
	group.Go(func() (err error) {
		defer recoverInto(&err, "runner")
		compilation = g.runner.CompileAndRun(groupCtx, input.TransactionSource, input.PortfolioSource)
		return nil
	})
	if err := group.Wait(); err != nil {
		return g.failed(span, err)
	}

	tests := AnalyzeOutput(compilation.ExecutionOutput)
	grade := g.calculator.Calculate(analysis, compilation.CompilationSuccess, compilation.ExecutionSuccess, tests)
	feedback := GenerateFeedback(FeedbackInput{
		Analysis:           analysis,
		Grade:              grade,
		CompilationSuccess: compilation.CompilationSuccess,
		ExecutionSuccess:   compilation.ExecutionSuccess,
		CompilationErrors:  compilation.CompilationErrors,
		ExecutionOutput:    compilation.ExecutionOutput,
		TestResults:        tests,
	})

	span.SetAttributes(
		attribute.String("grading.backend", compilation.Backend),
		attribute.Bool("grading.compiled", compilation.CompilationSuccess),
		attribute.Bool("grading.executed", compilation.ExecutionSuccess),
		attribute.Int("grading.total", grade.Total),
	)
	observability.SubmissionsGraded().WithLabelValues(compilation.Backend, Band(grade.Total)).Inc()
	observability.GradeTotals().Observe(float64(grade.Total))

	g.logger.Info().
		Str("backend", compilation.Backend).
		Bool("compiled", compilation.CompilationSuccess).
		Bool("executed", compilation.ExecutionSuccess).
		Int("total", grade.Total).
		Msg("submission graded")

	return Result{
		Analysis:    analysis,
		Grade:       grade,
		TestResults: tests,
		Feedback:    feedback,
		Compilation: compilation,
	}
}

func (g *Grader) failed(span trace.Span, err error) Result {
	span.RecordError(err)
	span.SetStatus(codes.Error, "grading failed")
	observability.GradingFailures().Inc()
	g.logger.Error().Err(err).Msg("grading aborted by internal failure")
	return FailedResult(err)
}

// FailedResult is the zero-score result reported when grading cannot complete.
func FailedResult(err error) Result {
	return Result{
		Analysis:    EmptyReport(),
		Grade:       GradeBreakdown{},
		TestResults: AnalyzeOutput(""),
		Feedback: []string{
			fmt.Sprintf("❌ Grading could not be completed due to an internal error (%v). Please contact your instructor.", err),
		},
		Compilation: CompilationResult{
			CompilationErrors: err.Error(),
			Backend:           BackendFailed,
		},
	}
}

func recoverInto(err *error, stage string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panic: %v", stage, r)
	}
}
