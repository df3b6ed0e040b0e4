package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"github.com/noah-isme/gema-grader/internal/grading"
)

const (
	defaultRemoteTimeout = 30 * time.Second
	defaultLanguageID    = "java"
)

const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["status", "output"],
  "properties": {
    "status": {"type": "integer"},
    "output": {"type": "string"},
    "error": {"type": ["string", "null"]}
  }
}`

var compiledResponseSchema = jsonschema.MustCompileString("remote_compile_response.json", responseSchema)

// RemoteService describes one remote compilation endpoint.
type RemoteService struct {
	Name       string        `mapstructure:"name" yaml:"name"`
	URL        string        `mapstructure:"url" yaml:"url"`
	LanguageID string        `mapstructure:"language_id" yaml:"language_id"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RatePerMinute caps outgoing requests; zero disables the limit.
	RatePerMinute int `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
}

type remoteRequest struct {
	SourceText string `json:"source_text"`
	LanguageID string `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type remoteResponse struct {
	Status int     `json:"status"`
	Output string  `json:"output"`
	Error  *string `json:"error"`
}

// RemoteRunner posts the combined sources to a compile-and-run web service.
type RemoteRunner struct {
	service RemoteService
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewRemoteRunner constructs a runner for the given service.
func NewRemoteRunner(service RemoteService, logger zerolog.Logger) *RemoteRunner {
	if service.Timeout <= 0 {
		service.Timeout = defaultRemoteTimeout
	}
	if service.LanguageID == "" {
		service.LanguageID = defaultLanguageID
	}
	if service.Name == "" {
		service.Name = service.URL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if service.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(service.RatePerMinute)), 1)
	}

	return &RemoteRunner{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "remote_runner").Str("service", service.Name).Logger(),
	}
}

// Name implements Step.
func (r *RemoteRunner) Name() string {
	return remotePrefix + r.service.Name
}

// Attempt implements Step.
func (r *RemoteRunner) Attempt(ctx context.Context, transactionSource, portfolioSource string) (grading.CompilationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.service.Timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return grading.CompilationResult{}, fmt.Errorf("rate limit: %w", err)
	}

	timeout := r.service.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	agent := fiber.Post(r.service.URL)
	agent.JSON(remoteRequest{
		SourceText: Combine(transactionSource, portfolioSource),
		LanguageID: r.service.LanguageID,
		Stdin:      grading.SyntheticStdin,
	})
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return grading.CompilationResult{}, fmt.Errorf("post %s: %w", r.service.URL, errors.Join(errs...))
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return grading.CompilationResult{}, fmt.Errorf("post %s: unexpected http status %d", r.service.URL, code)
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return grading.CompilationResult{}, fmt.Errorf("decode response: %w", err)
	}
	if err := compiledResponseSchema.Validate(raw); err != nil {
		return grading.CompilationResult{}, fmt.Errorf("malformed response: %w", err)
	}

	var resp remoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return grading.CompilationResult{}, fmt.Errorf("decode response: %w", err)
	}

	errText := ""
	if resp.Error != nil {
		errText = *resp.Error
	}

	switch resp.Status {
	case http.StatusOK:
		result := grading.CompilationResult{
			CompilationSuccess: true,
			ExecutionSuccess:   errText == "",
			ExecutionOutput:    resp.Output,
			CompilationErrors:  errText,
		}
		r.logger.Debug().Bool("executed", result.ExecutionSuccess).Msg("remote compile finished")
		return result, nil
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return grading.CompilationResult{
			CompilationErrors: joinOutput(errText, resp.Output),
		}, nil
	default:
		return grading.CompilationResult{}, fmt.Errorf("remote status %d: %s", resp.Status, errText)
	}
}
