package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "review_duration_seconds",
		Help:      "Duration of AI review requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grader",
		Subsystem: "ai",
		Name:      "review_failures_total",
		Help:      "Number of AI review failures",
	}, []string{"model"})
)

// ProviderOpenAI names the OpenAI reviewer on stored reviews.
const ProviderOpenAI = "openai"

// OpenAIConfig defines configuration options for the OpenAI reviewer.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIReviewer implements Reviewer against the OpenAI chat completion API.
type OpenAIReviewer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIReviewer builds a new reviewer using the provided configuration.
func NewOpenAIReviewer(cfg OpenAIConfig) (*OpenAIReviewer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 700
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-grader/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIReviewer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Provider implements Reviewer.
func (e *OpenAIReviewer) Provider() string {
	return ProviderOpenAI
}

// Review sends the review request to OpenAI and parses the response.
func (e *OpenAIReviewer) Review(parent context.Context, input ReviewInput) (ReviewResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.review", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: reviewerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return ReviewResult{}, e.fail(span, fmt.Errorf("openai review: %w", err))
	}

	if len(resp.Choices) == 0 {
		return ReviewResult{}, e.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := parseReviewResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return ReviewResult{}, e.fail(span, err)
	}

	result.Raw = map[string]interface{}{
		"model": resp.Model,
		"usage": resp.Usage,
	}
	e.logger.Debug().Str("model", e.cfg.Model).Int("total_tokens", resp.Usage.TotalTokens).Msg("review completed")

	return result, nil
}

func (e *OpenAIReviewer) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(e.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func reviewerSystemPrompt() string {
	return "You are a teaching assistant reviewing an introductory Java homework: a TransactionHistory value class and a " +
		"PortfolioManager console menu program. A rubric score has already been assigned and must not be changed. Respond " +
		"with a JSON object containing summary, strengths (array of strings), improvements (array of strings) and verdict."
}

func buildUserPrompt(input ReviewInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Student\n")
	builder.WriteString(input.StudentName)
	builder.WriteString(fmt.Sprintf("\n\n## Rubric score\n%d/100\n", input.RubricTotal))
	if len(input.RubricFeedback) > 0 {
		builder.WriteString("\n## Rubric feedback\n")
		builder.WriteString(strings.Join(input.RubricFeedback, "\n"))
		builder.WriteString("\n")
	}
	builder.WriteString("\n## TransactionHistory.java\n")
	builder.WriteString(input.TransactionSource)
	builder.WriteString("\n\n## PortfolioManager.java\n")
	builder.WriteString(input.PortfolioSource)
	builder.WriteString("\n\n## Program Output\n")
	builder.WriteString(input.ExecutionOutput)
	if input.InstructorNotes != "" {
		builder.WriteString("\n\n## Instructor notes\n")
		builder.WriteString(input.InstructorNotes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseReviewResponse(content string) (ReviewResult, error) {
	var data ReviewResult
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return ReviewResult{}, fmt.Errorf("parse review json: %w", err)
	}

	data.Summary = strings.TrimSpace(data.Summary)
	if data.Summary == "" {
		return ReviewResult{}, fmt.Errorf("review json has no summary")
	}
	if data.Verdict == "" {
		data.Verdict = "reviewed"
	}

	return data, nil
}

// Render formats a review as plain text for storage beside the grade.
func (r ReviewResult) Render() string {
	var b strings.Builder
	b.WriteString(r.Summary)
	if len(r.Strengths) > 0 {
		b.WriteString("\n\nStrengths:")
		for _, s := range r.Strengths {
			b.WriteString("\n- " + s)
		}
	}
	if len(r.Improvements) > 0 {
		b.WriteString("\n\nImprovements:")
		for _, s := range r.Improvements {
			b.WriteString("\n- " + s)
		}
	}
	b.WriteString("\n\nVerdict: " + r.Verdict)
	return b.String()
}
