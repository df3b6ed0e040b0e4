package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestOpenAIReviewerParsesResponse(t *testing.T) {
	var captured openai.ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		content := `{"summary":"Clean menu loop.","strengths":["toString is tidy"],"improvements":["validate negative quantities"],"verdict":"good"}`
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
			Usage: openai.Usage{TotalTokens: 42},
		})
	}))
	defer server.Close()

	reviewer, err := NewOpenAIReviewer(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := reviewer.Review(context.Background(), ReviewInput{
		StudentName:     "Rikin Shah",
		RubricTotal:     96,
		RubricFeedback:  []string{"✅ Code compiled successfully"},
		PortfolioSource: "public class PortfolioManager {}",
	})
	require.NoError(t, err)

	require.Equal(t, "Clean menu loop.", result.Summary)
	require.Equal(t, []string{"validate negative quantities"}, result.Improvements)
	require.Equal(t, ProviderOpenAI, reviewer.Provider())
	require.Contains(t, result.Render(), "Verdict: good")

	require.Len(t, captured.Messages, 2)
	require.Contains(t, captured.Messages[1].Content, "96/100")
	require.Contains(t, captured.Messages[1].Content, "Rikin Shah")
}

func TestNewOpenAIReviewerRequiresKey(t *testing.T) {
	_, err := NewOpenAIReviewer(OpenAIConfig{})
	require.Error(t, err)
}

func TestParseReviewResponseRejectsEmptySummary(t *testing.T) {
	_, err := parseReviewResponse(`{"summary":"  ","verdict":"x"}`)
	require.Error(t, err)

	_, err = parseReviewResponse(`not json`)
	require.Error(t, err)

	result, err := parseReviewResponse(`{"summary":"ok"}`)
	require.NoError(t, err)
	require.Equal(t, "reviewed", result.Verdict)
}
