package ai

import "context"

// ReviewInput contains the graded homework handed to the reviewer.
type ReviewInput struct {
	StudentName       string
	TransactionSource string
	PortfolioSource   string
	ExecutionOutput   string
	RubricTotal       int
	RubricFeedback    []string
	InstructorNotes   string
}

// ReviewResult is the structured narrative review returned by the model. It
// never replaces the rubric score.
type ReviewResult struct {
	Summary      string                 `json:"summary"`
	Strengths    []string               `json:"strengths"`
	Improvements []string               `json:"improvements"`
	Verdict      string                 `json:"verdict"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}

// Reviewer describes an AI model capable of commenting on a submission.
type Reviewer interface {
	Review(ctx context.Context, input ReviewInput) (ReviewResult, error)
	Provider() string
}
