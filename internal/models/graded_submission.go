package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grader/internal/grading"
)

// GradedSubmission is one uploaded homework pair together with its grading result.
type GradedSubmission struct {
	ID                 uint                                       `gorm:"primaryKey" json:"-"`
	Key                string                                     `gorm:"column:submission_key;size:36;uniqueIndex;not null" json:"key"`
	StudentName        string                                     `gorm:"size:255;not null;index" json:"student_name"`
	StudentEmail       string                                     `gorm:"size:255;index" json:"student_email"`
	TransactionSource  string                                     `gorm:"type:text" json:"transaction_source"`
	PortfolioSource    string                                     `gorm:"type:text" json:"portfolio_source"`
	Analysis           datatypes.JSONType[grading.AnalysisReport] `json:"analysis"`
	Grade              datatypes.JSONType[grading.GradeBreakdown] `json:"grade"`
	TotalScore         int                                        `gorm:"index;not null" json:"total_score"`
	Band               string                                     `gorm:"size:32" json:"band"`
	TestResults        datatypes.JSONSlice[grading.TestResult]    `json:"test_results"`
	Feedback           datatypes.JSONSlice[string]                `json:"feedback"`
	CompilationSuccess bool                                       `json:"compilation_success"`
	ExecutionSuccess   bool                                       `json:"execution_success"`
	CompilationErrors  string                                     `gorm:"type:text" json:"compilation_errors"`
	ExecutionOutput    string                                     `gorm:"type:text" json:"execution_output"`
	Backend            string                                     `gorm:"size:128" json:"backend"`
	Rubric             string                                     `gorm:"size:32" json:"rubric"`
	ArchiveURL         string                                     `gorm:"size:512" json:"archive_url"`
	AIReview           string                                     `gorm:"column:ai_review;type:text" json:"ai_review"`
	AIProvider         string                                     `gorm:"column:ai_provider;size:32" json:"ai_provider"`
	AIReviewedAt       *time.Time                                 `gorm:"column:ai_reviewed_at" json:"ai_reviewed_at"`
	CreatedAt          time.Time                                  `json:"created_at"`
	UpdatedAt          time.Time                                  `json:"updated_at"`
}

// NewGradedSubmission flattens a grading result into a storable record.
func NewGradedSubmission(key string, input grading.SubmissionInput, rubric string, result grading.Result) GradedSubmission {
	return GradedSubmission{
		Key:                key,
		StudentName:        input.StudentName,
		StudentEmail:       input.StudentEmail,
		TransactionSource:  input.TransactionSource,
		PortfolioSource:    input.PortfolioSource,
		Analysis:           datatypes.NewJSONType(result.Analysis),
		Grade:              datatypes.NewJSONType(result.Grade),
		TotalScore:         result.Grade.Total,
		Band:               grading.Band(result.Grade.Total),
		TestResults:        datatypes.JSONSlice[grading.TestResult](result.TestResults),
		Feedback:           datatypes.JSONSlice[string](result.Feedback),
		CompilationSuccess: result.Compilation.CompilationSuccess,
		ExecutionSuccess:   result.Compilation.ExecutionSuccess,
		CompilationErrors:  result.Compilation.CompilationErrors,
		ExecutionOutput:    result.Compilation.ExecutionOutput,
		Backend:            result.Compilation.Backend,
		Rubric:             rubric,
	}
}

// Result rebuilds the grading tuple the record was created from.
func (s GradedSubmission) Result() grading.Result {
	return grading.Result{
		Analysis:    s.Analysis.Data(),
		Grade:       s.Grade.Data(),
		TestResults: []grading.TestResult(s.TestResults),
		Feedback:    []string(s.Feedback),
		Compilation: grading.CompilationResult{
			CompilationSuccess: s.CompilationSuccess,
			CompilationErrors:  s.CompilationErrors,
			ExecutionSuccess:   s.ExecutionSuccess,
			ExecutionOutput:    s.ExecutionOutput,
			Backend:            s.Backend,
		},
	}
}

// HasReview reports whether an AI review has been stored.
func (s GradedSubmission) HasReview() bool {
	return s.AIReviewedAt != nil
}
