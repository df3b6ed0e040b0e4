package dto

import (
	"math"
	"mime/multipart"
	"time"

	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes page counts for a listing.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	pages := 0
	if pageSize > 0 {
		pages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: pages}
}

// SubmissionUpload is the multipart homework upload.
type SubmissionUpload struct {
	StudentName     string                `validate:"required,min=2,max=120"`
	StudentEmail    string                `validate:"omitempty,email,max=255"`
	TransactionFile *multipart.FileHeader `validate:"required"`
	PortfolioFile   *multipart.FileHeader `validate:"required"`
}

// SubmissionSources carries the uploaded source text.
type SubmissionSources struct {
	TransactionHistory string `json:"transaction_history"`
	PortfolioManager   string `json:"portfolio_manager"`
}

// ReviewResponse is the stored AI review of a submission.
type ReviewResponse struct {
	Text       string    `json:"text"`
	Provider   string    `json:"provider"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// SubmissionResponse is a graded submission as returned by the API.
type SubmissionResponse struct {
	Key          string                    `json:"key"`
	StudentName  string                    `json:"student_name"`
	StudentEmail string                    `json:"student_email,omitempty"`
	Grade        grading.GradeBreakdown    `json:"grade"`
	Band         string                    `json:"band"`
	Feedback     []string                  `json:"feedback"`
	TestResults  []grading.TestResult      `json:"test_results"`
	Analysis     grading.AnalysisReport    `json:"analysis"`
	Compilation  grading.CompilationResult `json:"compilation"`
	Rubric       string                    `json:"rubric"`
	ArchiveURL   string                    `json:"archive_url,omitempty"`
	Sources      *SubmissionSources        `json:"sources,omitempty"`
	Review       *ReviewResponse           `json:"review,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// NewSubmissionResponse maps a stored record. Sources and reviews are only
// included for instructor views.
func NewSubmissionResponse(record models.GradedSubmission, detailed bool) SubmissionResponse {
	result := record.Result()
	response := SubmissionResponse{
		Key:          record.Key,
		StudentName:  record.StudentName,
		StudentEmail: record.StudentEmail,
		Grade:        result.Grade,
		Band:         record.Band,
		Feedback:     result.Feedback,
		TestResults:  result.TestResults,
		Analysis:     result.Analysis,
		Compilation:  result.Compilation,
		Rubric:       record.Rubric,
		ArchiveURL:   record.ArchiveURL,
		CreatedAt:    record.CreatedAt,
	}
	if response.Feedback == nil {
		response.Feedback = []string{}
	}
	if response.TestResults == nil {
		response.TestResults = []grading.TestResult{}
	}
	if detailed {
		response.Sources = &SubmissionSources{
			TransactionHistory: record.TransactionSource,
			PortfolioManager:   record.PortfolioSource,
		}
		if review := NewReviewResponse(record); review != nil {
			response.Review = review
		}
	}
	return response
}

// NewReviewResponse returns nil when the submission has not been reviewed.
func NewReviewResponse(record models.GradedSubmission) *ReviewResponse {
	if !record.HasReview() {
		return nil
	}
	return &ReviewResponse{
		Text:       record.AIReview,
		Provider:   record.AIProvider,
		ReviewedAt: *record.AIReviewedAt,
	}
}

// SubmissionListRequest defines filters for the dashboard listing.
type SubmissionListRequest struct {
	Search   string `validate:"max=120"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=100"`
}

// SubmissionSummaryItem is one row of the dashboard listing.
type SubmissionSummaryItem struct {
	Key                string    `json:"key"`
	StudentName        string    `json:"student_name"`
	StudentEmail       string    `json:"student_email"`
	Total              int       `json:"total"`
	Band               string    `json:"band"`
	CompilationSuccess bool      `json:"compilation_success"`
	ExecutionSuccess   bool      `json:"execution_success"`
	Backend            string    `json:"backend"`
	Reviewed           bool      `json:"reviewed"`
	CreatedAt          time.Time `json:"created_at"`
}

// SubmissionListResponse wraps a paginated listing.
type SubmissionListResponse struct {
	Items      []SubmissionSummaryItem `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewSubmissionSummaryItem maps a record to a listing row.
func NewSubmissionSummaryItem(record models.GradedSubmission) SubmissionSummaryItem {
	return SubmissionSummaryItem{
		Key:                record.Key,
		StudentName:        record.StudentName,
		StudentEmail:       record.StudentEmail,
		Total:              record.TotalScore,
		Band:               record.Band,
		CompilationSuccess: record.CompilationSuccess,
		ExecutionSuccess:   record.ExecutionSuccess,
		Backend:            record.Backend,
		Reviewed:           record.HasReview(),
		CreatedAt:          record.CreatedAt,
	}
}

// DashboardSummary aggregates every graded submission.
type DashboardSummary struct {
	Count              int64          `json:"count"`
	AverageScore       float64        `json:"average_score"`
	MinScore           int            `json:"min_score"`
	MaxScore           int            `json:"max_score"`
	BandDistribution   map[string]int `json:"band_distribution"`
	CompileSuccessRate float64        `json:"compile_success_rate"`
	BackendCounts      map[string]int `json:"backend_counts"`
	GeneratedAt        time.Time      `json:"generated_at"`
	CacheHit           bool           `json:"cache_hit"`
}

// LoginRequest is the professor login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// ProfessorResponse describes an authenticated professor.
type ProfessorResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Professor ProfessorResponse `json:"professor"`
}

// ProfessorCreateRequest registers an instructor account.
type ProfessorCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=professor admin"`
}

// ReviewRequest asks for an AI review of a submission.
type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// GradingEvent is broadcast to dashboards whenever a submission is graded.
type GradingEvent struct {
	Type        string    `json:"type"`
	Key         string    `json:"key"`
	StudentName string    `json:"student_name"`
	Total       int       `json:"total"`
	Band        string    `json:"band"`
	Backend     string    `json:"backend"`
	GradedAt    time.Time `json:"graded_at"`
}

// GradingEventGraded is the type of GradingEvent emitted after grading.
const GradingEventGraded = "submission.graded"

// NewGradingEvent builds the event for a stored submission.
func NewGradingEvent(record models.GradedSubmission) GradingEvent {
	return GradingEvent{
		Type:        GradingEventGraded,
		Key:         record.Key,
		StudentName: record.StudentName,
		Total:       record.TotalScore,
		Band:        record.Band,
		Backend:     record.Backend,
		GradedAt:    record.CreatedAt,
	}
}
