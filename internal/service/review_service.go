package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

// ErrReviewerUnavailable indicates no AI reviewer is configured.
var ErrReviewerUnavailable = errors.New("reviewer unavailable")

// ReviewService attaches optional AI reviews to graded submissions.
type ReviewService interface {
	Review(ctx context.Context, key string, req dto.ReviewRequest) (dto.SubmissionResponse, error)
}

type reviewService struct {
	store     repository.SubmissionStore
	reviewer  ai.Reviewer
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReviewService constructs the review service. A nil reviewer makes every
// call fail with ErrReviewerUnavailable.
func NewReviewService(store repository.SubmissionStore, reviewer ai.Reviewer, validate *validator.Validate, logger zerolog.Logger) ReviewService {
	return &reviewService{
		store:     store,
		reviewer:  reviewer,
		validator: validate,
		logger:    logger.With().Str("component", "review_service").Logger(),
		now:       time.Now,
	}
}

func (s *reviewService) Review(ctx context.Context, key string, req dto.ReviewRequest) (dto.SubmissionResponse, error) {
	if s.reviewer == nil {
		return dto.SubmissionResponse{}, ErrReviewerUnavailable
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if _, err := uuid.Parse(key); err != nil {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	record, err := s.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	review, err := s.reviewer.Review(ctx, ai.ReviewInput{
		StudentName:       record.StudentName,
		TransactionSource: record.TransactionSource,
		PortfolioSource:   record.PortfolioSource,
		ExecutionOutput:   record.ExecutionOutput,
		RubricTotal:       record.TotalScore,
		RubricFeedback:    []string(record.Feedback),
		InstructorNotes:   req.Notes,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("ai review failed")
		return dto.SubmissionResponse{}, fmt.Errorf("review submission: %w", err)
	}

	updated, err := s.store.SaveReview(ctx, key, repository.SubmissionReview{
		Text:       review.Render(),
		Provider:   s.reviewer.Provider(),
		ReviewedAt: s.now().UTC(),
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(updated, true), nil
}
