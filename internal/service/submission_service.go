package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidUpload indicates an uploaded file failed validation.
	ErrInvalidUpload = errors.New("invalid upload")
)

const defaultMaxFileKB = 100

// SourceArchiver stores a zipped copy of the uploaded sources and returns its URL.
type SourceArchiver interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// SubmissionGrader grades one submission. *grading.Grader satisfies it.
type SubmissionGrader interface {
	Grade(ctx context.Context, input grading.SubmissionInput) grading.Result
	Rubric() grading.Rubric
}

// SummaryInvalidator drops cached dashboard aggregates.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context)
}

// EventPublisher fans grading events out to connected dashboards.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.GradingEvent)
}

// SubmissionService accepts homework uploads and exposes graded results.
type SubmissionService interface {
	Submit(ctx context.Context, upload dto.SubmissionUpload) (dto.SubmissionResponse, error)
	Get(ctx context.Context, key string) (dto.SubmissionResponse, error)
}

// SubmissionServiceConfig tunes upload validation.
type SubmissionServiceConfig struct {
	MaxFileKB int
}

type submissionService struct {
	store     repository.SubmissionStore
	grader    SubmissionGrader
	archiver  SourceArchiver
	summary   SummaryInvalidator
	events    EventPublisher
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	maxBytes  int64
}

// NewSubmissionService constructs a SubmissionService instance. The archiver,
// invalidator and publisher are optional.
func NewSubmissionService(store repository.SubmissionStore, grader SubmissionGrader, archiver SourceArchiver, summary SummaryInvalidator, events EventPublisher, validate *validator.Validate, logger zerolog.Logger, cfg SubmissionServiceConfig) SubmissionService {
	if cfg.MaxFileKB <= 0 {
		cfg.MaxFileKB = defaultMaxFileKB
	}
	return &submissionService{
		store:     store,
		grader:    grader,
		archiver:  archiver,
		summary:   summary,
		events:    events,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grader/internal/service/submission"),
		maxBytes:  int64(cfg.MaxFileKB) * 1024,
	}
}

func (s *submissionService) Submit(ctx context.Context, upload dto.SubmissionUpload) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit")
	defer span.End()

	upload.StudentName = s.clean(upload.StudentName)
	upload.StudentEmail = strings.ToLower(s.clean(upload.StudentEmail))
	if err := s.validator.Struct(upload); err != nil {
		observability.UploadsRejected().WithLabelValues("validation").Inc()
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, err
	}

	transaction, err := s.readJavaFile("transaction_file", upload.TransactionFile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction file rejected")
		return dto.SubmissionResponse{}, err
	}
	portfolio, err := s.readJavaFile("portfolio_file", upload.PortfolioFile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portfolio file rejected")
		return dto.SubmissionResponse{}, err
	}

	input := grading.SubmissionInput{
		StudentName:       upload.StudentName,
		StudentEmail:      upload.StudentEmail,
		TransactionSource: transaction,
		PortfolioSource:   portfolio,
	}
	result := s.grader.Grade(ctx, input)

	key := uuid.NewString()
	record := models.NewGradedSubmission(key, input, s.grader.Rubric().Name, result)
	span.SetAttributes(
		attribute.String("submission.key", key),
		attribute.Int("submission.total", record.TotalScore),
	)

	if s.archiver != nil {
		if url, err := s.archive(ctx, key, input); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to archive submission sources")
		} else {
			record.ArchiveURL = url
		}
	}

	if err := s.store.Append(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.SubmissionResponse{}, fmt.Errorf("store submission: %w", err)
	}

	if s.summary != nil {
		s.summary.Invalidate(ctx)
	}
	if s.events != nil {
		s.events.Publish(ctx, dto.NewGradingEvent(record))
	}

	s.logger.Info().
		Str("key", key).
		Str("student_email", maskEmail(record.StudentEmail)).
		Int("total", record.TotalScore).
		Str("backend", record.Backend).
		Msg("submission graded and stored")

	return dto.NewSubmissionResponse(record, false), nil
}

func (s *submissionService) Get(ctx context.Context, key string) (dto.SubmissionResponse, error) {
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

	return dto.NewSubmissionResponse(record, false), nil
}

// clean strips markup and decodes the entities the sanitizer emits, so names
// such as O'Neil reach the grader verbatim.
func (s *submissionService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(strings.TrimSpace(value))))
}

func (s *submissionService) readJavaFile(field string, file *multipart.FileHeader) (string, error) {
	if file == nil {
		observability.UploadsRejected().WithLabelValues("missing").Inc()
		return "", fmt.Errorf("%w: %s is required", ErrInvalidUpload, field)
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".java") {
		observability.UploadsRejected().WithLabelValues("extension").Inc()
		return "", fmt.Errorf("%w: %s must be a .java file", ErrInvalidUpload, field)
	}
	if file.Size > s.maxBytes {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return "", fmt.Errorf("%w: %s exceeds %d KB", ErrInvalidUpload, field, s.maxBytes/1024)
	}

	handle, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxBytes+1)); err != nil {
		return "", fmt.Errorf("read %s: %w", field, err)
	}
	if int64(buf.Len()) > s.maxBytes {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		return "", fmt.Errorf("%w: %s exceeds %d KB", ErrInvalidUpload, field, s.maxBytes/1024)
	}
	if buf.Len() == 0 {
		observability.UploadsRejected().WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidUpload, field)
	}

	detected := mimetype.Detect(buf.Bytes())
	if !isTextMime(detected) {
		observability.UploadsRejected().WithLabelValues("type").Inc()
		return "", fmt.Errorf("%w: %s is not a text file (%s)", ErrInvalidUpload, field, detected.String())
	}

	return buf.String(), nil
}

func isTextMime(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (s *submissionService) archive(ctx context.Context, key string, input grading.SubmissionInput) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"TransactionHistory.java": input.TransactionSource,
		"PortfolioManager.java":   input.PortfolioSource,
	} {
		w, err := zw.Create(name)
		if err != nil {
			return "", err
		}
		if _, err := io.WriteString(w, content); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return s.archiver.Upload(ctx, "submission-"+key+".zip", &buf)
}
