package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/compiler"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

const sampleStudent = "Rikin Shah"

func loadSampleSources(t *testing.T) ([]byte, []byte) {
	t.Helper()

	transaction, err := os.ReadFile(filepath.Join("..", "grading", "testdata", "TransactionHistory.java"))
	require.NoError(t, err)
	portfolio, err := os.ReadFile(filepath.Join("..", "grading", "testdata", "PortfolioManager.java"))
	require.NoError(t, err)
	return transaction, portfolio
}

// formFile round-trips content through a multipart request so the header
// behaves like one parsed by the HTTP layer.
func formFile(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	t.Cleanup(func() { _ = req.MultipartForm.RemoveAll() })

	return req.MultipartForm.File[field][0]
}

func simulatedGrader() *grading.Grader {
	clock := func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }
	adapter := compiler.NewAdapter(zerolog.Nop(), compiler.NewSimulator(clock))
	return grading.NewGrader(adapter, grading.StrictRubric, zerolog.Nop())
}

func seedGraded(t *testing.T, store repository.SubmissionStore, key, name string, total int, backend string, createdAt time.Time) models.GradedSubmission {
	t.Helper()

	result := grading.Result{
		Grade:    grading.GradeBreakdown{Total: total},
		Feedback: []string{"seeded"},
		Compilation: grading.CompilationResult{
			CompilationSuccess: total >= 20,
			ExecutionSuccess:   total >= 20,
			Backend:            backend,
		},
	}
	record := models.NewGradedSubmission(key, grading.SubmissionInput{
		StudentName:       name,
		TransactionSource: "class TransactionHistory {}",
		PortfolioSource:   "class PortfolioManager {}",
	}, grading.StrictRubric.Name, result)
	record.CreatedAt = createdAt
	require.NoError(t, store.Append(context.Background(), &record))
	return record
}

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) Invalidate(context.Context) {
	r.calls++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.GradingEvent
}

func (r *recordingPublisher) Publish(_ context.Context, event dto.GradingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type stubArchiver struct {
	name     string
	payload  []byte
	url      string
	err      error
	uploaded int
}

func (s *stubArchiver) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	s.uploaded++
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.name = name
	s.payload = data
	return s.url, nil
}

func newValidator() *validator.Validate {
	return validator.New()
}
