package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/compiler"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/repository"
)

func newTestSubmissionService(store repository.SubmissionStore, archiver SourceArchiver, summary SummaryInvalidator, events EventPublisher) SubmissionService {
	return NewSubmissionService(store, simulatedGrader(), archiver, summary, events, newValidator(), zerolog.Nop(), SubmissionServiceConfig{MaxFileKB: 100})
}

func sampleUpload(t *testing.T) dto.SubmissionUpload {
	transaction, portfolio := loadSampleSources(t)
	return dto.SubmissionUpload{
		StudentName:     sampleStudent,
		StudentEmail:    "  Rikin.Shah@Example.com ",
		TransactionFile: formFile(t, "transaction_file", "TransactionHistory.java", transaction),
		PortfolioFile:   formFile(t, "portfolio_file", "PortfolioManager.java", portfolio),
	}
}

func TestSubmissionServiceSubmitGradesStoresAndNotifies(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	archiver := &stubArchiver{url: "https://cdn.example.com/submission.zip"}
	summary := &recordingInvalidator{}
	events := &recordingPublisher{}
	svc := newTestSubmissionService(store, archiver, summary, events)

	response, err := svc.Submit(context.Background(), sampleUpload(t))
	require.NoError(t, err)

	_, parseErr := uuid.Parse(response.Key)
	require.NoError(t, parseErr)
	require.Equal(t, sampleStudent, response.StudentName)
	require.Equal(t, "rikin.shah@example.com", response.StudentEmail)
	require.Equal(t, 100, response.Grade.Total)
	require.Equal(t, "excellent", response.Band)
	require.Equal(t, compiler.BackendSimulated, response.Compilation.Backend)
	require.Equal(t, "https://cdn.example.com/submission.zip", response.ArchiveURL)
	require.Nil(t, response.Sources, "student view must not echo sources")
	require.NotEmpty(t, response.Feedback)

	stored, err := store.FindByKey(context.Background(), response.Key)
	require.NoError(t, err)
	require.Equal(t, 100, stored.TotalScore)
	require.Equal(t, "strict", stored.Rubric)

	require.Equal(t, 1, summary.calls)
	require.Len(t, events.events, 1)
	require.Equal(t, dto.GradingEventGraded, events.events[0].Type)
	require.Equal(t, response.Key, events.events[0].Key)

	require.Equal(t, "submission-"+response.Key+".zip", archiver.name)
	reader, err := zip.NewReader(bytes.NewReader(archiver.payload), int64(len(archiver.payload)))
	require.NoError(t, err)
	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	require.ElementsMatch(t, []string{"TransactionHistory.java", "PortfolioManager.java"}, names)
}

func TestSubmissionServiceArchiveFailureDoesNotBlockGrading(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	archiver := &stubArchiver{err: errors.New("cloud offline")}
	svc := newTestSubmissionService(store, archiver, nil, nil)

	response, err := svc.Submit(context.Background(), sampleUpload(t))
	require.NoError(t, err)
	require.Empty(t, response.ArchiveURL)
	require.Equal(t, 1, archiver.uploaded)
}

func TestSubmissionServiceRejectsInvalidUploads(t *testing.T) {
	transaction, portfolio := loadSampleSources(t)
	svc := NewSubmissionService(repository.NewMemorySubmissionStore(), simulatedGrader(), nil, nil, nil, newValidator(), zerolog.Nop(), SubmissionServiceConfig{MaxFileKB: 4})

	cases := []struct {
		name   string
		mutate func(*dto.SubmissionUpload)
		detail string
	}{
		{
			name: "wrong extension",
			mutate: func(u *dto.SubmissionUpload) {
				u.TransactionFile = formFile(t, "transaction_file", "TransactionHistory.txt", transaction)
			},
			detail: "must be a .java file",
		},
		{
			name: "too large",
			mutate: func(u *dto.SubmissionUpload) {
				u.PortfolioFile = formFile(t, "portfolio_file", "PortfolioManager.java", portfolio)
			},
			detail: "exceeds 4 KB",
		},
		{
			name: "empty",
			mutate: func(u *dto.SubmissionUpload) {
				u.TransactionFile = formFile(t, "transaction_file", "TransactionHistory.java", nil)
			},
			detail: "is empty",
		},
		{
			name: "binary",
			mutate: func(u *dto.SubmissionUpload) {
				u.TransactionFile = formFile(t, "transaction_file", "TransactionHistory.java", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d})
			},
			detail: "is not a text file",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upload := dto.SubmissionUpload{
				StudentName:     sampleStudent,
				TransactionFile: formFile(t, "transaction_file", "TransactionHistory.java", []byte("public class TransactionHistory {}")),
				PortfolioFile:   formFile(t, "portfolio_file", "PortfolioManager.java", []byte("public class PortfolioManager {}")),
			}
			tc.mutate(&upload)

			_, err := svc.Submit(context.Background(), upload)
			require.ErrorIs(t, err, ErrInvalidUpload)
			require.Contains(t, err.Error(), tc.detail)
		})
	}
}

func TestSubmissionServiceValidatesStudentFields(t *testing.T) {
	svc := newTestSubmissionService(repository.NewMemorySubmissionStore(), nil, nil, nil)

	upload := sampleUpload(t)
	upload.StudentName = "<b></b>"
	_, err := svc.Submit(context.Background(), upload)
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	upload = sampleUpload(t)
	upload.StudentEmail = "not-an-email"
	_, err = svc.Submit(context.Background(), upload)
	require.True(t, errors.As(err, &validationErrors))

	upload = sampleUpload(t)
	upload.PortfolioFile = nil
	_, err = svc.Submit(context.Background(), upload)
	require.True(t, errors.As(err, &validationErrors))
}

func TestSubmissionServiceSanitizesStudentName(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	svc := newTestSubmissionService(store, nil, nil, nil)

	upload := sampleUpload(t)
	upload.StudentName = "<script>alert(1)</script>Rikin Shah"
	response, err := svc.Submit(context.Background(), upload)
	require.NoError(t, err)
	require.Equal(t, sampleStudent, response.StudentName)
	require.False(t, strings.Contains(response.StudentName, "<"))
}

func TestSubmissionServiceKeepsApostropheInStudentName(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	svc := newTestSubmissionService(store, nil, nil, nil)

	const student = "Liam O'Neil"
	transaction, portfolio := loadSampleSources(t)
	portfolio = bytes.ReplaceAll(portfolio, []byte(sampleStudent), []byte(student))

	upload := sampleUpload(t)
	upload.StudentName = student
	upload.TransactionFile = formFile(t, "transaction_file", "TransactionHistory.java", transaction)
	upload.PortfolioFile = formFile(t, "portfolio_file", "PortfolioManager.java", portfolio)

	response, err := svc.Submit(context.Background(), upload)
	require.NoError(t, err)
	require.Equal(t, student, response.StudentName)
	require.True(t, response.Analysis.Display["hasStudentName"])
	require.Equal(t, 100, response.Grade.Total)

	stored, err := store.FindByKey(context.Background(), response.Key)
	require.NoError(t, err)
	require.Equal(t, student, stored.StudentName)
}

func TestSubmissionServiceCompileFailureStillStored(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	svc := newTestSubmissionService(store, nil, nil, nil)

	upload := sampleUpload(t)
	upload.TransactionFile = formFile(t, "transaction_file", "TransactionHistory.java", []byte("public class TransactionHistory {\n  private String ticker\n"))

	response, err := svc.Submit(context.Background(), upload)
	require.NoError(t, err)
	require.False(t, response.Compilation.CompilationSuccess)
	require.Less(t, response.Grade.Total, 100)
	require.Equal(t, "❌ Compilation failed", response.Feedback[0])

	_, total, err := store.List(context.Background(), repository.SubmissionFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestSubmissionServiceGet(t *testing.T) {
	store := repository.NewMemorySubmissionStore()
	svc := newTestSubmissionService(store, nil, nil, nil)

	submitted, err := svc.Submit(context.Background(), sampleUpload(t))
	require.NoError(t, err)

	fetched, err := svc.Get(context.Background(), submitted.Key)
	require.NoError(t, err)
	require.Equal(t, submitted.Key, fetched.Key)
	require.Equal(t, submitted.Grade, fetched.Grade)
	require.Nil(t, fetched.Sources)

	_, err = svc.Get(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = svc.Get(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
