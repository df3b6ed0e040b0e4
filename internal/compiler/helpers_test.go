package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/grading"
)

func loadSample(t *testing.T) (string, string) {
	t.Helper()

	transaction, err := os.ReadFile(filepath.Join("..", "grading", "testdata", "TransactionHistory.java"))
	require.NoError(t, err)
	portfolio, err := os.ReadFile(filepath.Join("..", "grading", "testdata", "PortfolioManager.java"))
	require.NoError(t, err)

	return string(transaction), string(portfolio)
}

type stubStep struct {
	name   string
	result grading.CompilationResult
	err    error
	panics bool
	calls  int
}

func (s *stubStep) Name() string {
	return s.name
}

func (s *stubStep) Attempt(ctx context.Context, transactionSource, portfolioSource string) (grading.CompilationResult, error) {
	s.calls++
	if s.panics {
		panic("step exploded")
	}
	return s.result, s.err
}
