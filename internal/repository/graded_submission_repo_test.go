package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/grading"
	"github.com/noah-isme/gema-grader/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GradedSubmission{}, &models.Professor{}))
	return db
}

func storeImplementations(t *testing.T) map[string]SubmissionStore {
	return map[string]SubmissionStore{
		"gorm":   NewSubmissionStore(setupTestDB(t)),
		"memory": NewMemorySubmissionStore(),
	}
}

func newRecord(name, email string, total int, createdAt time.Time) *models.GradedSubmission {
	result := grading.Result{
		Analysis:    grading.EmptyReport(),
		Grade:       grading.GradeBreakdown{TransactionHistory: total, Total: total},
		TestResults: grading.AnalyzeOutput("Menu"),
		Feedback:    []string{"✅ Code compiled successfully", "Total: " + fmt.Sprint(total) + "/100"},
		Compilation: grading.CompilationResult{CompilationSuccess: true, ExecutionOutput: "Menu", Backend: "simulated"},
	}
	record := models.NewGradedSubmission(uuid.NewString(), grading.SubmissionInput{
		StudentName:       name,
		StudentEmail:      email,
		TransactionSource: "class TransactionHistory {}",
		PortfolioSource:   "class PortfolioManager {}",
	}, "strict", result)
	record.CreatedAt = createdAt
	return &record
}

func TestSubmissionStoreRoundTrip(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := newRecord("Rikin Shah", "rikin@example.edu", 25, time.Now())
			require.NoError(t, store.Append(ctx, record))
			require.NotZero(t, record.ID)

			found, err := store.FindByKey(ctx, record.Key)
			require.NoError(t, err)
			require.Equal(t, "Rikin Shah", found.StudentName)
			require.Equal(t, 25, found.TotalScore)
			require.Equal(t, grading.Band(25), found.Band)

			result := found.Result()
			require.Equal(t, 25, result.Grade.Total)
			require.Len(t, result.TestResults, 8)
			require.Equal(t, []string{"✅ Code compiled successfully", "Total: 25/100"}, result.Feedback)
			require.Equal(t, "simulated", result.Compilation.Backend)
			require.Equal(t, grading.EmptyReport(), result.Analysis)

			_, err = store.FindByKey(ctx, uuid.NewString())
			require.ErrorIs(t, err, gorm.ErrRecordNotFound)
		})
	}
}

func TestSubmissionStoreListNewestFirstWithSearchAndPaging(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)
			require.NoError(t, store.Append(ctx, newRecord("Alice Johnson", "alice@example.edu", 90, base)))
			require.NoError(t, store.Append(ctx, newRecord("Bob Stone", "bob@example.edu", 70, base.Add(time.Minute))))
			require.NoError(t, store.Append(ctx, newRecord("Carol Alison", "carol@example.edu", 50, base.Add(2*time.Minute))))

			all, total, err := store.List(ctx, SubmissionFilter{})
			require.NoError(t, err)
			require.Equal(t, int64(3), total)
			require.Equal(t, "Carol Alison", all[0].StudentName, "expected newest record first")

			matches, total, err := store.List(ctx, SubmissionFilter{Search: "ALI"})
			require.NoError(t, err)
			require.Equal(t, int64(2), total)
			require.Len(t, matches, 2)

			page, total, err := store.List(ctx, SubmissionFilter{Page: 2, PageSize: 2})
			require.NoError(t, err)
			require.Equal(t, int64(3), total)
			require.Len(t, page, 1)
			require.Equal(t, "Alice Johnson", page[0].StudentName)

			beyond, _, err := store.List(ctx, SubmissionFilter{Page: 5, PageSize: 2})
			require.NoError(t, err)
			require.Empty(t, beyond)
		})
	}
}

func TestSubmissionStoreSaveReview(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := newRecord("Dana Kim", "dana@example.edu", 88, time.Now())
			require.NoError(t, store.Append(ctx, record))

			reviewedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			updated, err := store.SaveReview(ctx, record.Key, SubmissionReview{Text: "Solid work", Provider: "openai", ReviewedAt: reviewedAt})
			require.NoError(t, err)
			require.Equal(t, "Solid work", updated.AIReview)
			require.Equal(t, "openai", updated.AIProvider)
			require.True(t, reviewedAt.Equal(*updated.AIReviewedAt))
			require.True(t, updated.HasReview())
			require.Equal(t, 88, updated.TotalScore, "review never touches the rubric score")

			_, err = store.SaveReview(ctx, uuid.NewString(), SubmissionReview{Text: "x"})
			require.ErrorIs(t, err, gorm.ErrRecordNotFound)
		})
	}
}

func TestSubmissionStoreStats(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.Stats(ctx)
			require.NoError(t, err)
			require.Zero(t, empty.Count)
			require.Zero(t, empty.ScoreSum)
			require.Empty(t, empty.Bands)

			base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
			failed := newRecord("Grace Hopper", "grace@example.com", 10, base.Add(2*time.Minute))
			failed.CompilationSuccess = false
			failed.Backend = "local"
			for _, record := range []*models.GradedSubmission{
				newRecord("Ada Lovelace", "ada@example.com", 100, base),
				newRecord("Alan Turing", "alan@example.com", 80, base.Add(time.Minute)),
				failed,
			} {
				require.NoError(t, store.Append(ctx, record))
			}

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			require.EqualValues(t, 3, stats.Count)
			require.EqualValues(t, 190, stats.ScoreSum)
			require.Equal(t, 10, stats.MinScore)
			require.Equal(t, 100, stats.MaxScore)
			require.EqualValues(t, 2, stats.Compiled)
			require.Equal(t, map[string]int{"excellent": 1, "good": 1, "significant_improvement": 1}, stats.Bands)
			require.Equal(t, map[string]int{"simulated": 2, "local": 1}, stats.Backends)
		})
	}
}

func TestGradedSubmissionReviewColumns(t *testing.T) {
	db := setupTestDB(t)

	columns, err := db.Migrator().ColumnTypes(&models.GradedSubmission{})
	require.NoError(t, err)

	names := make([]string, 0, len(columns))
	for _, column := range columns {
		names = append(names, column.Name())
	}
	require.Subset(t, names, []string{"submission_key", "ai_review", "ai_provider", "ai_reviewed_at"})
	require.NotContains(t, names, "a_iprovider")
}

func TestMemorySubmissionStoreConcurrentAppends(t *testing.T) {
	store := NewMemorySubmissionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, store.Append(ctx, newRecord(fmt.Sprintf("Student %d", i), "", i, time.Now())))
		}(i)
	}
	wg.Wait()

	_, total, err := store.List(ctx, SubmissionFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(50), total)
}

func TestMemorySubmissionStoreRejectsDuplicateKeys(t *testing.T) {
	store := NewMemorySubmissionStore()
	record := newRecord("Eve", "", 10, time.Now())
	require.NoError(t, store.Append(context.Background(), record))

	duplicate := *record
	require.ErrorIs(t, store.Append(context.Background(), &duplicate), gorm.ErrDuplicatedKey)
}

func TestProfessorRepositoryNormalisesEmail(t *testing.T) {
	repo := NewProfessorRepository(setupTestDB(t))
	ctx := context.Background()

	professor := models.Professor{Email: "  Prof@Example.EDU ", Name: "Prof", PasswordHash: "hash", Role: models.RoleProfessor}
	require.NoError(t, repo.Create(ctx, &professor))

	found, err := repo.FindByEmail(ctx, "prof@example.edu")
	require.NoError(t, err)
	require.Equal(t, "Prof", found.Name)

	_, err = repo.FindByEmail(ctx, "nobody@example.edu")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
