package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

type memorySubmissionStore struct {
	mu      sync.RWMutex
	records []models.GradedSubmission
	nextID  uint
	now     func() time.Time
}

// NewMemorySubmissionStore constructs a process-local store. Records are lost on restart.
func NewMemorySubmissionStore() SubmissionStore {
	return &memorySubmissionStore{now: time.Now}
}

func (s *memorySubmissionStore) Append(_ context.Context, submission *models.GradedSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.Key == submission.Key {
			return gorm.ErrDuplicatedKey
		}
	}

	s.nextID++
	now := s.now()
	submission.ID = s.nextID
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	s.records = append(s.records, *submission)
	return nil
}

func (s *memorySubmissionStore) List(_ context.Context, filter SubmissionFilter) ([]models.GradedSubmission, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.GradedSubmission, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if search != "" &&
			!strings.Contains(strings.ToLower(record.StudentName), search) &&
			!strings.Contains(strings.ToLower(record.StudentEmail), search) {
			continue
		}
		matched = append(matched, record)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(matched) {
			return []models.GradedSubmission{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	return matched, total, nil
}

func (s *memorySubmissionStore) FindByKey(_ context.Context, key string) (models.GradedSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.Key == key {
			return record, nil
		}
	}
	return models.GradedSubmission{}, gorm.ErrRecordNotFound
}

func (s *memorySubmissionStore) SaveReview(_ context.Context, key string, review SubmissionReview) (models.GradedSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Key != key {
			continue
		}
		reviewedAt := review.ReviewedAt
		s.records[i].AIReview = review.Text
		s.records[i].AIProvider = review.Provider
		s.records[i].AIReviewedAt = &reviewedAt
		s.records[i].UpdatedAt = s.now()
		return s.records[i], nil
	}
	return models.GradedSubmission{}, gorm.ErrRecordNotFound
}

func (s *memorySubmissionStore) Stats(_ context.Context) (SubmissionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SubmissionStats{Bands: map[string]int{}, Backends: map[string]int{}}
	for i, record := range s.records {
		if i == 0 || record.TotalScore < stats.MinScore {
			stats.MinScore = record.TotalScore
		}
		if record.TotalScore > stats.MaxScore {
			stats.MaxScore = record.TotalScore
		}
		if record.CompilationSuccess {
			stats.Compiled++
		}
		stats.Count++
		stats.ScoreSum += int64(record.TotalScore)
		stats.Bands[record.Band]++
		stats.Backends[record.Backend]++
	}
	return stats, nil
}
