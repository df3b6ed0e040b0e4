package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	Search   string
	Page     int
	PageSize int
}

// SubmissionReview is the AI review written beside a stored grade.
type SubmissionReview struct {
	Text       string
	Provider   string
	ReviewedAt time.Time
}

// SubmissionStats is the dashboard aggregate over every stored submission.
type SubmissionStats struct {
	Count    int64
	ScoreSum int64
	MinScore int
	MaxScore int
	Compiled int64
	Bands    map[string]int
	Backends map[string]int
}

// SubmissionStore persists graded submissions. Implementations must be safe for
// concurrent use since uploads are graded in parallel.
type SubmissionStore interface {
	Append(ctx context.Context, submission *models.GradedSubmission) error
	List(ctx context.Context, filter SubmissionFilter) ([]models.GradedSubmission, int64, error)
	FindByKey(ctx context.Context, key string) (models.GradedSubmission, error)
	SaveReview(ctx context.Context, key string, review SubmissionReview) (models.GradedSubmission, error)
	Stats(ctx context.Context) (SubmissionStats, error)
}

type gormSubmissionStore struct {
	db *gorm.DB
}

// NewSubmissionStore constructs a database backed submission store.
func NewSubmissionStore(db *gorm.DB) SubmissionStore {
	return &gormSubmissionStore{db: db}
}

func (r *gormSubmissionStore) Append(ctx context.Context, submission *models.GradedSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *gormSubmissionStore) List(ctx context.Context, filter SubmissionFilter) ([]models.GradedSubmission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.GradedSubmission{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(student_name) LIKE ? OR LOWER(student_email) LIKE ?", like, like)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var submissions []models.GradedSubmission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *gormSubmissionStore) FindByKey(ctx context.Context, key string) (models.GradedSubmission, error) {
	var submission models.GradedSubmission
	if err := r.db.WithContext(ctx).Where("submission_key = ?", key).First(&submission).Error; err != nil {
		return models.GradedSubmission{}, err
	}
	return submission, nil
}

func (r *gormSubmissionStore) SaveReview(ctx context.Context, key string, review SubmissionReview) (models.GradedSubmission, error) {
	reviewedAt := review.ReviewedAt
	result := r.db.WithContext(ctx).Model(&models.GradedSubmission{}).
		Where("submission_key = ?", key).
		Updates(map[string]interface{}{
			"ai_review":      review.Text,
			"ai_provider":    review.Provider,
			"ai_reviewed_at": &reviewedAt,
		})
	if result.Error != nil {
		return models.GradedSubmission{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.GradedSubmission{}, gorm.ErrRecordNotFound
	}
	return r.FindByKey(ctx, key)
}

type groupCount struct {
	Label string
	Total int
}

// Stats aggregates in the database so sources and JSON columns are never loaded.
func (r *gormSubmissionStore) Stats(ctx context.Context) (SubmissionStats, error) {
	var row struct {
		Count    int64
		ScoreSum int64
		MinScore int
		MaxScore int
		Compiled int64
	}
	err := r.db.WithContext(ctx).Model(&models.GradedSubmission{}).
		Select("COUNT(*) AS count, " +
			"COALESCE(SUM(total_score), 0) AS score_sum, " +
			"COALESCE(MIN(total_score), 0) AS min_score, " +
			"COALESCE(MAX(total_score), 0) AS max_score, " +
			"COALESCE(SUM(CASE WHEN compilation_success THEN 1 ELSE 0 END), 0) AS compiled").
		Scan(&row).Error
	if err != nil {
		return SubmissionStats{}, err
	}

	stats := SubmissionStats{
		Count:    row.Count,
		ScoreSum: row.ScoreSum,
		MinScore: row.MinScore,
		MaxScore: row.MaxScore,
		Compiled: row.Compiled,
	}
	if stats.Bands, err = r.countBy(ctx, "band"); err != nil {
		return SubmissionStats{}, err
	}
	if stats.Backends, err = r.countBy(ctx, "backend"); err != nil {
		return SubmissionStats{}, err
	}
	return stats, nil
}

func (r *gormSubmissionStore) countBy(ctx context.Context, column string) (map[string]int, error) {
	var rows []groupCount
	err := r.db.WithContext(ctx).Model(&models.GradedSubmission{}).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Label] = row.Total
	}
	return counts, nil
}
