package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
)

const (
	dashboardSummaryKey    = "grader:dashboard:summary"
	defaultDashboardTTL    = 5 * time.Minute
	defaultDashboardPaging = 20
)

// DashboardService powers the professor dashboard.
type DashboardService interface {
	Summary(ctx context.Context) (dto.DashboardSummary, error)
	List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error)
	Get(ctx context.Context, key string) (dto.SubmissionResponse, error)
	Invalidate(ctx context.Context)
}

type dashboardService struct {
	store     repository.SubmissionStore
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDashboardService builds the dashboard aggregator. A nil cache disables caching.
func NewDashboardService(store repository.SubmissionStore, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) DashboardService {
	if ttl <= 0 {
		ttl = defaultDashboardTTL
	}
	return &dashboardService{
		store:     store,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		logger:    logger.With().Str("component", "dashboard_service").Logger(),
		now:       time.Now,
	}
}

func (s *dashboardService) Summary(ctx context.Context) (dto.DashboardSummary, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, dashboardSummaryKey).Result(); err == nil {
			var summary dto.DashboardSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summary); unmarshalErr == nil {
				observability.DashboardCacheLookups().WithLabelValues("hit").Inc()
				summary.CacheHit = true
				return summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
		observability.DashboardCacheLookups().WithLabelValues("miss").Inc()
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return dto.DashboardSummary{}, err
	}

	summary := dto.DashboardSummary{
		Count:            stats.Count,
		MinScore:         stats.MinScore,
		MaxScore:         stats.MaxScore,
		BandDistribution: stats.Bands,
		BackendCounts:    stats.Backends,
		GeneratedAt:      s.now().UTC(),
	}
	if summary.BandDistribution == nil {
		summary.BandDistribution = map[string]int{}
	}
	if summary.BackendCounts == nil {
		summary.BackendCounts = map[string]int{}
	}
	if stats.Count > 0 {
		summary.AverageScore = roundTo(float64(stats.ScoreSum)/float64(stats.Count), 2)
		summary.CompileSuccessRate = roundTo(float64(stats.Compiled)/float64(stats.Count), 4)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, dashboardSummaryKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return summary, nil
}

func (s *dashboardService) List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionListResponse{}, err
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultDashboardPaging
	}

	records, total, err := s.store.List(ctx, repository.SubmissionFilter{
		Search:   req.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	items := make([]dto.SubmissionSummaryItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewSubmissionSummaryItem(record))
	}

	return dto.SubmissionListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *dashboardService) Get(ctx context.Context, key string) (dto.SubmissionResponse, error) {
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

	return dto.NewSubmissionResponse(record, true), nil
}

func (s *dashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardSummaryKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
