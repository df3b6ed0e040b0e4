package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ProfessorRepository stores instructor accounts.
type ProfessorRepository interface {
	Create(ctx context.Context, professor *models.Professor) error
	FindByEmail(ctx context.Context, email string) (models.Professor, error)
}

type professorRepository struct {
	db *gorm.DB
}

// NewProfessorRepository constructs the professor repository.
func NewProfessorRepository(db *gorm.DB) ProfessorRepository {
	return &professorRepository{db: db}
}

func (r *professorRepository) Create(ctx context.Context, professor *models.Professor) error {
	professor.Email = strings.ToLower(strings.TrimSpace(professor.Email))
	return r.db.WithContext(ctx).Create(professor).Error
}

func (r *professorRepository) FindByEmail(ctx context.Context, email string) (models.Professor, error) {
	var professor models.Professor
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&professor).Error
	if err != nil {
		return models.Professor{}, err
	}
	return professor, nil
}
