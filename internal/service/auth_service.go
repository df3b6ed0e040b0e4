package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProfessorExists indicates the email is already registered.
	ErrProfessorExists = errors.New("professor already exists")
)

const defaultTokenTTL = 12 * time.Hour

// AuthService authenticates professors and issues API tokens.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error)
	CreateProfessor(ctx context.Context, req dto.ProfessorCreateRequest) (dto.ProfessorResponse, error)
}

type authService struct {
	professors repository.ProfessorRepository
	validator  *validator.Validate
	secret     []byte
	tokenTTL   time.Duration
	bcryptCost int
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAuthService constructs the professor authentication service.
func NewAuthService(professors repository.ProfessorRepository, validate *validator.Validate, secret string, tokenTTL time.Duration, logger zerolog.Logger) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &authService{
		professors: professors,
		validator:  validate,
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}

	professor, err := s.professors.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(professor.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info().Str("email", maskEmail(professor.Email)).Msg("rejected professor login")
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(professor.ID), 10),
		"email": professor.Email,
		"role":  professor.Role,
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return dto.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Professor: newProfessorResponse(professor),
	}, nil
}

func (s *authService) CreateProfessor(ctx context.Context, req dto.ProfessorCreateRequest) (dto.ProfessorResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfessorResponse{}, err
	}

	if _, err := s.professors.FindByEmail(ctx, req.Email); err == nil {
		return dto.ProfessorResponse{}, ErrProfessorExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ProfessorResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return dto.ProfessorResponse{}, fmt.Errorf("hash password: %w", err)
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = models.RoleProfessor
	}

	professor := models.Professor{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.professors.Create(ctx, &professor); err != nil {
		return dto.ProfessorResponse{}, err
	}

	s.logger.Info().Str("email", maskEmail(professor.Email)).Str("role", role).Msg("professor account created")
	return newProfessorResponse(professor), nil
}

func newProfessorResponse(professor models.Professor) dto.ProfessorResponse {
	return dto.ProfessorResponse{
		ID:    professor.ID,
		Email: professor.Email,
		Name:  professor.Name,
		Role:  professor.Role,
	}
}
