package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/repository"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.SchoolClass, int, error)
	FindByID(ctx context.Context, id string) (*models.SchoolClass, error)
	ExistsActiveByNameYear(ctx context.Context, name string, year int, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.SchoolClass) error
	Update(ctx context.Context, class *models.SchoolClass) error
	Deactivate(ctx context.Context, id string) error
}

// CreateClassRequest holds payload for creating classes.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,max=50"`
	Year int    `json:"year" validate:"required,gte=2000,lte=2100"`
}

// UpdateClassRequest holds payload for updating classes.
type UpdateClassRequest struct {
	Name   string `json:"name" validate:"required,max=50"`
	Year   int    `json:"year" validate:"required,gte=2000,lte=2100"`
	Active bool   `json:"active"`
}

// ClassService handles class (turma) use-cases.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes and pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.SchoolClass, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.SchoolClass, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class. The active (name, year) pair must be free.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.SchoolClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	exists, err := s.repo.ExistsActiveByNameYear(ctx, req.Name, req.Year, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active class with this name and year already exists")
	}
	class := &models.SchoolClass{Name: req.Name, Year: req.Year, Active: true}
	if err := s.repo.Create(ctx, class); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintClassNameYearActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active class with this name and year already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies an existing class record.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.SchoolClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if req.Active {
		exists, err := s.repo.ExistsActiveByNameYear(ctx, req.Name, req.Year, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active class with this name and year already exists")
		}
	}
	class.Name = req.Name
	class.Year = req.Year
	class.Active = req.Active
	if err := s.repo.Update(ctx, class); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintClassNameYearActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active class with this name and year already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Deactivate marks a class inactive, freeing its name/year pair.
func (s *ClassService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class")
	}
	return nil
}
