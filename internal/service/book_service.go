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

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.BookDetail, error)
	ExistsByCatalogCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Deactivate(ctx context.Context, id string) error
}

// CreateBookRequest holds payload for cataloguing a copy.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=150"`
	CatalogCode string `json:"catalog_code" validate:"required,max=30"`
}

// UpdateBookRequest holds payload for updating a copy.
type UpdateBookRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=150"`
	CatalogCode string `json:"catalog_code" validate:"required,max=30"`
	Active      bool   `json:"active"`
}

// BookService handles book copy use-cases.
type BookService struct {
	repo      bookRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookService constructs the book service.
func NewBookService(repo bookRepository, validate *validator.Validate, logger *zap.Logger) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{repo: repo, validator: validate, logger: logger}
}

// List returns books and pagination metadata.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, *models.Pagination, error) {
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
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
	return books, pagination, nil
}

// Get returns a book with its current availability.
func (s *BookService) Get(ctx context.Context, id string) (*models.BookDetail, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return book, nil
}

// Create catalogues a new copy. The catalog code must be globally unique.
func (s *BookService) Create(ctx context.Context, req CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	exists, err := s.repo.ExistsByCatalogCode(ctx, req.CatalogCode, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate catalog code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "catalog code already used")
	}
	book := &models.Book{
		Title:       req.Title,
		Author:      req.Author,
		CatalogCode: req.CatalogCode,
		Active:      true,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintBookCatalogCode {
			return nil, appErrors.Clone(appErrors.ErrConflict, "catalog code already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}
	return book, nil
}

// Update modifies an existing copy.
func (s *BookService) Update(ctx context.Context, id string, req UpdateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	exists, err := s.repo.ExistsByCatalogCode(ctx, req.CatalogCode, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate catalog code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "catalog code already used")
	}
	book := detail.Book
	book.Title = req.Title
	book.Author = req.Author
	book.CatalogCode = req.CatalogCode
	book.Active = req.Active
	if err := s.repo.Update(ctx, &book); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintBookCatalogCode {
			return nil, appErrors.Clone(appErrors.ErrConflict, "catalog code already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update book")
	}
	return &book, nil
}

// Deactivate marks a book inactive. Existing loans keep their reference.
func (s *BookService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate book")
	}
	return nil
}
