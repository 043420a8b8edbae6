package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/repository"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

type loanRepository interface {
	List(ctx context.Context, filter models.LoanFilter, now time.Time) ([]models.LoanDetail, int, error)
	ListForExport(ctx context.Context, filter models.LoanFilter, now time.Time, limit int) ([]models.LoanDetail, error)
	FindByID(ctx context.Context, id string) (*models.LoanDetail, error)
	Create(ctx context.Context, loan *models.Loan) error
	Close(ctx context.Context, id string, returnedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

type borrowerChecker interface {
	ExistsActive(ctx context.Context, id string) (bool, error)
}

type bookChecker interface {
	ExistsActive(ctx context.Context, id string) (bool, error)
	IsAvailable(ctx context.Context, id string) (bool, error)
}

// CreateLoanRequest holds payload for opening a loan. LoanDate defaults
// to the current time when omitted.
type CreateLoanRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	BookID    string     `json:"book_id" validate:"required"`
	LoanDate  *time.Time `json:"loan_date"`
	DueDate   time.Time  `json:"due_date" validate:"required"`
}

// CloseLoanRequest holds payload for the baixa operation.
type CloseLoanRequest struct {
	ReturnedAt time.Time `json:"returned_at" validate:"required"`
}

// LoanService implements the loan lifecycle: eligibility checks on
// creation, derived status on every read, and the terminal close.
type LoanService struct {
	loans     loanRepository
	students  borrowerChecker
	books     bookChecker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLoanService constructs the loan service.
func NewLoanService(loans loanRepository, students borrowerChecker, books bookChecker, validate *validator.Validate, logger *zap.Logger) *LoanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		loans:     loans,
		students:  students,
		books:     books,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns loans with their status resolved at this moment.
func (s *LoanService) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	now := s.now()
	loans, total, err := s.loans.List(ctx, filter, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	for i := range loans {
		loans[i].Status = loans[i].Loan.Status(now)
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
	return loans, pagination, nil
}

// Export returns the filtered loan list as an export dataset, capped at limit rows.
func (s *LoanService) Export(ctx context.Context, filter models.LoanFilter, limit int) ([]models.LoanDetail, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	now := s.now()
	loans, err := s.loans.ListForExport(ctx, filter, now, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export loans")
	}
	for i := range loans {
		loans[i].Status = loans[i].Loan.Status(now)
	}
	return loans, nil
}

// Get returns a single loan with its resolved status.
func (s *LoanService) Get(ctx context.Context, id string) (*models.LoanDetail, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	loan.Status = loan.Loan.Status(s.now())
	return loan, nil
}

// IsBookAvailable reports whether the book can be loaned right now.
func (s *LoanService) IsBookAvailable(ctx context.Context, bookID string) (bool, error) {
	available, err := s.books.IsAvailable(ctx, bookID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	return available, nil
}

// Create opens a loan. Every failed precondition is collected so the
// caller can fix all fields in one round trip. The pre-checks are
// advisory under concurrency; the outstanding-loan unique index decides
// the winner and the loser sees the same BOOK_UNAVAILABLE rejection.
func (s *LoanService) Create(ctx context.Context, req CreateLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}

	loanDate := s.now()
	if req.LoanDate != nil {
		loanDate = *req.LoanDate
	}

	v := &appErrors.Validation{}

	studentOK, err := s.students.ExistsActive(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student")
	}
	if !studentOK {
		v.Add("student_id", appErrors.ErrInvalidStudent.Code, "student missing or inactive")
	}

	bookOK, err := s.books.ExistsActive(ctx, req.BookID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate book")
	}
	if !bookOK {
		v.Add("book_id", appErrors.ErrInvalidBook.Code, "book missing or inactive")
	} else {
		available, err := s.books.IsAvailable(ctx, req.BookID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
		}
		if !available {
			v.Add("book_id", appErrors.ErrBookUnavailable.Code, "book has an outstanding loan")
		}
	}

	if req.DueDate.Before(loanDate) {
		v.Add("due_date", appErrors.ErrInvalidDateRange.Code, "due date cannot precede the loan date")
	}

	if v.HasErrors() {
		return nil, v
	}

	loan := &models.Loan{
		StudentID: req.StudentID,
		BookID:    req.BookID,
		LoanDate:  loanDate,
		DueDate:   req.DueDate,
	}
	if err := s.loans.Create(ctx, loan); err != nil {
		if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintLoanOutstanding {
			// Lost the race: another create for this book committed first.
			s.logger.Info("loan create lost uniqueness race", zap.String("book_id", req.BookID))
			return nil, appErrors.Clone(appErrors.ErrBookUnavailable, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}

	return s.Get(ctx, loan.ID)
}

// Close performs the baixa: records the actual return date and releases
// the book. Closed loans are terminal.
func (s *LoanService) Close(ctx context.Context, id string, req CloseLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return payload")
	}

	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if loan.ReturnedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyClosed, "")
	}
	// Only the lower bound is enforced. The return date may sit in the
	// past or the future relative to the clock.
	if req.ReturnedAt.Before(loan.LoanDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "return date cannot precede the loan date")
	}

	closed, err := s.loans.Close(ctx, id, req.ReturnedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close loan")
	}
	if !closed {
		// The loan was open when read but gone by the time of the write.
		return nil, appErrors.Clone(appErrors.ErrConcurrencyConflict, "loan was closed by a concurrent request")
	}

	return s.Get(ctx, id)
}

// Delete removes a loan record entirely.
func (s *LoanService) Delete(ctx context.Context, id string) error {
	if _, err := s.loans.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if err := s.loans.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete loan")
	}
	return nil
}
