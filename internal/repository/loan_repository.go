package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acervo-leitor/acervo-api/internal/models"
)

// LoanRepository manages persistence for loans. The partial unique index
// loans_book_outstanding_key (book_id WHERE returned_at IS NULL) is the
// authority on the one-outstanding-loan-per-book rule; callers translate
// its violation into a domain rejection.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanDetailColumns = `e.id, e.student_id, e.book_id, e.loan_date, e.due_date, e.returned_at, e.created_at, e.updated_at,
        s.name AS student_name, b.title AS book_title, b.catalog_code`

// statusCondition translates a derived status into SQL over the stored
// dates and the caller's clock. The due instant itself still counts as
// open, so overdue uses strict less-than.
func statusCondition(status models.LoanStatus, args []interface{}, now time.Time) (string, []interface{}) {
	switch status {
	case models.LoanStatusReturned:
		return "e.returned_at IS NOT NULL", args
	case models.LoanStatusOpen:
		return fmt.Sprintf("(e.returned_at IS NULL AND e.due_date >= $%d)", len(args)+1), append(args, now)
	case models.LoanStatusOverdue:
		return fmt.Sprintf("(e.returned_at IS NULL AND e.due_date < $%d)", len(args)+1), append(args, now)
	}
	return "", args
}

func loanListQuery(filter models.LoanFilter, now time.Time) (string, string, []interface{}) {
	base := "FROM loans e JOIN students s ON s.id = e.student_id JOIN books b ON b.id = e.book_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != "" {
		if cond, next := statusCondition(filter.Status, args, now); cond != "" {
			conditions = append(conditions, cond)
			args = next
		}
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("e.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(b.title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	return base, strings.Join(conditions, " AND "), args
}

// List returns loans matching the provided filters. Status filtering is
// evaluated against the supplied clock so the same stored row can move
// from open to overdue between calls without any write.
func (r *LoanRepository) List(ctx context.Context, filter models.LoanFilter, now time.Time) ([]models.LoanDetail, int, error) {
	base, where, args := loanListQuery(filter, now)
	base = fmt.Sprintf("%s WHERE %s", base, where)

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"loan_date": "e.loan_date",
		"due_date":  "e.due_date",
		"student":   "s.name",
	}
	if sortBy == "" {
		sortBy = "loan_date"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "e.loan_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", loanDetailColumns, base, column, order, size, offset)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// ListForExport returns up to limit matching loans without pagination.
func (r *LoanRepository) ListForExport(ctx context.Context, filter models.LoanFilter, now time.Time, limit int) ([]models.LoanDetail, error) {
	base, where, args := loanListQuery(filter, now)
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY e.loan_date DESC LIMIT %d", loanDetailColumns, base, where, limit)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("export loans: %w", err)
	}
	return loans, nil
}

// FindByID fetches a loan with student and book context.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM loans e
        JOIN students s ON s.id = e.student_id
        JOIN books b ON b.id = e.book_id
        WHERE e.id = $1`, loanDetailColumns)
	var detail models.LoanDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new loan with a null returned_at. A violation of
// loans_book_outstanding_key propagates unwrapped inside the error chain
// so the service can surface it as a domain rejection.
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now
	const query = `INSERT INTO loans (id, student_id, book_id, loan_date, due_date, returned_at, created_at, updated_at)
        VALUES (:id, :student_id, :book_id, :loan_date, :due_date, :returned_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

// Close records the return date for an outstanding loan. The guard on
// returned_at makes the write a compare-and-set: zero affected rows means
// another request closed the loan first.
func (r *LoanRepository) Close(ctx context.Context, id string, returnedAt time.Time) (bool, error) {
	const query = `UPDATE loans SET returned_at = $2, updated_at = $3 WHERE id = $1 AND returned_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, returnedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("close loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close loan rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a loan record entirely.
func (r *LoanRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM loans WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	return nil
}
