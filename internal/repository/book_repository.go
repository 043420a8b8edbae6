package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acervo-leitor/acervo-api/internal/models"
)

// outstandingLoanClause matches books currently blocked by an open loan.
// An overdue loan still blocks: only a recorded return releases the copy.
const outstandingLoanClause = "EXISTS (SELECT 1 FROM loans l WHERE l.book_id = b.id AND l.returned_at IS NULL)"

// BookRepository manages persistence for book copies.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books matching the provided filters, each annotated with
// its current availability.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, int, error) {
	base := "FROM books b"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("b.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(b.title) LIKE $%d OR LOWER(b.author) LIKE $%d OR LOWER(b.catalog_code) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "b.active", "NOT "+outstandingLoanClause)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":        "b.title",
		"author":       "b.author",
		"catalog_code": "b.catalog_code",
		"created_at":   "b.created_at",
	}
	if sortBy == "" {
		sortBy = "title"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "b.title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT b.id, b.title, b.author, b.catalog_code, b.active, b.created_at, b.updated_at,
        (b.active AND NOT %s) AS available
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, outstandingLoanClause, base, column, order, size, offset)

	var books []models.BookDetail
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// FindByID fetches a book with its availability.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.BookDetail, error) {
	query := fmt.Sprintf(`SELECT b.id, b.title, b.author, b.catalog_code, b.active, b.created_at, b.updated_at,
        (b.active AND NOT %s) AS available
        FROM books b WHERE b.id = $1`, outstandingLoanClause)
	var detail models.BookDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive reports whether an active book with the given ID exists.
func (r *BookRepository) ExistsActive(ctx context.Context, id string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM books WHERE id = $1 AND active LIMIT 1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active book: %w", err)
	}
	return true, nil
}

// IsAvailable reports whether the book is active and free of outstanding
// loans. Advisory only: the partial unique index on loans is what actually
// prevents a double loan under concurrency.
func (r *BookRepository) IsAvailable(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT (b.active AND NOT %s) FROM books b WHERE b.id = $1", outstandingLoanClause)
	var available bool
	if err := r.db.GetContext(ctx, &available, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check book availability: %w", err)
	}
	return available, nil
}

// ExistsByCatalogCode checks catalog code uniqueness, optionally excluding
// an ID during updates.
func (r *BookRepository) ExistsByCatalogCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM books WHERE catalog_code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check catalog code: %w", err)
	}
	return true, nil
}

// Create inserts a new book record.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	const query = `INSERT INTO books (id, title, author, catalog_code, active, created_at, updated_at)
        VALUES (:id, :title, :author, :catalog_code, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Update modifies an existing book.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now().UTC()
	const query = `UPDATE books SET title = :title, author = :author, catalog_code = :catalog_code, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// Deactivate marks a book as inactive.
func (r *BookRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE books SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate book: %w", err)
	}
	return nil
}
