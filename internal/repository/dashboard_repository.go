package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acervo-leitor/acervo-api/internal/models"
)

// DashboardRepository aggregates the counts shown on the home screen.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Summary computes all dashboard counters in one round trip. Loan buckets
// are derived from stored dates against the caller's clock, matching the
// non-persisted status rule.
func (r *DashboardRepository) Summary(ctx context.Context, now time.Time) (*models.DashboardSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM books WHERE active) AS active_books,
        (SELECT COUNT(*) FROM books) AS total_books,
        (SELECT COUNT(*) FROM students WHERE active) AS active_students,
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM loans WHERE returned_at IS NULL AND due_date >= $1) AS open_loans,
        (SELECT COUNT(*) FROM loans WHERE returned_at IS NULL AND due_date < $1) AS overdue_loans,
        (SELECT COUNT(*) FROM loans WHERE returned_at IS NOT NULL) AS returned_loans,
        (SELECT COUNT(*) FROM loans) AS total_loans`

	var summary models.DashboardSummary
	if err := r.db.GetContext(ctx, &summary, query, now); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	return &summary, nil
}
