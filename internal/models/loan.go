package models

import "time"

// LoanStatus is derived from a loan's dates and the current time. It is
// never persisted: storing it would go stale the moment the clock passes
// the due date.
type LoanStatus string

const (
	LoanStatusOpen     LoanStatus = "open"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// Valid reports whether the status names a known filter value.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusOpen, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

// Loan links a student to a borrowed book copy. ReturnedAt is the
// outstanding-loan sentinel: nil means the book is still out.
type Loan struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	BookID     string     `db:"book_id" json:"book_id"`
	LoanDate   time.Time  `db:"loan_date" json:"loan_date"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Status resolves the loan's state at the given instant. A loan due
// exactly now is still open; only strictly past-due loans are overdue.
func (l *Loan) Status(now time.Time) LoanStatus {
	if l.ReturnedAt != nil {
		return LoanStatusReturned
	}
	if now.After(l.DueDate) {
		return LoanStatusOverdue
	}
	return LoanStatusOpen
}

// Outstanding reports whether the loan still blocks its book.
func (l *Loan) Outstanding() bool {
	return l.ReturnedAt == nil
}

// LoanDetail joins a loan with student and book display fields plus the
// status resolved at query time.
type LoanDetail struct {
	Loan
	StudentName string     `db:"student_name" json:"student_name"`
	BookTitle   string     `db:"book_title" json:"book_title"`
	CatalogCode string     `db:"catalog_code" json:"catalog_code"`
	Status      LoanStatus `db:"-" json:"status"`
}

// LoanFilter encapsulates allowed search parameters for listing loans.
type LoanFilter struct {
	Status    LoanStatus
	Search    string
	StudentID string
	BookID    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
