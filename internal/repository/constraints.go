package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Constraint names from migrations/001_init.sql. Services translate
// violations of these into domain errors.
const (
	ConstraintClassNameYearActive = "classes_name_year_active_key"
	ConstraintBookCatalogCode     = "books_catalog_code_key"
	ConstraintLoanOutstanding     = "loans_book_outstanding_key"
)

const uniqueViolationCode = "23505"

// UniqueViolation reports whether err is a Postgres unique violation and,
// if so, which constraint was hit.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return pqErr.Constraint, true
	}
	return "", false
}
