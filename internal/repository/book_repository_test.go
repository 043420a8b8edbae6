package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-leitor/acervo-api/internal/models"
)

func newBookMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookRepositoryList(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "author", "catalog_code", "active", "created_at", "updated_at", "available"}).
		AddRow("book-1", "Dom Casmurro", "Machado de Assis", "DC-001", true, time.Now(), time.Now(), true)
	mock.ExpectQuery(`SELECT b\.id, b\.title, b\.author, b\.catalog_code(?s:.*)FROM books b WHERE 1=1 ORDER BY b\.title ASC LIMIT 20 OFFSET 0`).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books b WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	books, total, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 1, total)
	assert.True(t, books[0].Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryIsAvailable(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery(`SELECT \(b\.active AND NOT EXISTS \(SELECT 1 FROM loans l WHERE l\.book_id = b\.id AND l\.returned_at IS NULL\)\) FROM books b WHERE b\.id = \$1`).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows([]string{"available"}).AddRow(false))

	available, err := repo.IsAvailable(context.Background(), "book-1")
	require.NoError(t, err)
	assert.False(t, available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryIsAvailableMissingBook(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery(`FROM books b WHERE b\.id = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"available"}))

	available, err := repo.IsAvailable(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("INSERT INTO books").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Book{Title: "Dom Casmurro", Author: "Machado de Assis", CatalogCode: "DC-001", Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
