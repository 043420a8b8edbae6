package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acervo-leitor/acervo-api/internal/models"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

type mockBookRepo struct {
	books map[string]models.BookDetail
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, int, error) {
	out := make([]models.BookDetail, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*models.BookDetail, error) {
	if b, ok := m.books[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) ExistsByCatalogCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for id, b := range m.books {
		if b.CatalogCode == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	if m.books == nil {
		m.books = make(map[string]models.BookDetail)
	}
	if book.ID == "" {
		book.ID = fmt.Sprintf("book-%d", len(m.books)+1)
	}
	m.books[book.ID] = models.BookDetail{Book: *book, Available: true}
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	detail := m.books[book.ID]
	detail.Book = *book
	m.books[book.ID] = detail
	return nil
}

func (m *mockBookRepo) Deactivate(ctx context.Context, id string) error {
	if b, ok := m.books[id]; ok {
		b.Active = false
		m.books[id] = b
	}
	return nil
}

func TestBookServiceCreate(t *testing.T) {
	repo := &mockBookRepo{}
	svc := NewBookService(repo, validator.New(), zap.NewNop())

	book, err := svc.Create(context.Background(), CreateBookRequest{
		Title:       "Dom Casmurro",
		Author:      "Machado de Assis",
		CatalogCode: "LIT-001",
	})
	require.NoError(t, err)
	assert.True(t, book.Active)
	assert.NotEmpty(t, book.ID)
}

func TestBookServiceCreateDuplicateCatalogCode(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.BookDetail{
		"b1": {Book: models.Book{ID: "b1", Title: "Dom Casmurro", Author: "Machado de Assis", CatalogCode: "LIT-001", Active: true}},
	}}
	svc := NewBookService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateBookRequest{
		Title:       "Dom Casmurro",
		Author:      "Machado de Assis",
		CatalogCode: "LIT-001",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookServiceUpdateKeepsOwnCatalogCode(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.BookDetail{
		"b1": {Book: models.Book{ID: "b1", Title: "Dom Casmurro", Author: "Machado de Assis", CatalogCode: "LIT-001", Active: true}},
	}}
	svc := NewBookService(repo, validator.New(), zap.NewNop())

	book, err := svc.Update(context.Background(), "b1", UpdateBookRequest{
		Title:       "Dom Casmurro",
		Author:      "Machado de Assis",
		CatalogCode: "LIT-001",
		Active:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "LIT-001", book.CatalogCode)
}

func TestBookServiceGetNotFound(t *testing.T) {
	svc := NewBookService(&mockBookRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
