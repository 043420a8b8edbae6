package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/service"
	"github.com/acervo-leitor/acervo-api/pkg/config"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

type fakeLoanSrv struct {
	loans      []models.LoanDetail
	loan       *models.LoanDetail
	err        error
	lastFilter models.LoanFilter
	lastCreate service.CreateLoanRequest
	lastClose  service.CloseLoanRequest
	deleted    []string
}

func (f *fakeLoanSrv) List(_ context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.loans, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.loans)}, nil
}

func (f *fakeLoanSrv) Export(_ context.Context, filter models.LoanFilter, limit int) ([]models.LoanDetail, error) {
	f.lastFilter = filter
	return f.loans, f.err
}

func (f *fakeLoanSrv) Get(context.Context, string) (*models.LoanDetail, error) {
	return f.loan, f.err
}

func (f *fakeLoanSrv) Create(_ context.Context, req service.CreateLoanRequest) (*models.LoanDetail, error) {
	f.lastCreate = req
	return f.loan, f.err
}

func (f *fakeLoanSrv) Close(_ context.Context, id string, req service.CloseLoanRequest) (*models.LoanDetail, error) {
	f.lastClose = req
	return f.loan, f.err
}

func (f *fakeLoanSrv) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context) {
	f.calls++
}

func testExports() config.ExportsConfig {
	return config.ExportsConfig{Enabled: true, MaxRows: 1000}
}

func TestLoanHandlerListPassesStatusFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeLoanSrv{}
	handler := NewLoanHandler(srv, nil, testExports())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/loans?status=Overdue&studentId=s1", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.LoanStatusOverdue, srv.lastFilter.Status)
	assert.Equal(t, "s1", srv.lastFilter.StudentID)
}

func TestLoanHandlerCreateInvalidatesSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeLoanSrv{loan: &models.LoanDetail{
		Loan:   models.Loan{ID: "l1", StudentID: "s1", BookID: "b1"},
		Status: models.LoanStatusOpen,
	}}
	invalidator := &fakeInvalidator{}
	handler := NewLoanHandler(srv, invalidator, testExports())

	body := `{"student_id":"s1","book_id":"b1","due_date":"2026-03-20T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, invalidator.calls)
	assert.Equal(t, "b1", srv.lastCreate.BookID)
}

func TestLoanHandlerCreateUnavailableBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := &appErrors.Validation{}
	v.Add("book_id", appErrors.ErrBookUnavailable.Code, "book has an outstanding loan")
	srv := &fakeLoanSrv{err: v}
	invalidator := &fakeInvalidator{}
	handler := NewLoanHandler(srv, invalidator, testExports())

	body := `{"student_id":"s1","book_id":"b1","due_date":"2026-03-20T00:00:00Z"}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, invalidator.calls)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Validation, 1)
	assert.Equal(t, "BOOK_UNAVAILABLE", envelope.Validation[0]["code"])
}

func TestLoanHandlerClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	returned := time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC)
	srv := &fakeLoanSrv{loan: &models.LoanDetail{
		Loan:   models.Loan{ID: "l1", ReturnedAt: &returned},
		Status: models.LoanStatusReturned,
	}}
	invalidator := &fakeInvalidator{}
	handler := NewLoanHandler(srv, invalidator, testExports())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "l1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/loans/l1/return",
		strings.NewReader(`{"returned_at":"2026-03-18T10:00:00Z"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Close(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, returned, srv.lastClose.ReturnedAt)
	assert.Equal(t, 1, invalidator.calls)
}

func TestLoanHandlerCloseAlreadyClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeLoanSrv{err: appErrors.ErrAlreadyClosed}
	handler := NewLoanHandler(srv, nil, testExports())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "id", Value: "l1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/loans/l1/return",
		strings.NewReader(`{"returned_at":"2026-03-18T10:00:00Z"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Close(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoanHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	due := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	srv := &fakeLoanSrv{loans: []models.LoanDetail{{
		Loan:        models.Loan{ID: "l1", LoanDate: due.AddDate(0, 0, -7), DueDate: due},
		StudentName: "Ana Souza",
		BookTitle:   "Dom Casmurro",
		CatalogCode: "LIT-001",
		Status:      models.LoanStatusOpen,
	}}}
	handler := NewLoanHandler(srv, nil, testExports())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/loans/export?format=csv", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "Ana Souza")
	assert.Contains(t, rec.Body.String(), "LIT-001")
}

func TestLoanHandlerExportRejectsUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLoanHandler(&fakeLoanSrv{}, nil, testExports())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/loans/export?format=xlsx", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoanHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeLoanSrv{}
	invalidator := &fakeInvalidator{}
	handler := NewLoanHandler(srv, invalidator, testExports())

	// Status-only responses need the engine to flush the header.
	r := gin.New()
	r.DELETE("/loans/:id", handler.Delete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/loans/l1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"l1"}, srv.deleted)
	assert.Equal(t, 1, invalidator.calls)
}
