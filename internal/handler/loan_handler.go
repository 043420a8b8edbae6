package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/service"
	"github.com/acervo-leitor/acervo-api/pkg/config"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
	"github.com/acervo-leitor/acervo-api/pkg/export"
	"github.com/acervo-leitor/acervo-api/pkg/response"
)

type loanLifecycle interface {
	List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error)
	Export(ctx context.Context, filter models.LoanFilter, limit int) ([]models.LoanDetail, error)
	Get(ctx context.Context, id string) (*models.LoanDetail, error)
	Create(ctx context.Context, req service.CreateLoanRequest) (*models.LoanDetail, error)
	Close(ctx context.Context, id string, req service.CloseLoanRequest) (*models.LoanDetail, error)
	Delete(ctx context.Context, id string) error
}

type summaryInvalidator interface {
	Invalidate(ctx context.Context)
}

// LoanHandler exposes loan lifecycle endpoints. Mutations drop the
// cached dashboard summary so its counters stay honest.
type LoanHandler struct {
	loans       loanLifecycle
	dashboard   summaryInvalidator
	csvExporter *export.CSVExporter
	pdfExporter *export.PDFExporter
	exports     config.ExportsConfig
}

// NewLoanHandler constructs LoanHandler. Dashboard may be nil when the
// summary cache is disabled.
func NewLoanHandler(loans loanLifecycle, dashboard summaryInvalidator, exports config.ExportsConfig) *LoanHandler {
	return &LoanHandler{
		loans:       loans,
		dashboard:   dashboard,
		csvExporter: export.NewCSVExporter(),
		pdfExporter: export.NewPDFExporter(),
		exports:     exports,
	}
}

func (h *LoanHandler) invalidateSummary(ctx context.Context) {
	if h.dashboard != nil {
		h.dashboard.Invalidate(ctx)
	}
}

func loanFilterFromQuery(c *gin.Context) models.LoanFilter {
	var filter models.LoanFilter
	filter.Status = models.LoanStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.StudentID = c.Query("studentId")
	filter.BookID = c.Query("bookId")
	filter.Page, filter.PageSize = parsePage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List loans with derived status
// @Tags Loans
// @Produce json
// @Param status query string false "Filter by status (open, overdue, returned)"
// @Param search query string false "Search by student name or book title"
// @Param studentId query string false "Filter by student"
// @Param bookId query string false "Filter by book"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	loans, pagination, err := h.loans.List(c.Request.Context(), loanFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Get godoc
// @Summary Get loan detail
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Create godoc
// @Summary Open a loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.CreateLoanRequest true "Loan payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Book already on loan"
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req service.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateSummary(c.Request.Context())
	response.Created(c, loan)
}

// Close godoc
// @Summary Record the return of a loaned book (baixa)
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.CloseLoanRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Loan already closed"
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Close(c *gin.Context) {
	var req service.CloseLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Close(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateSummary(c.Request.Context())
	response.JSON(c, http.StatusOK, loan, nil)
}

// Delete godoc
// @Summary Delete a loan record
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 204
// @Router /loans/{id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	if err := h.loans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateSummary(c.Request.Context())
	response.NoContent(c)
}

// Export godoc
// @Summary Export the filtered loan list
// @Tags Loans
// @Produce text/csv,application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Filter by status (open, overdue, returned)"
// @Success 200 {file} file
// @Router /loans/export [get]
func (h *LoanHandler) Export(c *gin.Context) {
	if !h.exports.Enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}

	loans, err := h.loans.Export(c.Request.Context(), loanFilterFromQuery(c), h.exports.MaxRows)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := service.LoanExportDataset(loans)
	filename := fmt.Sprintf("loans-%s.%s", time.Now().Format("20060102-150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case "pdf":
		payload, err := h.pdfExporter.Render(dataset, "Loans")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		payload, err := h.csvExporter.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Data(http.StatusOK, "text/csv", payload)
	}
}
