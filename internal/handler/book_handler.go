package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/service"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
	"github.com/acervo-leitor/acervo-api/pkg/response"
)

// BookHandler exposes book catalogue endpoints.
type BookHandler struct {
	books *service.BookService
	loans *service.LoanService
}

// NewBookHandler constructs BookHandler. The loan service answers the
// availability probe so both layers share one definition of "available".
func NewBookHandler(books *service.BookService, loans *service.LoanService) *BookHandler {
	return &BookHandler{books: books, loans: loans}
}

// List godoc
// @Summary List books with availability
// @Tags Books
// @Produce json
// @Param search query string false "Search by title, author or catalog code"
// @Param active query bool false "Filter by active state"
// @Param available query bool false "Only books free to borrow"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	var filter models.BookFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Active = parseBoolQuery(c, "active")
	if avail := parseBoolQuery(c, "available"); avail != nil && *avail {
		filter.AvailableOnly = true
	}
	filter.Page, filter.PageSize = parsePage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	books, pagination, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, pagination)
}

// Get godoc
// @Summary Get book detail
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Availability godoc
// @Summary Check whether a book can be borrowed right now
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/availability [get]
func (h *BookHandler) Availability(c *gin.Context) {
	id := c.Param("id")
	available, err := h.loans.IsBookAvailable(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"book_id": id, "available": available}, nil)
}

// Create godoc
// @Summary Catalogue a book copy
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body service.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req service.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Update godoc
// @Summary Update book copy
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body service.UpdateBookRequest true "Book payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	var req service.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Delete godoc
// @Summary Deactivate book copy
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 204
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
