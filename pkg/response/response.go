package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acervo-leitor/acervo-api/internal/models"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}             `json:"data,omitempty"`
	Error      *appErrors.Error        `json:"error,omitempty"`
	Validation []appErrors.FieldError  `json:"validation,omitempty"`
	Pagination *models.Pagination      `json:"pagination,omitempty"`
	Meta       map[string]interface{}  `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Collected field errors keep their full list in the validation section.
func Error(c *gin.Context, err error) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	if v, ok := appErrors.AsValidation(err); ok {
		c.JSON(v.Status(), Envelope{
			Error:      appErrors.Clone(appErrors.ErrValidation, ""),
			Validation: v.Fields,
		})
		return
	}
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
