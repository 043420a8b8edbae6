package service

import (
	"time"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/pkg/export"
)

const exportDateLayout = "2006-01-02"

// LoanExportDataset flattens resolved loans into the tabular form the
// exporters consume.
func LoanExportDataset(loans []models.LoanDetail) export.Dataset {
	headers := []string{"Student", "Book", "Catalog Code", "Loan Date", "Due Date", "Returned At", "Status"}
	rows := make([]map[string]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, map[string]string{
			"Student":      l.StudentName,
			"Book":         l.BookTitle,
			"Catalog Code": l.CatalogCode,
			"Loan Date":    l.LoanDate.Format(exportDateLayout),
			"Due Date":     l.DueDate.Format(exportDateLayout),
			"Returned At":  formatNullableDate(l.ReturnedAt),
			"Status":       string(l.Status),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatNullableDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportDateLayout)
}
