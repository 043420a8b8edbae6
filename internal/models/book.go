package models

import "time"

// Book represents a single physical copy in the collection. CatalogCode
// identifies the copy and is globally unique; there is no per-title count.
type Book struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	CatalogCode string    `db:"catalog_code" json:"catalog_code"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BookDetail augments a book with its current availability.
type BookDetail struct {
	Book
	Available bool `db:"available" json:"available"`
}

// BookFilter encapsulates allowed search parameters for listing books.
type BookFilter struct {
	Search        string
	Active        *bool
	AvailableOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
