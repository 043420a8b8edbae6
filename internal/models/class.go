package models

import "time"

// SchoolClass represents a class grouping (turma) such as "7º A".
// The (name, year, active) triple is unique: deactivating a class frees
// the name/year pair for a fresh active record.
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      int       `db:"year" json:"year"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Search    string
	Year      int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
