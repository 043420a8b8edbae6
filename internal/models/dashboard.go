package models

// DashboardSummary carries the aggregate counts shown on the home screen.
// Loan buckets are computed against the clock at query time.
type DashboardSummary struct {
	ActiveBooks    int `db:"active_books" json:"active_books"`
	TotalBooks     int `db:"total_books" json:"total_books"`
	ActiveStudents int `db:"active_students" json:"active_students"`
	TotalStudents  int `db:"total_students" json:"total_students"`
	OpenLoans      int `db:"open_loans" json:"open_loans"`
	OverdueLoans   int `db:"overdue_loans" json:"overdue_loans"`
	ReturnedLoans  int `db:"returned_loans" json:"returned_loans"`
	TotalLoans     int `db:"total_loans" json:"total_loans"`
}
