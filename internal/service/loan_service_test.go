package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acervo-leitor/acervo-api/internal/models"
	"github.com/acervo-leitor/acervo-api/internal/repository"
	appErrors "github.com/acervo-leitor/acervo-api/pkg/errors"
)

// mockLibrary backs the loan service with an in-memory store that honors
// the outstanding-loan uniqueness the same way the partial index does.
type mockLibrary struct {
	students map[string]bool // id -> active
	books    map[string]bool // id -> active
	loans    map[string]*models.Loan
	deleted  []string

	// forceAvailable makes the advisory pre-check pass regardless of
	// state, so tests can drive the insert into the constraint.
	forceAvailable bool
}

func newMockLibrary() *mockLibrary {
	return &mockLibrary{
		students: map[string]bool{},
		books:    map[string]bool{},
		loans:    map[string]*models.Loan{},
	}
}

func (m *mockLibrary) ExistsActive(ctx context.Context, id string) (bool, error) {
	if active, ok := m.students[id]; ok {
		return active, nil
	}
	if active, ok := m.books[id]; ok {
		return active, nil
	}
	return false, nil
}

func (m *mockLibrary) hasOutstanding(bookID string) bool {
	for _, l := range m.loans {
		if l.BookID == bookID && l.ReturnedAt == nil {
			return true
		}
	}
	return false
}

func (m *mockLibrary) IsAvailable(ctx context.Context, id string) (bool, error) {
	if m.forceAvailable {
		return true, nil
	}
	active, ok := m.books[id]
	if !ok || !active {
		return false, nil
	}
	return !m.hasOutstanding(id), nil
}

func (m *mockLibrary) List(ctx context.Context, filter models.LoanFilter, now time.Time) ([]models.LoanDetail, int, error) {
	details := make([]models.LoanDetail, 0, len(m.loans))
	for _, l := range m.loans {
		if filter.Status != "" && l.Status(now) != filter.Status {
			continue
		}
		details = append(details, models.LoanDetail{Loan: *l})
	}
	return details, len(details), nil
}

func (m *mockLibrary) ListForExport(ctx context.Context, filter models.LoanFilter, now time.Time, limit int) ([]models.LoanDetail, error) {
	details, _, err := m.List(ctx, filter, now)
	return details, err
}

func (m *mockLibrary) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.LoanDetail{Loan: *l}, nil
}

func (m *mockLibrary) Create(ctx context.Context, loan *models.Loan) error {
	if m.hasOutstanding(loan.BookID) {
		return &pq.Error{Code: "23505", Constraint: repository.ConstraintLoanOutstanding}
	}
	if loan.ID == "" {
		loan.ID = "generated"
	}
	copied := *loan
	m.loans[loan.ID] = &copied
	return nil
}

func (m *mockLibrary) Close(ctx context.Context, id string, returnedAt time.Time) (bool, error) {
	l, ok := m.loans[id]
	if !ok || l.ReturnedAt != nil {
		return false, nil
	}
	l.ReturnedAt = &returnedAt
	return true, nil
}

func (m *mockLibrary) Delete(ctx context.Context, id string) error {
	delete(m.loans, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newLoanService(store *mockLibrary, now time.Time) *LoanService {
	return NewLoanService(store, store, store, validator.New(), zap.NewNop()).WithClock(fixedClock(now))
}

func TestLoanServiceCreateSuccess(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.books["b1"] = true
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	loanDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), CreateLoanRequest{
		StudentID: "s1",
		BookID:    "b1",
		LoanDate:  &loanDate,
		DueDate:   time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Nil(t, created.ReturnedAt)
	assert.Equal(t, models.LoanStatusOpen, created.Status)
}

func TestLoanServiceCreateDefaultsLoanDateToNow(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.books["b1"] = true
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	created, err := svc.Create(context.Background(), CreateLoanRequest{
		StudentID: "s1",
		BookID:    "b1",
		DueDate:   now.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, now, created.LoanDate)
}

func TestLoanServiceCreateCollectsAllErrors(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = false // inactive
	store.books["b1"] = true
	// b1 is blocked by an open loan.
	store.loans["existing"] = &models.Loan{ID: "existing", StudentID: "other", BookID: "b1"}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	loanDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateLoanRequest{
		StudentID: "s1",
		BookID:    "b1",
		LoanDate:  &loanDate,
		DueDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), // before loan date
	})
	require.Error(t, err)

	v, ok := appErrors.AsValidation(err)
	require.True(t, ok)
	require.Len(t, v.Fields, 3)
	codes := map[string]bool{}
	for _, f := range v.Fields {
		codes[f.Code] = true
	}
	assert.True(t, codes[appErrors.ErrInvalidStudent.Code])
	assert.True(t, codes[appErrors.ErrBookUnavailable.Code])
	assert.True(t, codes[appErrors.ErrInvalidDateRange.Code])
}

func TestLoanServiceCreateInvalidBook(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	_, err := svc.Create(context.Background(), CreateLoanRequest{
		StudentID: "s1",
		BookID:    "ghost",
		DueDate:   now.AddDate(0, 0, 7),
	})
	require.Error(t, err)

	v, ok := appErrors.AsValidation(err)
	require.True(t, ok)
	require.Len(t, v.Fields, 1)
	assert.Equal(t, appErrors.ErrInvalidBook.Code, v.Fields[0].Code)
	assert.Equal(t, "book_id", v.Fields[0].Field)
}

func TestLoanServiceCreateBlockedByOutstandingLoan(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.students["s2"] = true
	store.books["b1"] = true
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	_, err := svc.Create(context.Background(), CreateLoanRequest{StudentID: "s1", BookID: "b1", DueDate: now.AddDate(0, 0, 10)})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateLoanRequest{StudentID: "s2", BookID: "b1", DueDate: now.AddDate(0, 0, 10)})
	require.Error(t, err)

	v, ok := appErrors.AsValidation(err)
	require.True(t, ok)
	require.Len(t, v.Fields, 1)
	assert.Equal(t, appErrors.ErrBookUnavailable.Code, v.Fields[0].Code)
	assert.Equal(t, appErrors.ErrBookUnavailable.Status, v.Status())
}

func TestLoanServiceCreateLosesUniquenessRace(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.books["b1"] = true
	// Another request slipped in between the pre-check and the insert.
	store.loans["winner"] = &models.Loan{ID: "winner", StudentID: "other", BookID: "b1"}
	store.forceAvailable = true
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	_, err := svc.Create(context.Background(), CreateLoanRequest{StudentID: "s1", BookID: "b1", DueDate: now.AddDate(0, 0, 10)})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBookUnavailable.Code, appErr.Code)
	// Exactly one outstanding loan survives for the book.
	count := 0
	for _, l := range store.loans {
		if l.BookID == "b1" && l.ReturnedAt == nil {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoanServiceAvailabilityRoundTrip(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.books["b1"] = true
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	available, err := svc.IsBookAvailable(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, available)

	created, err := svc.Create(context.Background(), CreateLoanRequest{StudentID: "s1", BookID: "b1", DueDate: now.AddDate(0, 0, 10)})
	require.NoError(t, err)

	available, err = svc.IsBookAvailable(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, available)

	_, err = svc.Close(context.Background(), created.ID, CloseLoanRequest{ReturnedAt: now.AddDate(0, 0, 5)})
	require.NoError(t, err)

	available, err = svc.IsBookAvailable(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestLoanServiceOverdueStillBlocks(t *testing.T) {
	store := newMockLibrary()
	store.students["s1"] = true
	store.books["b1"] = true
	store.loans["late"] = &models.Loan{
		ID:        "late",
		StudentID: "other",
		BookID:    "b1",
		LoanDate:  time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	// Overdue is a display state, not a release of the copy.
	available, err := svc.IsBookAvailable(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestLoanServiceCloseSuccess(t *testing.T) {
	store := newMockLibrary()
	store.loans["loan-1"] = &models.Loan{
		ID:       "loan-1",
		LoanDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	closed, err := svc.Close(context.Background(), "loan-1", CloseLoanRequest{ReturnedAt: time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.NotNil(t, closed.ReturnedAt)
	assert.Equal(t, models.LoanStatusReturned, closed.Status)
}

func TestLoanServiceCloseBackdatedBeforeLoanDate(t *testing.T) {
	store := newMockLibrary()
	store.loans["loan-1"] = &models.Loan{
		ID:       "loan-1",
		LoanDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	svc := newLoanService(store, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC))

	_, err := svc.Close(context.Background(), "loan-1", CloseLoanRequest{ReturnedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDateRange.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCloseFutureDateAllowed(t *testing.T) {
	store := newMockLibrary()
	store.loans["loan-1"] = &models.Loan{
		ID:       "loan-1",
		LoanDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	svc := newLoanService(store, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC))

	// No upper bound against the clock: a future return date passes.
	closed, err := svc.Close(context.Background(), "loan-1", CloseLoanRequest{ReturnedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, closed.Status)
}

func TestLoanServiceCloseTwice(t *testing.T) {
	store := newMockLibrary()
	store.loans["loan-1"] = &models.Loan{
		ID:       "loan-1",
		LoanDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		DueDate:  time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	svc := newLoanService(store, now)

	first, err := svc.Close(context.Background(), "loan-1", CloseLoanRequest{ReturnedAt: now})
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), "loan-1", CloseLoanRequest{ReturnedAt: now})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyClosed.Code, appErrors.FromError(err).Code)

	// State unchanged after the failed second call.
	current, err := svc.Get(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.Equal(t, first.ReturnedAt, current.ReturnedAt)
}

func TestLoanServiceCloseNotFound(t *testing.T) {
	svc := newLoanService(newMockLibrary(), time.Now())

	_, err := svc.Close(context.Background(), "ghost", CloseLoanRequest{ReturnedAt: time.Now()})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceListResolvesStatusPerRecord(t *testing.T) {
	store := newMockLibrary()
	returned := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	store.loans["open"] = &models.Loan{ID: "open", DueDate: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)}
	store.loans["late"] = &models.Loan{ID: "late", DueDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	store.loans["done"] = &models.Loan{ID: "done", DueDate: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), ReturnedAt: &returned}
	svc := newLoanService(store, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))

	loans, pagination, err := svc.List(context.Background(), models.LoanFilter{})
	require.NoError(t, err)
	require.Len(t, loans, 3)
	assert.Equal(t, 3, pagination.TotalCount)

	statuses := map[string]models.LoanStatus{}
	for _, l := range loans {
		statuses[l.ID] = l.Status
	}
	assert.Equal(t, models.LoanStatusOpen, statuses["open"])
	assert.Equal(t, models.LoanStatusOverdue, statuses["late"])
	assert.Equal(t, models.LoanStatusReturned, statuses["done"])
}

func TestLoanServiceListRejectsUnknownStatus(t *testing.T) {
	svc := newLoanService(newMockLibrary(), time.Now())

	_, _, err := svc.List(context.Background(), models.LoanFilter{Status: "baixa"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceDelete(t *testing.T) {
	store := newMockLibrary()
	store.loans["loan-1"] = &models.Loan{ID: "loan-1"}
	svc := newLoanService(store, time.Now())

	require.NoError(t, svc.Delete(context.Background(), "loan-1"))
	assert.Contains(t, store.deleted, "loan-1")

	err := svc.Delete(context.Background(), "loan-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
