//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"libris/internal/catalog"
	catalogstore "libris/internal/catalog/store"
	"libris/internal/identity"
	identitystore "libris/internal/identity/store"
	"libris/internal/lending"
	"libris/internal/lending/store"
	id "libris/pkg/domain"
	"libris/pkg/platform/sentinel"
	"libris/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	books    *catalogstore.PostgresStore
	users    *identitystore.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
	s.books = catalogstore.NewPostgresStore(s.postgres.DB)
	s.users = identitystore.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "loans", "outbox", "books", "user_roles", "users")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedBook() id.BookID {
	now := time.Now().UTC().Truncate(time.Microsecond)
	bookID := id.NewBookID()
	err := s.books.Create(context.Background(), &catalog.Book{
		ID:        bookID,
		Title:     "Integration",
		Author:    "Test",
		ISBN:      bookID.String()[:13],
		Status:    catalog.StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	})
	s.Require().NoError(err)
	return bookID
}

func (s *PostgresStoreSuite) seedUser() id.UserID {
	userID := id.NewUserID()
	err := s.users.Create(context.Background(), &identity.Principal{
		ID:        userID,
		Username:  "user-" + userID.String(),
		Email:     userID.String() + "@example.com",
		Roles:     id.NewRoleSet(id.RoleMember),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	s.Require().NoError(err)
	return userID
}

func (s *PostgresStoreSuite) newLoan(bookID id.BookID, borrower id.UserID) *lending.LoanRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &lending.LoanRecord{
		ID:         id.NewLoanID(),
		BookID:     bookID,
		BorrowerID: borrower,
		BorrowedAt: now,
		DueAt:      now.Add(lending.DefaultLoanPeriod),
	}
}

func (s *PostgresStoreSuite) TestCreateAndQuery() {
	ctx := context.Background()
	bookID := s.seedBook()
	borrower := s.seedUser()

	loan := s.newLoan(bookID, borrower)
	s.Require().NoError(s.store.Create(ctx, loan))

	active, err := s.store.ActiveByBook(ctx, bookID)
	s.Require().NoError(err)
	s.Require().NotNil(active)
	s.Equal(loan.ID, active.ID)
	s.Equal(borrower, active.BorrowerID)

	count, err := s.store.ActiveCountByBorrower(ctx, borrower)
	s.Require().NoError(err)
	s.Equal(1, count)

	none, err := s.store.ActiveByBook(ctx, s.seedBook())
	s.Require().NoError(err)
	s.Nil(none)
}

// TestConcurrentCreateOneActivePerBook verifies the partial unique index:
// with many goroutines racing to open a loan on one book, exactly one
// insert succeeds and the rest get a conflict.
func (s *PostgresStoreSuite) TestConcurrentCreateOneActivePerBook() {
	ctx := context.Background()
	bookID := s.seedBook()

	const goroutines = 30
	borrowers := make([]id.UserID, goroutines)
	for i := range borrowers {
		borrowers[i] = s.seedUser()
	}

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.store.Create(ctx, s.newLoan(bookID, borrowers[i]))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one open loan per book")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestCloseReopensTheBookSlot() {
	ctx := context.Background()
	bookID := s.seedBook()
	borrower := s.seedUser()

	loan := s.newLoan(bookID, borrower)
	s.Require().NoError(s.store.Create(ctx, loan))

	returnedAt := time.Now().UTC().Truncate(time.Microsecond)
	closed, err := s.store.Close(ctx, loan.ID, returnedAt)
	s.Require().NoError(err)
	s.True(closed.Returned)
	s.Require().NotNil(closed.ReturnedAt)
	s.WithinDuration(returnedAt, *closed.ReturnedAt, time.Millisecond)

	// The partial index no longer blocks a new loan on the same book.
	s.Require().NoError(s.store.Create(ctx, s.newLoan(bookID, s.seedUser())))

	// A second close is an invalid state.
	_, err = s.store.Close(ctx, loan.ID, returnedAt)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Close(ctx, id.NewLoanID(), returnedAt)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByBookNewestFirst() {
	ctx := context.Background()
	bookID := s.seedBook()

	older := s.newLoan(bookID, s.seedUser())
	older.BorrowedAt = older.BorrowedAt.Add(-48 * time.Hour)
	s.Require().NoError(s.store.Create(ctx, older))
	_, err := s.store.Close(ctx, older.ID, older.BorrowedAt.Add(24*time.Hour))
	s.Require().NoError(err)

	newer := s.newLoan(bookID, s.seedUser())
	s.Require().NoError(s.store.Create(ctx, newer))

	history, err := s.store.ListByBook(ctx, bookID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(newer.ID, history[0].ID)
	s.Equal(older.ID, history[1].ID)
}

func (s *PostgresStoreSuite) TestDeleteByBook() {
	ctx := context.Background()
	bookID := s.seedBook()
	keep := s.seedBook()

	loan := s.newLoan(bookID, s.seedUser())
	s.Require().NoError(s.store.Create(ctx, loan))
	_, err := s.store.Close(ctx, loan.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, s.newLoan(keep, s.seedUser())))

	s.Require().NoError(s.store.DeleteByBook(ctx, bookID))

	history, err := s.store.ListByBook(ctx, bookID)
	s.Require().NoError(err)
	s.Empty(history)

	kept, err := s.store.ListByBook(ctx, keep)
	s.Require().NoError(err)
	s.Len(kept, 1)
}

func (s *PostgresStoreSuite) TestBookStatusCAS() {
	ctx := context.Background()
	bookID := s.seedBook()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.books.UpdateStatus(ctx, bookID,
		catalog.StatusAvailable, catalog.StatusBorrowed, now))

	err := s.books.UpdateStatus(ctx, bookID,
		catalog.StatusAvailable, catalog.StatusBorrowed, now)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	err = s.books.UpdateStatus(ctx, id.NewBookID(),
		catalog.StatusAvailable, catalog.StatusBorrowed, now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
