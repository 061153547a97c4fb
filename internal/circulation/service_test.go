package circulation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklending/internal/circulation"
	"booklending/internal/clock"
	"booklending/internal/domain"
	"booklending/internal/platform/retry"
	"booklending/internal/testutil"
)

var today = testutil.Day(2024, 3, 20)

func newService(f *testutil.Fixture, opts ...circulation.Option) *circulation.Service {
	opts = append([]circulation.Option{circulation.WithClock(clock.NewFixed(today.Add(9 * time.Hour)))}, opts...)
	return circulation.NewService(f.Store, opts...)
}

func TestService_BorrowAndReturn(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 51)
	c := f.AddCopy(t, b.ID)
	svc := newService(f)
	ctx := context.Background()

	require.NoError(t, svc.CanBorrow(ctx, f.Alice.ID, c.ID))

	checkout, err := svc.Borrow(ctx, f.Alice.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Alice.ID, checkout.BorrowerID)
	assert.Equal(t, b.ID, checkout.BookID)
	assert.Equal(t, f.Office.ID, checkout.OfficeID)
	assert.Equal(t, today, checkout.BorrowedOn)
	assert.Equal(t, today.AddDate(0, 0, 3), checkout.DueOn)
	assert.True(t, checkout.IsOpen())

	stored, err := f.Store.GetCopy(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyBorrowed, stored.State)

	err = svc.CanBorrow(ctx, f.Bob.ID, c.ID)
	assert.Equal(t, domain.CodeCopyAlreadyBorrowed, domain.Code(err))

	result, err := svc.Return(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.ID, result.Checkout.ID)
	require.NotNil(t, result.Checkout.ReturnedOn)
	assert.Equal(t, today, *result.Checkout.ReturnedOn)
	assert.Equal(t, circulation.Outcome{Kind: circulation.OutcomeEarly, Days: 3}, result.Outcome)

	stored, err = f.Store.GetCopy(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyAvailable, stored.State)

	open, err := f.Store.CountOpenCheckouts(ctx, f.Alice.ID)
	require.NoError(t, err)
	assert.Zero(t, open)

	// Returned today, so the cooldown blocks Alice but not Bob.
	err = svc.CanBorrow(ctx, f.Alice.ID, c.ID)
	assert.Equal(t, domain.CodeCooldownNotElapsed, domain.Code(err))
	assert.NoError(t, svc.CanBorrow(ctx, f.Bob.ID, c.ID))
}

func TestService_BorrowLimitReached(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := newService(f)
	ctx := context.Background()

	for _, isbn := range []string{"1000000001", "1000000002", "1000000003"} {
		b := f.AddBook(t, f.Office.ID, isbn, 100)
		_, err := svc.Borrow(ctx, f.Alice.ID, f.AddCopy(t, b.ID).ID)
		require.NoError(t, err)
	}

	fourth := f.AddCopy(t, f.AddBook(t, f.Office.ID, "1000000004", 100).ID)
	_, err := svc.Borrow(ctx, f.Alice.ID, fourth.ID)

	var rv *domain.RuleViolationError
	require.ErrorAs(t, err, &rv)
	assert.Equal(t, domain.CodeLimitReached, rv.Code)
	assert.Equal(t, 3, rv.Limit)

	stored, err := f.Store.GetCopy(ctx, fourth.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyAvailable, stored.State)
}

func TestService_BorrowRules(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown copy", func(t *testing.T) {
		f := testutil.NewFixture(t)
		_, err := newService(f).Borrow(ctx, f.Alice.ID, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, domain.CodeCopyNotFound, domain.Code(err))
	})

	t.Run("unknown borrower", func(t *testing.T) {
		f := testutil.NewFixture(t)
		c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 10).ID)
		err := newService(f).CanBorrow(ctx, "ghost", c.ID)
		assert.Equal(t, domain.CodeUserNotFound, domain.Code(err))
	})

	t.Run("other office", func(t *testing.T) {
		f := testutil.NewFixture(t)
		c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 10).ID)
		_, err := newService(f).Borrow(ctx, f.Carol.ID, c.ID)
		assert.Equal(t, domain.CodeEntitiesInDifferentOffices, domain.Code(err))
	})

	t.Run("second copy of the same book", func(t *testing.T) {
		f := testutil.NewFixture(t)
		b := f.AddBook(t, f.Office.ID, "9780132350884", 10)
		first, second := f.AddCopy(t, b.ID), f.AddCopy(t, b.ID)
		svc := newService(f)

		_, err := svc.Borrow(ctx, f.Alice.ID, first.ID)
		require.NoError(t, err)
		_, err = svc.Borrow(ctx, f.Alice.ID, second.ID)

		var rv *domain.RuleViolationError
		require.ErrorAs(t, err, &rv)
		assert.Equal(t, domain.CodeAlreadyBorrowedByUser, rv.Code)
		assert.Equal(t, "9780132350884", rv.ISBN)
	})

	t.Run("cooldown counts from the last return", func(t *testing.T) {
		f := testutil.NewFixture(t)
		b := f.AddBook(t, f.Office.ID, "9780132350884", 10)
		c := f.AddCopy(t, b.ID)
		returned := today.AddDate(0, 0, -13)
		f.AddCheckout(t, f.Alice, c, b, returned.AddDate(0, 0, -5), returned, &returned)
		svc := newService(f)

		err := svc.CanBorrow(ctx, f.Alice.ID, c.ID)
		assert.Equal(t, domain.CodeCooldownNotElapsed, domain.Code(err))

		later := newService(f, circulation.WithClock(clock.NewFixed(today.AddDate(0, 0, 1))))
		assert.NoError(t, later.CanBorrow(ctx, f.Alice.ID, c.ID))
	})
}

func TestService_ReturnOverdueWhileCopyAvailable(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 100)
	c := f.AddCopy(t, b.ID)
	yesterday := today.AddDate(0, 0, -1)
	f.AddCheckout(t, f.Alice, c, b, today.AddDate(0, 0, -5), yesterday, nil)

	result, err := newService(f).Return(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.Outcome{Kind: circulation.OutcomeOverdue, Days: 1}, result.Outcome)

	stored, err := f.Store.GetCopy(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CopyAvailable, stored.State)
}

func TestService_ReturnErrors(t *testing.T) {
	f := testutil.NewFixture(t)
	c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 100).ID)
	svc := newService(f)
	ctx := context.Background()

	_, err := svc.Return(ctx, "missing")
	assert.Equal(t, domain.CodeCopyNotFound, domain.Code(err))

	_, err = svc.Return(ctx, c.ID)
	assert.Equal(t, domain.CodeNotBorrowed, domain.Code(err))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_ConcurrentBorrowOfSingleCopy(t *testing.T) {
	f := testutil.NewFixture(t)
	c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 100).ID)
	svc := newService(f)
	ctx := context.Background()

	borrowers := []domain.User{f.Alice, f.Bob}
	errs := make([]error, len(borrowers))
	var wg sync.WaitGroup
	for i, u := range borrowers {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, userID, c.ID)
		}(i, u.ID)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code := domain.Code(err)
		assert.Contains(t, []string{domain.CodeCopyAlreadyBorrowed, domain.CodeConcurrencyConflict}, code)
	}
	assert.Equal(t, 1, succeeded)

	open, err := f.Store.FindOpenCheckoutByCopy(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
}

func TestService_ManyConcurrentBorrowsKeepOneOpenCheckout(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 100)
	c := f.AddCopy(t, b.ID)
	svc := newService(f)
	ctx := context.Background()

	borrowers := make([]domain.User, 10)
	for i := range borrowers {
		borrowers[i] = domain.User{ID: "load-" + string(rune('a'+i)), OfficeID: f.Office.ID, Role: domain.RoleUser}
		require.NoError(t, f.Store.CreateUser(ctx, borrowers[i]))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, u := range borrowers {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := svc.Borrow(ctx, userID, c.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(u.ID)
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)

	var open int
	for _, u := range borrowers {
		n, err := f.Store.CountOpenCheckouts(ctx, u.ID)
		require.NoError(t, err)
		open += n
	}
	assert.Equal(t, 1, open)
}

// conflictOnce fails the first CreateCheckout with a concurrency conflict.
type conflictOnce struct {
	circulation.Repository
	mu      sync.Mutex
	calls   int
	persist int
}

func (r *conflictOnce) CreateCheckout(ctx context.Context, c domain.Checkout) error {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()
	if first {
		return domain.ErrConcurrencyConflict
	}
	r.persist++
	return r.Repository.CreateCheckout(ctx, c)
}

// conflictAlways fails every SaveCopy with a concurrency conflict.
type conflictAlways struct {
	circulation.Repository
	calls int
}

func (r *conflictAlways) SaveCopy(ctx context.Context, c domain.Copy) error {
	r.calls++
	return domain.ErrConcurrencyConflict
}

func TestService_RetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	noDelay := circulation.WithRetryOptions(retry.WithBaseDelay(0))

	t.Run("second attempt succeeds", func(t *testing.T) {
		f := testutil.NewFixture(t)
		c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 100).ID)
		repo := &conflictOnce{Repository: f.Store}
		svc := circulation.NewService(repo, circulation.WithClock(clock.NewFixed(today)), noDelay)

		_, err := svc.Borrow(ctx, f.Alice.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.calls)
		assert.Equal(t, 1, repo.persist)
	})

	t.Run("second conflict surfaces and rolls back", func(t *testing.T) {
		f := testutil.NewFixture(t)
		c := f.AddCopy(t, f.AddBook(t, f.Office.ID, "9780132350884", 100).ID)
		repo := &conflictAlways{Repository: f.Store}
		svc := circulation.NewService(repo, circulation.WithClock(clock.NewFixed(today)), noDelay)

		_, err := svc.Borrow(ctx, f.Alice.ID, c.ID)
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.Equal(t, domain.CodeConcurrencyConflict, domain.Code(err))
		assert.Equal(t, 2, repo.calls)

		open, err := f.Store.FindOpenCheckoutByCopy(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, open)
	})

	t.Run("rule violations are not retried", func(t *testing.T) {
		f := testutil.NewFixture(t)
		repo := &conflictOnce{Repository: f.Store}
		svc := circulation.NewService(repo, noDelay)

		_, err := svc.Borrow(ctx, f.Alice.ID, "missing")
		assert.Equal(t, domain.CodeCopyNotFound, domain.Code(err))
		assert.Zero(t, repo.calls)
	})
}

func TestService_History(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 100)
	svc := newService(f)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		day := today.AddDate(0, 0, -30+i)
		var returned *time.Time
		if i < 4 {
			r := day.AddDate(0, 0, 2)
			returned = &r
		}
		f.AddCheckout(t, f.Alice, f.AddCopy(t, b.ID), b, day, day.AddDate(0, 0, 4), returned)
	}

	first, err := svc.History(ctx, circulation.HistoryQuery{BorrowerID: f.Alice.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].IsOpen())
	require.NotEmpty(t, first.NextCursor)

	after, err := circulation.DecodeCursor(first.NextCursor)
	require.NoError(t, err)
	rest, err := svc.History(ctx, circulation.HistoryQuery{BorrowerID: f.Alice.ID, Limit: 10, After: &after})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 3)
	assert.Empty(t, rest.NextCursor)

	open, err := svc.History(ctx, circulation.HistoryQuery{BorrowerID: f.Alice.ID, OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open.Items, 1)

	_, err = svc.History(ctx, circulation.HistoryQuery{BorrowerID: "ghost"})
	assert.Equal(t, domain.CodeUserNotFound, domain.Code(err))
}

func TestService_Overdue(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.AddBook(t, f.Office.ID, "9780132350884", 100)
	other := f.AddBook(t, f.OtherOffice.ID, "9780132350884", 100)
	svc := newService(f)

	late := f.AddCheckout(t, f.Alice, f.AddCopy(t, b.ID), b, today.AddDate(0, 0, -10), today.AddDate(0, 0, -3), nil)
	f.AddCheckout(t, f.Bob, f.AddCopy(t, b.ID), b, today.AddDate(0, 0, -2), today, nil)
	returned := today.AddDate(0, 0, -1)
	f.AddCheckout(t, f.Admin, f.AddCopy(t, b.ID), b, today.AddDate(0, 0, -10), today.AddDate(0, 0, -5), &returned)
	f.AddCheckout(t, f.Carol, f.AddCopy(t, other.ID), other, today.AddDate(0, 0, -10), today.AddDate(0, 0, -5), nil)

	items, err := svc.Overdue(context.Background(), f.Office.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, late.ID, items[0].ID)
	assert.Equal(t, 3, items[0].DaysOverdue)
}
