package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/cache"
	"coffeehouse/internal/live"
	"coffeehouse/internal/models"
	"coffeehouse/internal/notify"
	"coffeehouse/internal/repository"
	"coffeehouse/internal/storage"
)

type fakeSMS struct {
	mu     sync.Mutex
	sent   []string
	result notify.Result
}

func (f *fakeSMS) SendReady(_ context.Context, o *models.Order) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, o.ID)
	return f.result
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []live.Event
}

func (p *recordingPublisher) Publish(ev live.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

type memCart struct {
	items   map[string][]models.OrderItem
	cleared []string
}

func (c *memCart) Add(_ context.Context, id string, it models.OrderItem) ([]models.OrderItem, error) {
	c.items[id] = append(c.items[id], it)
	return c.items[id], nil
}

func (c *memCart) Items(_ context.Context, id string) ([]models.OrderItem, error) {
	return c.items[id], nil
}

func (c *memCart) Remove(_ context.Context, id string, i int) ([]models.OrderItem, error) {
	c.items[id] = append(c.items[id][:i], c.items[id][i+1:]...)
	return c.items[id], nil
}

func (c *memCart) Clear(_ context.Context, id string) error {
	delete(c.items, id)
	c.cleared = append(c.cleared, id)
	return nil
}

// failingDeleteRepo is a non-transactional store whose delete step breaks
// until healed.
type failingDeleteRepo struct {
	repository.Repository
	healed bool
}

func (r *failingDeleteRepo) DeleteActiveOrder(ctx context.Context, id string) error {
	if r.healed {
		return r.Repository.DeleteActiveOrder(ctx, id)
	}
	return errors.New("connection reset")
}

type harness struct {
	svc   *OrderService
	repo  *storage.OrderStorage
	sms   *fakeSMS
	pub   *recordingPublisher
	cart  *memCart
	clock *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := storage.New("")
	require.NoError(t, err)
	return newHarnessWithRepo(t, repo, repo)
}

func newHarnessWithRepo(t *testing.T, st *storage.OrderStorage, repo repository.Repository) *harness {
	t.Helper()
	now := time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC)
	h := &harness{
		repo:  st,
		sms:   &fakeSMS{result: notify.Result{Sent: true, MessageID: "m-1"}},
		pub:   &recordingPublisher{},
		cart:  &memCart{items: map[string][]models.OrderItem{}},
		clock: &now,
	}
	seq := 0
	h.svc = NewOrderService(Deps{
		Repo:      repo,
		SMS:       h.sms,
		Live:      h.pub,
		Cart:      h.cart,
		Estimates: cache.NewMemoryEstimateCache(time.Minute),
		Location:  time.UTC,
		Now:       func() time.Time { return *h.clock },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return h
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

func mocha() models.OrderItem {
	return models.OrderItem{DrinkName: "Peppermint Mocha", Temperature: "Hot", MilkType: "Oat Milk"}
}

func (h *harness) submit(t *testing.T, phone string, donation int64) *models.Order {
	t.Helper()
	o, err := h.svc.Submit(context.Background(), SubmitRequest{
		Items:    []models.OrderItem{mocha()},
		Customer: models.Customer{Name: "Ana", Phone: phone},
		Donation: decimal.NewFromInt(donation),
	})
	require.NoError(t, err)
	return o
}

func TestSubmitCreatesActiveOrder(t *testing.T) {
	h := newHarness(t)
	items := []models.OrderItem{mocha(), {DrinkName: "Gingerbread Latte", Temperature: "Iced", SpecialInstructions: "extra foam"}}

	o, err := h.svc.Submit(context.Background(), SubmitRequest{
		Items:    items,
		Customer: models.Customer{Name: " Ana ", Phone: "555-1234"},
		Donation: decimal.RequireFromString("5.50"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, models.OrderStatusActive, o.Status)
	assert.Equal(t, models.OrderItems(items), o.Items)
	assert.Equal(t, "Ana", o.Customer.Name)
	assert.Equal(t, *h.clock, o.SubmittedAt)

	stored, err := h.repo.GetActiveOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, decimal.RequireFromString("5.5").Equal(stored.DonationPledged))

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, live.CollectionOrders, h.pub.events[0].Collection)
	assert.Equal(t, live.EventAdded, h.pub.events[0].Type)
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.SetInventory(context.Background(), "drink", "Gingerbread Latte", false))

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"no items", SubmitRequest{Customer: models.Customer{Name: "A", Phone: "1"}}},
		{"no name", SubmitRequest{Items: []models.OrderItem{mocha()}, Customer: models.Customer{Phone: "1"}}},
		{"no phone", SubmitRequest{Items: []models.OrderItem{mocha()}, Customer: models.Customer{Name: "A"}}},
		{"negative donation", SubmitRequest{Items: []models.OrderItem{mocha()}, Customer: models.Customer{Name: "A", Phone: "1"}, Donation: decimal.NewFromInt(-1)}},
		{"unknown drink", SubmitRequest{Items: []models.OrderItem{{DrinkName: "Pumpkin Spice"}}, Customer: models.Customer{Name: "A", Phone: "1"}}},
		{"unknown milk", SubmitRequest{Items: []models.OrderItem{{DrinkName: "Peppermint Mocha", MilkType: "Goat Milk"}}, Customer: models.Customer{Name: "A", Phone: "1"}}},
		{"out of stock", SubmitRequest{Items: []models.OrderItem{{DrinkName: "Gingerbread Latte"}}, Customer: models.Customer{Name: "A", Phone: "1"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Submit(context.Background(), tc.req)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}

	active, _ := h.svc.ActiveOrders(context.Background())
	assert.Empty(t, active)
}

func TestSubmitFromCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.AddCartItem(ctx, "cart-1", mocha())
	require.NoError(t, err)
	_, err = h.svc.AddCartItem(ctx, "cart-1", models.OrderItem{DrinkName: "Nope"})
	assert.True(t, apperr.IsValidation(err))

	o, err := h.svc.Submit(ctx, SubmitRequest{CartID: "cart-1", Customer: models.Customer{Name: "Ana", Phone: "555"}})
	require.NoError(t, err)
	assert.Equal(t, models.OrderItems{mocha()}, o.Items)
	assert.Equal(t, []string{"cart-1"}, h.cart.cleared)
}

func TestMarkReadyUnknownOrder(t *testing.T) {
	h := newHarness(t)
	err := h.svc.MarkReady(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))

	completed, _ := h.svc.CompletedOrders(context.Background(), true)
	assert.Empty(t, completed)
	assert.Empty(t, h.sms.sent)
}

func TestMarkReadyMovesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submit(t, "555-1234", 5)
	h.advance(4 * time.Minute)

	require.NoError(t, h.svc.MarkReady(ctx, o.ID))

	active, _ := h.repo.GetActiveOrder(ctx, o.ID)
	assert.Nil(t, active)
	done, err := h.repo.GetCompletedOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.False(t, done.DonationVerified)
	assert.False(t, done.Archived)
	assert.Equal(t, *h.clock, done.CompletedAt)
	assert.Equal(t, []string{o.ID}, h.sms.sent)

	assert.True(t, apperr.IsNotFound(h.svc.MarkReady(ctx, o.ID)))
}

func TestMarkReadySMSFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.sms.result = notify.Result{Err: apperr.Provider("sms", errors.New("Invalid number"))}
	o := h.submit(t, "555", 0)

	assert.NoError(t, h.svc.MarkReady(context.Background(), o.ID))
	done, _ := h.repo.GetCompletedOrder(context.Background(), o.ID)
	assert.NotNil(t, done)
}

func TestMarkReadyPartialMoveOnNonTransactionalStore(t *testing.T) {
	st, err := storage.New("")
	require.NoError(t, err)
	h := newHarnessWithRepo(t, st, &failingDeleteRepo{Repository: st})
	ctx := context.Background()
	o := h.submit(t, "555", 5)

	err = h.svc.MarkReady(ctx, o.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsProvider(err))
	assert.Equal(t, []string{o.ID}, h.sms.sent)

	stillActive, _ := st.GetActiveOrder(ctx, o.ID)
	alsoCompleted, _ := st.GetCompletedOrder(ctx, o.ID)
	assert.NotNil(t, stillActive)
	assert.NotNil(t, alsoCompleted)

	pending, err := h.svc.PendingDonations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, o.ID, pending[0].ID)
	assert.Equal(t, models.OrderStatusCompleted, pending[0].CurrentState())
}

func TestMarkReadyResumesAfterFailedDelete(t *testing.T) {
	st, err := storage.New("")
	require.NoError(t, err)
	repo := &failingDeleteRepo{Repository: st}
	h := newHarnessWithRepo(t, st, repo)
	ctx := context.Background()
	o := h.submit(t, "555", 5)
	other := h.submit(t, "556", 0)

	require.Error(t, h.svc.MarkReady(ctx, o.ID))
	first, err := st.GetCompletedOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	repo.healed = true
	h.advance(time.Minute)
	require.NoError(t, h.svc.MarkReady(ctx, o.ID))

	stillActive, err := st.GetActiveOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, stillActive)
	done, err := st.GetCompletedOrder(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, first.CompletedAt.Equal(done.CompletedAt))
	assert.Equal(t, []string{o.ID}, h.sms.sent)

	active, err := h.svc.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	assert.True(t, apperr.IsNotFound(h.svc.MarkReady(ctx, o.ID)))
}

func TestMarkReadyIsAtomicOnPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 12, 14, 10, 0, 0, 0, time.UTC)
	svc := NewOrderService(Deps{
		Repo:     repository.NewOrderRepository(db),
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})

	mock.ExpectQuery("SELECT .* FROM orders WHERE id=").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "items", "customer_name", "customer_phone", "donation_pledged", "submitted_at", "created_at"}).
			AddRow("o-1", []byte(`[{"drinkName":"Peppermint Mocha"}]`), "Ana", "555", "0", now.Add(-5*time.Minute), now.Add(-5*time.Minute)))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO completed_orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM orders").WithArgs("o-1").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err = svc.MarkReady(context.Background(), "o-1")
	assert.True(t, apperr.IsProvider(err))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("SELECT .* FROM orders WHERE id=").
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "items", "customer_name", "customer_phone", "donation_pledged", "submitted_at", "created_at"}).
			AddRow("o-1", []byte(`[]`), "Ana", "555", "0", now.Add(-5*time.Minute), now.Add(-5*time.Minute)))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO completed_orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM orders").WithArgs("o-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.MarkReady(context.Background(), "o-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyDonationTwiceKeepsBothRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submit(t, "555", 5)
	require.NoError(t, h.svc.MarkReady(ctx, o.ID))

	d, err := h.svc.VerifyDonation(ctx, o.ID, decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(d.Amount))
	assert.Equal(t, "Ana", d.CustomerName)

	_, err = h.svc.VerifyDonation(ctx, o.ID, decimal.NewFromInt(7), "Ana B.")
	require.NoError(t, err)

	done, _ := h.repo.GetCompletedOrder(ctx, o.ID)
	assert.True(t, done.DonationVerified)
	ledger, _ := h.svc.VerifiedDonations(ctx, true)
	assert.Len(t, ledger, 2)

	total, err := h.svc.DonationTotal(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(total), total.String())

	pending, _ := h.svc.PendingDonations(ctx)
	assert.Empty(t, pending)
}

func TestVerifyDonationErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.VerifyDonation(ctx, "missing", decimal.NewFromInt(5), "")
	assert.True(t, apperr.IsNotFound(err))

	active := h.submit(t, "555", 5)
	_, err = h.svc.VerifyDonation(ctx, active.ID, decimal.NewFromInt(5), "")
	assert.True(t, apperr.IsNotFound(err), "active orders cannot be verified")

	free := h.submit(t, "556", 0)
	require.NoError(t, h.svc.MarkReady(ctx, free.ID))
	_, err = h.svc.VerifyDonation(ctx, free.ID, decimal.Zero, "")
	assert.True(t, apperr.IsValidation(err))
	_, err = h.svc.VerifyDonation(ctx, free.ID, decimal.NewFromInt(-2), "")
	assert.True(t, apperr.IsValidation(err))
}

func TestPendingDonations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	queued := h.submit(t, "1", 3)
	h.submit(t, "2", 0)
	ready := h.submit(t, "3", 4)
	verified := h.submit(t, "4", 6)
	require.NoError(t, h.svc.MarkReady(ctx, ready.ID))
	require.NoError(t, h.svc.MarkReady(ctx, verified.ID))
	_, err := h.svc.VerifyDonation(ctx, verified.ID, decimal.Zero, "")
	require.NoError(t, err)

	pending, err := h.svc.PendingDonations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ready.ID, pending[0].ID)
	assert.Equal(t, queued.ID, pending[1].ID)
}

func TestArchivesNeverDeleteRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	yesterday := h.submit(t, "1", 5)
	require.NoError(t, h.svc.MarkReady(ctx, yesterday.ID))
	_, err := h.svc.VerifyDonation(ctx, yesterday.ID, decimal.Zero, "")
	require.NoError(t, err)

	h.advance(24 * time.Hour)
	today := h.submit(t, "2", 2)
	require.NoError(t, h.svc.MarkReady(ctx, today.ID))

	count, err := h.svc.CompletedTodayCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err := h.svc.ArchiveCompletedToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = h.svc.ArchiveCompletedToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = h.svc.Archive(ctx, ArchiveScopeDonations)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	total, _ := h.svc.DonationTotal(ctx)
	assert.True(t, total.IsZero())

	n, err = h.svc.ArchiveAllHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, _ := h.svc.CompletedOrders(ctx, true)
	assert.Len(t, all, 2)
	ledger, _ := h.svc.VerifiedDonations(ctx, true)
	assert.Len(t, ledger, 1)
	visible, _ := h.svc.CompletedOrders(ctx, false)
	assert.Empty(t, visible)

	_, err = h.svc.Archive(ctx, "everything")
	assert.True(t, apperr.IsValidation(err))
}

func TestEstimateWait(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, "3-5 minutes", h.svc.EstimateWait(ctx, "").DisplayText)

	first := h.submit(t, "1", 0)
	h.advance(time.Minute)
	second := h.submit(t, "2", 0)
	h.advance(time.Minute)
	h.submit(t, "3", 0)

	general := h.svc.EstimateWait(ctx, "")
	assert.Equal(t, 3, general.QueueLength)
	assert.Equal(t, "24-34 minutes (3 orders ahead)", general.DisplayText)

	mine := h.svc.EstimateWait(ctx, second.ID)
	assert.Equal(t, 1, mine.QueueLength)

	h.advance(2 * time.Minute)
	require.NoError(t, h.svc.MarkReady(ctx, first.ID))
	after := h.svc.EstimateWait(ctx, "")
	assert.Equal(t, 2, after.QueueLength)
	assert.Equal(t, 4.0, after.AvgPrepTime)
}

func TestEstimateWaitStoreFailure(t *testing.T) {
	st, err := storage.New("")
	require.NoError(t, err)
	h := newHarnessWithRepo(t, st, brokenListRepo{st})
	assert.Equal(t, estimateDefaultText, h.svc.EstimateWait(context.Background(), "").DisplayText)
}

const estimateDefaultText = "5-10 minutes"

type brokenListRepo struct {
	repository.Repository
}

func (brokenListRepo) ListCompletedOrders(context.Context, repository.CompletedFilter) ([]*models.Order, error) {
	return nil, errors.New("timeout")
}

func TestReviews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.submit(t, "1", 0)
	b := h.submit(t, "2", 0)
	require.NoError(t, h.svc.MarkReady(ctx, a.ID))
	require.NoError(t, h.svc.MarkReady(ctx, b.ID))

	assert.True(t, apperr.IsValidation(h.svc.SubmitReview(ctx, a.ID, 0, "")))
	assert.True(t, apperr.IsValidation(h.svc.SubmitReview(ctx, a.ID, 6, "")))
	assert.True(t, apperr.IsNotFound(h.svc.SubmitReview(ctx, "missing", 5, "")))

	require.NoError(t, h.svc.SubmitReview(ctx, a.ID, 4, "nice"))
	h.advance(time.Minute)
	_, err := h.svc.ArchiveAllHistory(ctx)
	require.NoError(t, err)
	require.NoError(t, h.svc.SubmitReview(ctx, b.ID, 5, "  perfect  "))

	reviews, err := h.svc.ListAllReviews(ctx)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, b.ID, reviews[0].ID)
	assert.Equal(t, "perfect", reviews[0].ReviewComment)
	assert.Equal(t, 4, *reviews[1].Rating)

	h.advance(time.Minute)
	require.NoError(t, h.svc.SubmitReview(ctx, a.ID, 2, "changed my mind"))
	reviews, _ = h.svc.ListAllReviews(ctx)
	assert.Equal(t, a.ID, reviews[0].ID)
	assert.Equal(t, 2, *reviews[0].Rating)
}

func TestListOrdersByPhoneExactMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := h.submit(t, "555-1234", 0)
	require.NoError(t, h.svc.MarkReady(ctx, old.ID))
	_, err := h.svc.ArchiveAllHistory(ctx)
	require.NoError(t, err)
	h.advance(time.Minute)
	h.submit(t, "555-12345", 0)
	h.advance(time.Minute)
	recent := h.submit(t, "555-1234", 0)

	list, err := h.svc.ListOrdersByPhone(ctx, "555-1234")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, recent.ID, list[0].ID)
	assert.Equal(t, old.ID, list[1].ID)
	for _, o := range list {
		assert.Equal(t, "555-1234", o.Customer.Phone)
	}

	_, err = h.svc.ListOrdersByPhone(ctx, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestInventoryAndMenu(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.True(t, apperr.IsValidation(h.svc.SetInventory(ctx, "syrup", "Vanilla", false)))
	assert.True(t, apperr.IsValidation(h.svc.SetInventory(ctx, "milk", "Goat Milk", false)))
	require.NoError(t, h.svc.SetInventory(ctx, "milk", "Oat Milk", false))

	m, err := h.svc.Menu(ctx)
	require.NoError(t, err)
	require.Len(t, m.MilkTypes, 2)
	for _, opt := range m.MilkTypes {
		assert.Equal(t, opt.Name != "Oat Milk", opt.InStock, opt.Name)
	}
	for _, d := range m.Drinks {
		assert.True(t, d.InStock)
	}

	_, err = h.svc.Submit(ctx, SubmitRequest{Items: []models.OrderItem{mocha()}, Customer: models.Customer{Name: "A", Phone: "1"}})
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, h.svc.SetInventory(ctx, "milk", "Oat Milk", true))
	_, err = h.svc.Submit(ctx, SubmitRequest{Items: []models.OrderItem{mocha()}, Customer: models.Customer{Name: "A", Phone: "1"}})
	assert.NoError(t, err)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.submit(t, "1", 5)
	h.submit(t, "2", 0)
	require.NoError(t, h.svc.MarkReady(ctx, a.ID))
	_, err := h.svc.VerifyDonation(ctx, a.ID, decimal.Zero, "")
	require.NoError(t, err)

	d, err := h.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, d.ActiveOrders, 1)
	assert.Len(t, d.CompletedOrders, 1)
	assert.Empty(t, d.PendingDonations)
	assert.True(t, decimal.NewFromInt(5).Equal(d.DonationTotal))
	assert.Equal(t, 1, d.CompletedToday)
	assert.Equal(t, 1, d.Estimate.QueueLength)
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.submit(t, "1", 0)

	got, err := h.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusActive, got.Status)

	require.NoError(t, h.svc.MarkReady(ctx, o.ID))
	got, err = h.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.CurrentState())

	_, err = h.svc.GetOrder(ctx, "nope")
	assert.True(t, apperr.IsNotFound(err))
}
