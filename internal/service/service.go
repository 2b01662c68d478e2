package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/cache"
	"coffeehouse/internal/estimate"
	"coffeehouse/internal/live"
	"coffeehouse/internal/logging"
	"coffeehouse/internal/menu"
	"coffeehouse/internal/models"
	"coffeehouse/internal/notify"
	"coffeehouse/internal/repository"
)

const (
	ArchiveScopeCompletedToday = "completed-today"
	ArchiveScopeDonations      = "donations"
	ArchiveScopeHistory        = "history"
)

// Cart is the server-side cart used when an order is submitted by cart id.
type Cart interface {
	Add(ctx context.Context, cartID string, item models.OrderItem) ([]models.OrderItem, error)
	Items(ctx context.Context, cartID string) ([]models.OrderItem, error)
	Remove(ctx context.Context, cartID string, index int) ([]models.OrderItem, error)
	Clear(ctx context.Context, cartID string) error
}

type Deps struct {
	Repo      repository.Repository
	Catalog   menu.Catalog
	SMS       notify.SMSSender
	Live      live.Publisher
	Cart      Cart
	Estimates cache.EstimateCache
	Log       *slog.Logger
	Location  *time.Location
	Now       func() time.Time
	NewID     func() string
}

type OrderService struct {
	repo      repository.Repository
	catalog   menu.Catalog
	sms       notify.SMSSender
	live      live.Publisher
	cart      Cart
	estimates cache.EstimateCache
	log       *slog.Logger
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

func NewOrderService(d Deps) *OrderService {
	s := &OrderService{
		repo:      d.Repo,
		catalog:   d.Catalog,
		sms:       d.SMS,
		live:      d.Live,
		cart:      d.Cart,
		estimates: d.Estimates,
		log:       d.Log,
		loc:       d.Location,
		now:       d.Now,
		newID:     d.NewID,
	}
	if s.catalog == nil {
		s.catalog = menu.NewCatalog()
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

type SubmitRequest struct {
	CartID   string             `json:"cartId,omitempty"`
	Items    []models.OrderItem `json:"items"`
	Customer models.Customer    `json:"customer"`
	Donation decimal.Decimal    `json:"donation"`
}

type Dashboard struct {
	ActiveOrders     []*models.Order `json:"activeOrders"`
	CompletedOrders  []*models.Order `json:"completedOrders"`
	PendingDonations []*models.Order `json:"pendingDonations"`
	DonationTotal    decimal.Decimal `json:"donationTotal"`
	CompletedToday   int             `json:"completedToday"`
	Estimate         estimate.Result `json:"estimate"`
}

func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (*models.Order, error) {
	items := req.Items
	if len(items) == 0 && req.CartID != "" && s.cart != nil {
		cartItems, err := s.cart.Items(ctx, req.CartID)
		if err != nil {
			return nil, apperr.Provider("cart", err)
		}
		items = cartItems
	}

	customer := models.Customer{
		Name:  strings.TrimSpace(req.Customer.Name),
		Phone: strings.TrimSpace(req.Customer.Phone),
	}
	switch {
	case len(items) == 0:
		return nil, apperr.Validation("items", "at least one item is required")
	case customer.Name == "":
		return nil, apperr.Validation("customer.name", "name is required")
	case customer.Phone == "":
		return nil, apperr.Validation("customer.phone", "phone is required")
	case req.Donation.IsNegative():
		return nil, apperr.Validation("donation", "donation cannot be negative")
	}

	flags, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	for _, it := range items {
		if err := s.catalog.ValidateItem(it); err != nil {
			return nil, err
		}
		if err := s.catalog.CheckStock(it, flags); err != nil {
			return nil, err
		}
	}

	now := s.now()
	o := &models.Order{
		ID:              s.newID(),
		Items:           append(models.OrderItems(nil), items...),
		Customer:        customer,
		DonationPledged: req.Donation,
		SubmittedAt:     now,
		CreatedAt:       now,
		Status:          models.OrderStatusActive,
	}
	err = s.withTx(ctx, func(r repository.Repository) error {
		if err := r.CreateOrder(ctx, o); err != nil {
			return err
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventOrderSubmitted, OrderID: o.ID, Amount: amountPtr(o.DonationPledged), OccurredAt: now})
	})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}

	if req.CartID != "" && s.cart != nil {
		if err := s.cart.Clear(ctx, req.CartID); err != nil {
			s.log.Warn("clear cart failed", "cart_id", req.CartID, "error", err)
		}
	}
	s.invalidateEstimate(ctx)
	s.publish(live.CollectionOrders, live.EventAdded, o.ID)
	s.log.Info("order submitted", "order_id", o.ID, "items", len(o.Items), "donation", o.DonationPledged.String())
	return o, nil
}

// MarkReady moves an active order to the completed set and texts the
// customer. The text is best effort; its outcome never fails the call. It is
// sent once the completed record exists, even if removing the active one fails.
func (s *OrderService) MarkReady(ctx context.Context, orderID string) error {
	o, err := s.repo.GetActiveOrder(ctx, orderID)
	if err != nil {
		return apperr.Provider("store", err)
	}
	if o == nil {
		return apperr.NotFound("order", orderID)
	}

	now := s.now()
	completed := o.Clone()
	if err := completed.UpdateState(models.OrderStatusCompleted, now); err != nil {
		return err
	}
	created, moveErr := s.transition(ctx, completed, now)
	if created {
		res := s.notifyReady(ctx, completed)
		if res.Err != nil {
			s.log.Warn("ready sms failed", "order_id", orderID, "error", res.Err)
		}
	}
	if moveErr != nil {
		return moveErr
	}

	s.invalidateEstimate(ctx)
	s.publish(live.CollectionOrders, live.EventRemoved, orderID)
	s.publish(live.CollectionCompletedOrders, live.EventAdded, orderID)
	s.log.Info("order ready", "order_id", orderID)
	return nil
}

// transition writes the completed record and removes the active one, and
// reports whether this call created the completed record. On a store without
// transactions a failed delete leaves the order in both sets; the next call
// finds the completed record and only finishes the delete.
func (s *OrderService) transition(ctx context.Context, completed *models.Order, now time.Time) (bool, error) {
	if _, ok := s.repo.(repository.Transactor); !ok {
		prior, err := s.repo.GetCompletedOrder(ctx, completed.ID)
		if err != nil {
			return false, apperr.Provider("store", err)
		}
		if prior != nil {
			s.log.Warn("resuming interrupted ready", "order_id", completed.ID)
			if err := s.repo.DeleteActiveOrder(ctx, completed.ID); err != nil && !apperr.IsNotFound(err) {
				return false, apperr.Provider("store", err)
			}
			return false, nil
		}
	}

	inserted := false
	err := s.withTx(ctx, func(r repository.Repository) error {
		if err := r.InsertCompletedOrder(ctx, completed); err != nil {
			return err
		}
		inserted = true
		if err := r.DeleteActiveOrder(ctx, completed.ID); err != nil {
			return err
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventOrderCompleted, OrderID: completed.ID, OccurredAt: now})
	})
	if err != nil {
		if _, ok := s.repo.(repository.Transactor); ok {
			inserted = false
		}
		return inserted, apperr.Provider("store", err)
	}
	return true, nil
}

func (s *OrderService) notifyReady(ctx context.Context, o *models.Order) notify.Result {
	if s.sms == nil {
		return notify.Result{Skipped: true}
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return s.sms.SendReady(sendCtx, o)
}

func (s *OrderService) VerifyDonation(ctx context.Context, orderID string, amount decimal.Decimal, customerName string) (*models.VerifiedDonation, error) {
	o, err := s.repo.GetCompletedOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	if o == nil {
		return nil, apperr.NotFound("completed order", orderID)
	}
	if amount.IsZero() {
		amount = o.DonationPledged
	}
	if strings.TrimSpace(customerName) == "" {
		customerName = o.Customer.Name
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount", "donation amount must be positive")
	}

	now := s.now()
	d := &models.VerifiedDonation{
		ID:           s.newID(),
		OrderID:      orderID,
		CustomerName: customerName,
		Amount:       amount,
		VerifiedAt:   now,
	}
	err = s.withTx(ctx, func(r repository.Repository) error {
		if err := r.SetDonationVerified(ctx, orderID, true); err != nil {
			return err
		}
		if err := r.InsertVerifiedDonation(ctx, d); err != nil {
			return err
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventDonationVerified, OrderID: orderID, Amount: amountPtr(amount), OccurredAt: now})
	})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}

	s.publish(live.CollectionCompletedOrders, live.EventModified, orderID)
	s.publish(live.CollectionVerifiedDonations, live.EventAdded, d.ID)
	s.log.Info("donation verified", "order_id", orderID, "amount", amount.String())
	return d, nil
}

func (s *OrderService) ArchiveCompletedToday(ctx context.Context) (int64, error) {
	now := s.now()
	return s.archive(ctx, ArchiveScopeCompletedToday, live.CollectionCompletedOrders, now, func(r repository.Repository) (int64, error) {
		return r.ArchiveCompletedOrders(ctx, s.midnight(now), now)
	})
}

func (s *OrderService) ArchiveAllVerifiedDonations(ctx context.Context) (int64, error) {
	now := s.now()
	return s.archive(ctx, ArchiveScopeDonations, live.CollectionVerifiedDonations, now, func(r repository.Repository) (int64, error) {
		return r.ArchiveVerifiedDonations(ctx, now)
	})
}

func (s *OrderService) ArchiveAllHistory(ctx context.Context) (int64, error) {
	now := s.now()
	return s.archive(ctx, ArchiveScopeHistory, live.CollectionCompletedOrders, now, func(r repository.Repository) (int64, error) {
		return r.ArchiveCompletedOrders(ctx, time.Time{}, now)
	})
}

// Archive dispatches on the scope names used by the dashboard and console.
func (s *OrderService) Archive(ctx context.Context, scope string) (int64, error) {
	switch scope {
	case ArchiveScopeCompletedToday, "today":
		return s.ArchiveCompletedToday(ctx)
	case ArchiveScopeDonations:
		return s.ArchiveAllVerifiedDonations(ctx)
	case ArchiveScopeHistory:
		return s.ArchiveAllHistory(ctx)
	}
	return 0, apperr.Validation("scope", "unknown archive scope %q", scope)
}

func (s *OrderService) archive(ctx context.Context, scope, collection string, now time.Time, sweep func(repository.Repository) (int64, error)) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(r repository.Repository) error {
		var err error
		if n, err = sweep(r); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventHistoryArchived, Scope: scope, Count: n, OccurredAt: now})
	})
	if err != nil {
		return 0, apperr.Provider("store", err)
	}
	if n > 0 {
		s.publish(collection, live.EventModified, "")
	}
	s.log.Info("archive sweep", "scope", scope, "archived", n)
	return n, nil
}

// PendingDonations lists orders whose pledge still needs checking: completed
// and unverified first, then orders still in the queue. An order caught in
// both sets appears once.
func (s *OrderService) PendingDonations(ctx context.Context) ([]*models.Order, error) {
	completed, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	active, err := s.repo.ListActiveOrders(ctx, repository.ActiveFilter{})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}

	seen := make(map[string]bool)
	var res []*models.Order
	for _, o := range completed {
		if o.HasPledge() && !o.DonationVerified && !seen[o.ID] {
			seen[o.ID] = true
			res = append(res, o)
		}
	}
	for _, o := range active {
		if o.HasPledge() && !seen[o.ID] {
			seen[o.ID] = true
			res = append(res, o)
		}
	}
	return res, nil
}

func (s *OrderService) DonationTotal(ctx context.Context) (decimal.Decimal, error) {
	list, err := s.repo.ListVerifiedDonations(ctx, false)
	if err != nil {
		return decimal.Zero, apperr.Provider("store", err)
	}
	total := decimal.Zero
	for _, d := range list {
		total = total.Add(d.Amount)
	}
	return total, nil
}

func (s *OrderService) VerifiedDonations(ctx context.Context, includeArchived bool) ([]*models.VerifiedDonation, error) {
	list, err := s.repo.ListVerifiedDonations(ctx, includeArchived)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	return list, nil
}

func (s *OrderService) CompletedTodayCount(ctx context.Context) (int, error) {
	list, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{CompletedSince: s.midnight(s.now())})
	if err != nil {
		return 0, apperr.Provider("store", err)
	}
	return len(list), nil
}

func (s *OrderService) ActiveOrders(ctx context.Context) ([]*models.Order, error) {
	list, err := s.repo.ListActiveOrders(ctx, repository.ActiveFilter{})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	return list, nil
}

func (s *OrderService) CompletedOrders(ctx context.Context, includeArchived bool) ([]*models.Order, error) {
	list, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{IncludeArchived: includeArchived})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	return list, nil
}

// GetOrder finds an order in either set, active first.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.repo.GetActiveOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	if o != nil {
		return o, nil
	}
	o, err = s.repo.GetCompletedOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	if o == nil {
		return nil, apperr.NotFound("order", orderID)
	}
	return o, nil
}

func (s *OrderService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d    Dashboard
		errs []error
		err  error
	)
	if d.ActiveOrders, err = s.ActiveOrders(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.CompletedOrders, err = s.CompletedOrders(ctx, false); err != nil {
		errs = append(errs, err)
	}
	if d.PendingDonations, err = s.PendingDonations(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.DonationTotal, err = s.DonationTotal(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.CompletedToday, err = s.CompletedTodayCount(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	d.Estimate = s.EstimateWait(ctx, "")
	return &d, nil
}

// EstimateWait never fails: any store problem yields the default estimate.
func (s *OrderService) EstimateWait(ctx context.Context, orderID string) estimate.Result {
	general := orderID == ""
	if general && s.estimates != nil {
		if res, ok, err := s.estimates.Get(ctx); err != nil {
			s.log.Warn("estimate cache read failed", "error", err)
		} else if ok {
			return res
		}
	}

	recent, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{IncludeArchived: true, Limit: estimate.SampleSize})
	if err != nil {
		s.log.Warn("estimate: load completions", "error", err)
		return estimate.Default()
	}
	active, err := s.repo.ListActiveOrders(ctx, repository.ActiveFilter{})
	if err != nil {
		s.log.Warn("estimate: load queue", "error", err)
		return estimate.Default()
	}

	var forTimestamp *time.Time
	for _, o := range active {
		if !general && o.ID == orderID {
			ts := o.SubmittedAt
			forTimestamp = &ts
			break
		}
	}
	res := estimate.Estimate(recent, active, forTimestamp, s.now())

	if general && s.estimates != nil {
		if err := s.estimates.Set(ctx, res); err != nil {
			s.log.Warn("estimate cache write failed", "error", err)
		}
	}
	return res
}

func (s *OrderService) SubmitReview(ctx context.Context, orderID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return apperr.Validation("rating", "rating must be between 1 and 5")
	}
	o, err := s.repo.GetCompletedOrder(ctx, orderID)
	if err != nil {
		return apperr.Provider("store", err)
	}
	if o == nil {
		return apperr.NotFound("completed order", orderID)
	}

	now := s.now()
	comment = strings.TrimSpace(comment)
	err = s.withTx(ctx, func(r repository.Repository) error {
		if err := r.SaveReview(ctx, orderID, rating, comment, now); err != nil {
			return err
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventReviewSubmitted, OrderID: orderID, Rating: rating, OccurredAt: now})
	})
	if err != nil {
		return apperr.Provider("store", err)
	}
	s.publish(live.CollectionCompletedOrders, live.EventModified, orderID)
	return nil
}

// ListOrdersByPhone returns every order placed with exactly this phone,
// newest submission first.
func (s *OrderService) ListOrdersByPhone(ctx context.Context, phone string) ([]*models.Order, error) {
	if phone == "" {
		return nil, apperr.Validation("phone", "phone is required")
	}
	active, err := s.repo.ListActiveOrders(ctx, repository.ActiveFilter{Phone: phone})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	completed, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{Phone: phone, IncludeArchived: true})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}

	res := make([]*models.Order, 0, len(active)+len(completed))
	res = append(res, active...)
	res = append(res, completed...)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].SubmittedAt.After(res[j].SubmittedAt)
	})
	return res, nil
}

func (s *OrderService) ListAllReviews(ctx context.Context) ([]*models.Order, error) {
	list, err := s.repo.ListCompletedOrders(ctx, repository.CompletedFilter{RatedOnly: true, IncludeArchived: true})
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return reviewedAt(list[i]).After(reviewedAt(list[j]))
	})
	return list, nil
}

func (s *OrderService) SetInventory(ctx context.Context, kind, name string, inStock bool) error {
	k, err := menu.ParseKind(kind)
	if err != nil {
		return err
	}
	if !s.catalog.Knows(k, name) {
		return apperr.Validation("name", "%s %q is not on the menu", k, name)
	}

	now := s.now()
	err = s.withTx(ctx, func(r repository.Repository) error {
		if err := r.SetInventory(ctx, models.InventoryFlag{Kind: k, Name: name, InStock: inStock, UpdatedAt: now}); err != nil {
			return err
		}
		return recordEvent(ctx, r, models.Event{Type: models.EventInventoryChanged, Scope: string(k) + ":" + name, OccurredAt: now})
	})
	if err != nil {
		return apperr.Provider("store", err)
	}
	s.publish(live.CollectionInventory, live.EventModified, string(k)+":"+name)
	return nil
}

func (s *OrderService) Inventory(ctx context.Context) ([]models.InventoryFlag, error) {
	flags, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	return flags, nil
}

func (s *OrderService) Menu(ctx context.Context) (menu.Menu, error) {
	flags, err := s.Inventory(ctx)
	if err != nil {
		return menu.Menu{}, err
	}
	return s.catalog.Annotate(flags), nil
}

func (s *OrderService) withTx(ctx context.Context, fn func(repository.Repository) error) error {
	if tx, ok := s.repo.(repository.Transactor); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s.repo)
}

func recordEvent(ctx context.Context, r repository.Repository, ev models.Event) error {
	if rec, ok := r.(repository.EventRecorder); ok {
		return rec.RecordEvent(ctx, ev)
	}
	return nil
}

func (s *OrderService) publish(collection string, typ live.EventType, id string) {
	if s.live == nil {
		return
	}
	s.live.Publish(live.Event{Collection: collection, Type: typ, ID: id, At: s.now().UTC()})
}

func (s *OrderService) invalidateEstimate(ctx context.Context) {
	if s.estimates == nil {
		return
	}
	if err := s.estimates.Invalidate(ctx); err != nil {
		s.log.Warn("estimate cache invalidate failed", "error", err)
	}
}

func (s *OrderService) midnight(t time.Time) time.Time {
	local := t.In(s.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func amountPtr(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

func reviewedAt(o *models.Order) time.Time {
	if o.ReviewedAt == nil {
		return time.Time{}
	}
	return *o.ReviewedAt
}
