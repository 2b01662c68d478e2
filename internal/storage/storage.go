// Package storage is the single-laptop store: every collection lives in
// memory and is flushed to one JSON file after each write.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
	"coffeehouse/internal/repository"
)

type snapshot struct {
	Orders            []*models.Order            `json:"orders"`
	CompletedOrders   []*models.Order            `json:"completedOrders"`
	VerifiedDonations []*models.VerifiedDonation `json:"verifiedDonations"`
	Inventory         []models.InventoryFlag     `json:"inventory"`
}

type inventoryKey struct {
	kind models.ItemKind
	name string
}

type OrderStorage struct {
	mu        sync.RWMutex
	dataFile  string
	orders    map[string]*models.Order
	completed map[string]*models.Order
	donations []*models.VerifiedDonation
	inventory map[inventoryKey]models.InventoryFlag
}

var _ repository.Repository = (*OrderStorage)(nil)

// New loads dataFile if it exists. An empty dataFile keeps everything in
// memory.
func New(dataFile string) (*OrderStorage, error) {
	st := &OrderStorage{
		dataFile:  dataFile,
		orders:    make(map[string]*models.Order),
		completed: make(map[string]*models.Order),
		inventory: make(map[inventoryKey]models.InventoryFlag),
	}
	if dataFile == "" {
		return st, nil
	}
	if err := st.loadFromFile(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *OrderStorage) loadFromFile() error {
	file, err := os.Open(st.dataFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	var snap snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode data file: %w", err)
	}
	for _, o := range snap.Orders {
		st.orders[o.ID] = o
	}
	for _, o := range snap.CompletedOrders {
		st.completed[o.ID] = o
	}
	st.donations = snap.VerifiedDonations
	for _, f := range snap.Inventory {
		st.inventory[inventoryKey{f.Kind, f.Name}] = f
	}
	return nil
}

// saveToFile must be called with mu held for writing.
func (st *OrderStorage) saveToFile() error {
	if st.dataFile == "" {
		return nil
	}
	snap := snapshot{
		Orders:            sortedOrders(st.orders),
		CompletedOrders:   sortedOrders(st.completed),
		VerifiedDonations: st.donations,
		Inventory:         make([]models.InventoryFlag, 0, len(st.inventory)),
	}
	for _, f := range st.inventory {
		snap.Inventory = append(snap.Inventory, f)
	}
	sort.Slice(snap.Inventory, func(i, j int) bool {
		if snap.Inventory[i].Kind != snap.Inventory[j].Kind {
			return snap.Inventory[i].Kind < snap.Inventory[j].Kind
		}
		return snap.Inventory[i].Name < snap.Inventory[j].Name
	})

	tmp, err := os.CreateTemp(filepath.Dir(st.dataFile), ".orders-*.json")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), st.dataFile)
}

// commit flushes the current state. If the flush fails, undo puts the maps
// back so a failed write is never visible to readers.
func (st *OrderStorage) commit(undo func()) error {
	if err := st.saveToFile(); err != nil {
		undo()
		return err
	}
	return nil
}

func (st *OrderStorage) CreateOrder(_ context.Context, o *models.Order) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	st.orders[o.ID] = o.Clone()
	return st.commit(func() { delete(st.orders, o.ID) })
}

func (st *OrderStorage) GetActiveOrder(_ context.Context, id string) (*models.Order, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if o, ok := st.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, nil
}

func (st *OrderStorage) ListActiveOrders(_ context.Context, f repository.ActiveFilter) ([]*models.Order, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var res []*models.Order
	for _, o := range st.orders {
		if f.Phone != "" && o.Customer.Phone != f.Phone {
			continue
		}
		res = append(res, o.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].SubmittedAt.Equal(res[j].SubmittedAt) {
			return res[i].SubmittedAt.Before(res[j].SubmittedAt)
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (st *OrderStorage) DeleteActiveOrder(_ context.Context, id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev, ok := st.orders[id]
	if !ok {
		return apperr.NotFound("order", id)
	}
	delete(st.orders, id)
	return st.commit(func() { st.orders[id] = prev })
}

func (st *OrderStorage) InsertCompletedOrder(_ context.Context, o *models.Order) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.completed[o.ID]; exists {
		return fmt.Errorf("completed order %s already exists", o.ID)
	}
	st.completed[o.ID] = o.Clone()
	return st.commit(func() { delete(st.completed, o.ID) })
}

func (st *OrderStorage) GetCompletedOrder(_ context.Context, id string) (*models.Order, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if o, ok := st.completed[id]; ok {
		return o.Clone(), nil
	}
	return nil, nil
}

func (st *OrderStorage) ListCompletedOrders(_ context.Context, f repository.CompletedFilter) ([]*models.Order, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var res []*models.Order
	for _, o := range st.completed {
		switch {
		case f.Phone != "" && o.Customer.Phone != f.Phone:
			continue
		case !f.IncludeArchived && o.Archived:
			continue
		case f.RatedOnly && o.Rating == nil:
			continue
		case !f.CompletedSince.IsZero() && o.CompletedAt.Before(f.CompletedSince):
			continue
		}
		res = append(res, o.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CompletedAt.After(res[j].CompletedAt)
	})
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (st *OrderStorage) SetDonationVerified(_ context.Context, id string, verified bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	o, ok := st.completed[id]
	if !ok {
		return apperr.NotFound("completed order", id)
	}
	prev := o.DonationVerified
	o.DonationVerified = verified
	return st.commit(func() { o.DonationVerified = prev })
}

func (st *OrderStorage) SaveReview(_ context.Context, id string, rating int, comment string, at time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	o, ok := st.completed[id]
	if !ok {
		return apperr.NotFound("completed order", id)
	}
	prev := *o
	r := rating
	o.Rating = &r
	o.ReviewComment = comment
	o.ReviewedAt = &at
	return st.commit(func() { *o = prev })
}

func (st *OrderStorage) InsertVerifiedDonation(_ context.Context, d *models.VerifiedDonation) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(st.donations)
	c := *d
	st.donations = append(st.donations, &c)
	return st.commit(func() { st.donations = st.donations[:n] })
}

func (st *OrderStorage) ListVerifiedDonations(_ context.Context, includeArchived bool) ([]*models.VerifiedDonation, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var res []*models.VerifiedDonation
	for _, d := range st.donations {
		if d.Archived && !includeArchived {
			continue
		}
		c := *d
		res = append(res, &c)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].VerifiedAt.After(res[j].VerifiedAt)
	})
	return res, nil
}

func (st *OrderStorage) ArchiveCompletedOrders(_ context.Context, since, at time.Time) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var n int64
	prev := make(map[*models.Order]models.Order)
	for _, o := range st.completed {
		if o.Archived || (!since.IsZero() && o.CompletedAt.Before(since)) {
			continue
		}
		prev[o] = *o
		ts := at
		o.Archived = true
		o.ArchivedAt = &ts
		o.Status = models.OrderStatusArchived
		n++
	}
	if n == 0 {
		return 0, nil
	}
	err := st.commit(func() {
		for o, old := range prev {
			*o = old
		}
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (st *OrderStorage) ArchiveVerifiedDonations(_ context.Context, at time.Time) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var touched []*models.VerifiedDonation
	for _, d := range st.donations {
		if d.Archived {
			continue
		}
		ts := at
		d.Archived = true
		d.ArchivedAt = &ts
		touched = append(touched, d)
	}
	if len(touched) == 0 {
		return 0, nil
	}
	err := st.commit(func() {
		for _, d := range touched {
			d.Archived = false
			d.ArchivedAt = nil
		}
	})
	if err != nil {
		return 0, err
	}
	return int64(len(touched)), nil
}

func (st *OrderStorage) ListInventory(_ context.Context) ([]models.InventoryFlag, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	res := make([]models.InventoryFlag, 0, len(st.inventory))
	for _, f := range st.inventory {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Kind != res[j].Kind {
			return res[i].Kind < res[j].Kind
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

func (st *OrderStorage) SetInventory(_ context.Context, f models.InventoryFlag) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := inventoryKey{f.Kind, f.Name}
	prev, had := st.inventory[key]
	st.inventory[key] = f
	return st.commit(func() {
		if had {
			st.inventory[key] = prev
			return
		}
		delete(st.inventory, key)
	})
}

func sortedOrders(m map[string]*models.Order) []*models.Order {
	list := make([]*models.Order, 0, len(m))
	for _, o := range m {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].SubmittedAt.Before(list[j].SubmittedAt)
	})
	return list
}
