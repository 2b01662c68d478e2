package repository

import (
	"context"
	"time"

	"coffeehouse/internal/models"
)

type ActiveFilter struct {
	Phone string
}

type CompletedFilter struct {
	Phone           string
	RatedOnly       bool
	IncludeArchived bool
	// CompletedSince limits to orders completed at or after the instant.
	CompletedSince time.Time
	// Limit > 0 returns the newest Limit orders by completion time.
	Limit int
}

// Repository is the storage contract shared by the postgres, mongo and file
// backends. Getters return (nil, nil) when the record is absent.
type Repository interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetActiveOrder(ctx context.Context, id string) (*models.Order, error)
	ListActiveOrders(ctx context.Context, f ActiveFilter) ([]*models.Order, error)
	DeleteActiveOrder(ctx context.Context, id string) error

	InsertCompletedOrder(ctx context.Context, o *models.Order) error
	GetCompletedOrder(ctx context.Context, id string) (*models.Order, error)
	ListCompletedOrders(ctx context.Context, f CompletedFilter) ([]*models.Order, error)
	SetDonationVerified(ctx context.Context, id string, verified bool) error
	SaveReview(ctx context.Context, id string, rating int, comment string, at time.Time) error

	InsertVerifiedDonation(ctx context.Context, d *models.VerifiedDonation) error
	ListVerifiedDonations(ctx context.Context, includeArchived bool) ([]*models.VerifiedDonation, error)

	ArchiveCompletedOrders(ctx context.Context, since, at time.Time) (int64, error)
	ArchiveVerifiedDonations(ctx context.Context, at time.Time) (int64, error)

	ListInventory(ctx context.Context) ([]models.InventoryFlag, error)
	SetInventory(ctx context.Context, flag models.InventoryFlag) error
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// EventRecorder is implemented by stores that keep a transactional outbox.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev models.Event) error
}
