package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusArchived  OrderStatus = "archived"
)

var ErrInvalidTransition = errors.New("invalid order state transition")

type OrderItem struct {
	DrinkName           string `json:"drinkName" bson:"drinkName"`
	Temperature         string `json:"temperature,omitempty" bson:"temperature,omitempty"`
	MilkType            string `json:"milkType,omitempty" bson:"milkType,omitempty"`
	SpecialInstructions string `json:"specialInstructions,omitempty" bson:"specialInstructions,omitempty"`
	Size                string `json:"size,omitempty" bson:"size,omitempty"`
}

// OrderItems is stored as a single JSONB column.
type OrderItems []OrderItem

func (it OrderItems) Value() (driver.Value, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(it)
}

func (it *OrderItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*it = OrderItems{}
		return nil
	default:
		return fmt.Errorf("order items: unsupported type %T", src)
	}
	return json.Unmarshal(raw, it)
}

type Customer struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

type Order struct {
	ID               string          `json:"id"`
	Items            OrderItems      `json:"items"`
	Customer         Customer        `json:"customer"`
	DonationPledged  decimal.Decimal `json:"donationPledged"`
	SubmittedAt      time.Time       `json:"submittedAt"`
	CreatedAt        time.Time       `json:"createdAt"`
	Status           OrderStatus     `json:"status"`
	DonationVerified bool            `json:"donationVerified"`
	CompletedAt      time.Time       `json:"completedAt,omitzero"`
	Archived         bool            `json:"archived"`
	ArchivedAt       *time.Time      `json:"archivedAt,omitempty"`
	Rating           *int            `json:"rating,omitempty"`
	ReviewComment    string          `json:"reviewComment,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewedAt,omitempty"`
}

// UpdateState moves the order one step along active -> completed -> archived.
func (o *Order) UpdateState(newState OrderStatus, now time.Time) error {
	cur := o.CurrentState()
	switch {
	case cur == OrderStatusActive && newState == OrderStatusCompleted:
		o.CompletedAt = now
		o.DonationVerified = false
		o.Archived = false
		o.ArchivedAt = nil
	case cur == OrderStatusCompleted && newState == OrderStatusArchived:
		at := now
		o.Archived = true
		o.ArchivedAt = &at
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, newState)
	}
	o.Status = newState
	return nil
}

func (o *Order) CurrentState() OrderStatus {
	if o.Archived {
		return OrderStatusArchived
	}
	if !o.CompletedAt.IsZero() {
		return OrderStatusCompleted
	}
	return OrderStatusActive
}

func (o *Order) HasPledge() bool {
	return o.DonationPledged.IsPositive()
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append(OrderItems(nil), o.Items...)
	if o.ArchivedAt != nil {
		t := *o.ArchivedAt
		c.ArchivedAt = &t
	}
	if o.Rating != nil {
		r := *o.Rating
		c.Rating = &r
	}
	if o.ReviewedAt != nil {
		t := *o.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

type VerifiedDonation struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	Amount       decimal.Decimal `json:"amount"`
	VerifiedAt   time.Time       `json:"verifiedAt"`
	Archived     bool            `json:"archived"`
	ArchivedAt   *time.Time      `json:"archivedAt,omitempty"`
}

type ItemKind string

const (
	ItemKindDrink ItemKind = "drink"
	ItemKindMilk  ItemKind = "milk"
)

type InventoryFlag struct {
	Kind      ItemKind  `json:"kind"`
	Name      string    `json:"name"`
	InStock   bool      `json:"inStock"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type EventType string

const (
	EventOrderSubmitted   EventType = "order.submitted"
	EventOrderCompleted   EventType = "order.completed"
	EventDonationVerified EventType = "donation.verified"
	EventReviewSubmitted  EventType = "review.submitted"
	EventHistoryArchived  EventType = "history.archived"
	EventInventoryChanged EventType = "inventory.changed"
)

// Event is the outbox payload published to Kafka.
type Event struct {
	Type       EventType        `json:"type"`
	OrderID    string           `json:"orderId,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Rating     int              `json:"rating,omitempty"`
	Count      int64            `json:"count,omitempty"`
	Scope      string           `json:"scope,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}
