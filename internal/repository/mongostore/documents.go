package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"coffeehouse/internal/models"
)

type orderDoc struct {
	ID               string               `bson:"_id"`
	Items            []models.OrderItem   `bson:"items"`
	Customer         models.Customer      `bson:"customer"`
	DonationPledged  primitive.Decimal128 `bson:"donationPledged"`
	SubmittedAt      time.Time            `bson:"submittedAt"`
	CreatedAt        time.Time            `bson:"createdAt"`
	CompletedAt      *time.Time           `bson:"completedAt,omitempty"`
	DonationVerified bool                 `bson:"donationVerified"`
	Archived         bool                 `bson:"archived"`
	ArchivedAt       *time.Time           `bson:"archivedAt,omitempty"`
	Rating           *int                 `bson:"rating,omitempty"`
	ReviewComment    string               `bson:"reviewComment,omitempty"`
	ReviewedAt       *time.Time           `bson:"reviewedAt,omitempty"`
}

type donationDoc struct {
	ID           string               `bson:"_id"`
	OrderID      string               `bson:"orderId"`
	CustomerName string               `bson:"customerName"`
	Amount       primitive.Decimal128 `bson:"amount"`
	VerifiedAt   time.Time            `bson:"verifiedAt"`
	Archived     bool                 `bson:"archived"`
	ArchivedAt   *time.Time           `bson:"archivedAt,omitempty"`
}

type inventoryDoc struct {
	Kind      string    `bson:"kind"`
	Name      string    `bson:"name"`
	InStock   bool      `bson:"inStock"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored amount %s: %w", v.String(), err)
	}
	return d, nil
}

func newOrderDoc(o *models.Order) (orderDoc, error) {
	pledged, err := toDecimal128(o.DonationPledged)
	if err != nil {
		return orderDoc{}, err
	}
	doc := orderDoc{
		ID:               o.ID,
		Items:            o.Items,
		Customer:         o.Customer,
		DonationPledged:  pledged,
		SubmittedAt:      o.SubmittedAt,
		CreatedAt:        o.CreatedAt,
		DonationVerified: o.DonationVerified,
		Archived:         o.Archived,
		ArchivedAt:       o.ArchivedAt,
		Rating:           o.Rating,
		ReviewComment:    o.ReviewComment,
		ReviewedAt:       o.ReviewedAt,
	}
	if doc.Items == nil {
		doc.Items = []models.OrderItem{}
	}
	if !o.CompletedAt.IsZero() {
		t := o.CompletedAt
		doc.CompletedAt = &t
	}
	return doc, nil
}

func (d orderDoc) order() (*models.Order, error) {
	pledged, err := fromDecimal128(d.DonationPledged)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", d.ID, err)
	}
	o := &models.Order{
		ID:               d.ID,
		Items:            models.OrderItems(d.Items),
		Customer:         d.Customer,
		DonationPledged:  pledged,
		SubmittedAt:      d.SubmittedAt,
		CreatedAt:        d.CreatedAt,
		DonationVerified: d.DonationVerified,
		Archived:         d.Archived,
		ArchivedAt:       d.ArchivedAt,
		Rating:           d.Rating,
		ReviewComment:    d.ReviewComment,
		ReviewedAt:       d.ReviewedAt,
	}
	if d.CompletedAt != nil {
		o.CompletedAt = *d.CompletedAt
	}
	o.Status = o.CurrentState()
	return o, nil
}

func newDonationDoc(v *models.VerifiedDonation) (donationDoc, error) {
	amount, err := toDecimal128(v.Amount)
	if err != nil {
		return donationDoc{}, err
	}
	return donationDoc{
		ID:           v.ID,
		OrderID:      v.OrderID,
		CustomerName: v.CustomerName,
		Amount:       amount,
		VerifiedAt:   v.VerifiedAt,
		Archived:     v.Archived,
		ArchivedAt:   v.ArchivedAt,
	}, nil
}

func (d donationDoc) donation() (*models.VerifiedDonation, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("donation %s: %w", d.ID, err)
	}
	return &models.VerifiedDonation{
		ID:           d.ID,
		OrderID:      d.OrderID,
		CustomerName: d.CustomerName,
		Amount:       amount,
		VerifiedAt:   d.VerifiedAt,
		Archived:     d.Archived,
		ArchivedAt:   d.ArchivedAt,
	}, nil
}
