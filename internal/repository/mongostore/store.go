// Package mongostore keeps orders in MongoDB using the collection names of
// the hosted storefront: orders, completedOrders, verifiedDonations and
// inventory. Writes that span two collections are not atomic.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
	"coffeehouse/internal/repository"
)

const (
	OrdersCollection            = "orders"
	CompletedOrdersCollection   = "completedOrders"
	VerifiedDonationsCollection = "verifiedDonations"
	InventoryCollection         = "inventory"
)

type Store struct {
	client    *mongo.Client
	orders    *mongo.Collection
	completed *mongo.Collection
	donations *mongo.Collection
	inventory *mongo.Collection
}

var _ repository.Repository = (*Store)(nil)

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(client.Database(database))
	s.client = client
	return s, nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		orders:    db.Collection(OrdersCollection),
		completed: db.Collection(CompletedOrdersCollection),
		donations: db.Collection(VerifiedDonationsCollection),
		inventory: db.Collection(InventoryCollection),
	}
}

// EnsureIndexes creates the lookup indexes used by phone history and the
// estimator.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer.phone", Value: 1}}},
		{Keys: bson.D{{Key: "submittedAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("orders indexes: %w", err)
	}
	_, err = s.completed.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer.phone", Value: 1}}},
		{Keys: bson.D{{Key: "completedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("completedOrders indexes: %w", err)
	}
	_, err = s.inventory.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("inventory index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Store) GetActiveOrder(ctx context.Context, id string) (*models.Order, error) {
	return findOne(ctx, s.orders, id)
}

func (s *Store) ListActiveOrders(ctx context.Context, f repository.ActiveFilter) ([]*models.Order, error) {
	filter := bson.M{}
	if f.Phone != "" {
		filter["customer.phone"] = f.Phone
	}
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}, {Key: "createdAt", Value: 1}})
	return findOrders(ctx, s.orders, filter, opts)
}

func (s *Store) DeleteActiveOrder(ctx context.Context, id string) error {
	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete active order: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (s *Store) InsertCompletedOrder(ctx context.Context, o *models.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return fmt.Errorf("insert completed order: %w", err)
	}
	if _, err := s.completed.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert completed order: %w", err)
	}
	return nil
}

func (s *Store) GetCompletedOrder(ctx context.Context, id string) (*models.Order, error) {
	return findOne(ctx, s.completed, id)
}

func (s *Store) ListCompletedOrders(ctx context.Context, f repository.CompletedFilter) ([]*models.Order, error) {
	filter := completedFilter(f)
	opts := options.Find().SetSort(bson.D{{Key: "completedAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return findOrders(ctx, s.completed, filter, opts)
}

func completedFilter(f repository.CompletedFilter) bson.M {
	filter := bson.M{}
	if f.Phone != "" {
		filter["customer.phone"] = f.Phone
	}
	if !f.IncludeArchived {
		filter["archived"] = false
	}
	if f.RatedOnly {
		filter["rating"] = bson.M{"$exists": true, "$ne": nil}
	}
	if !f.CompletedSince.IsZero() {
		filter["completedAt"] = bson.M{"$gte": f.CompletedSince}
	}
	return filter
}

func (s *Store) SetDonationVerified(ctx context.Context, id string, verified bool) error {
	return s.updateCompleted(ctx, id, bson.M{"donationVerified": verified})
}

func (s *Store) SaveReview(ctx context.Context, id string, rating int, comment string, at time.Time) error {
	return s.updateCompleted(ctx, id, bson.M{"rating": rating, "reviewComment": comment, "reviewedAt": at})
}

func (s *Store) updateCompleted(ctx context.Context, id string, set bson.M) error {
	res, err := s.completed.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update completed order: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("completed order", id)
	}
	return nil
}

func (s *Store) InsertVerifiedDonation(ctx context.Context, d *models.VerifiedDonation) error {
	doc, err := newDonationDoc(d)
	if err != nil {
		return fmt.Errorf("insert verified donation: %w", err)
	}
	if _, err := s.donations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert verified donation: %w", err)
	}
	return nil
}

func (s *Store) ListVerifiedDonations(ctx context.Context, includeArchived bool) ([]*models.VerifiedDonation, error) {
	filter := bson.M{}
	if !includeArchived {
		filter["archived"] = false
	}
	cur, err := s.donations.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "verifiedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list verified donations: %w", err)
	}
	var docs []donationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode verified donations: %w", err)
	}
	res := make([]*models.VerifiedDonation, 0, len(docs))
	for _, d := range docs {
		v, err := d.donation()
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func (s *Store) ArchiveCompletedOrders(ctx context.Context, since, at time.Time) (int64, error) {
	filter := bson.M{"archived": false}
	if !since.IsZero() {
		filter["completedAt"] = bson.M{"$gte": since}
	}
	res, err := s.completed.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"archived": true, "archivedAt": at}})
	if err != nil {
		return 0, fmt.Errorf("archive completed orders: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) ArchiveVerifiedDonations(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.donations.UpdateMany(ctx, bson.M{"archived": false}, bson.M{"$set": bson.M{"archived": true, "archivedAt": at}})
	if err != nil {
		return 0, fmt.Errorf("archive verified donations: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) ListInventory(ctx context.Context) ([]models.InventoryFlag, error) {
	cur, err := s.inventory.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	var docs []inventoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	res := make([]models.InventoryFlag, 0, len(docs))
	for _, d := range docs {
		res = append(res, models.InventoryFlag{Kind: models.ItemKind(d.Kind), Name: d.Name, InStock: d.InStock, UpdatedAt: d.UpdatedAt})
	}
	return res, nil
}

func (s *Store) SetInventory(ctx context.Context, f models.InventoryFlag) error {
	filter := bson.M{"kind": string(f.Kind), "name": f.Name}
	update := bson.M{"$set": bson.M{"inStock": f.InStock, "updatedAt": f.UpdatedAt}}
	if _, err := s.inventory.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("set inventory: %w", err)
	}
	return nil
}

func findOne(ctx context.Context, coll *mongo.Collection, id string) (*models.Order, error) {
	var doc orderDoc
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return doc.order()
}

func findOrders(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*models.Order, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	res := make([]*models.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.order()
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}
