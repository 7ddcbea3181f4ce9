// Package cart keeps shopping carts in MongoDB behind a Redis read cache.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/skinet/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCartNotFound = errors.New("cart not found")

// cartTTL bounds how long an abandoned cart is kept.
const cartTTL = 90 * 24 * time.Hour

// Repository is the durable cart store.
type Repository interface {
	GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error)
	SetCart(ctx context.Context, cart *domain.ShoppingCart) error
	DeleteCart(ctx context.Context, id string) error
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, id string) (*domain.ShoppingCart, error) {
	var cart domain.ShoppingCart

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// SetCart replaces the whole cart, creating it when absent.
func (m *MongoRepository) SetCart(ctx context.Context, cart *domain.ShoppingCart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
		{
			Keys: bson.D{{Key: "payment_intent_id", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{
				"payment_intent_id": bson.M{"$exists": true},
			}),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
