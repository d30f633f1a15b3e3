package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/helioslabs/mcpgate/domain"
)

var ErrProviderNotFound = errors.New("provider not found")

// ProviderRepository stores OAuth client configuration per integrated
// service. Client secrets arrive already encrypted; this layer never sees
// plaintext secret material.
type ProviderRepository struct {
	coll *mongo.Collection
}

func NewProviderRepository(ctx context.Context, db *mongo.Database) (domain.ProviderRepository, error) {
	coll := db.Collection(ProvidersCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "server_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create server_id index: %w", err)
	}

	return &ProviderRepository{coll: coll}, nil
}

func (r *ProviderRepository) CreateProvider(ctx context.Context, cred *domain.ProviderCredential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, cred)
	return err
}

func (r *ProviderRepository) GetProviderByServerID(ctx context.Context, serverID string) (*domain.ProviderCredential, error) {
	var cred domain.ProviderCredential
	err := r.coll.FindOne(ctx, bson.M{"server_id": serverID}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *ProviderRepository) ListProviders(ctx context.Context) ([]*domain.ProviderCredential, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var creds []*domain.ProviderCredential
	if err := cursor.All(ctx, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}
