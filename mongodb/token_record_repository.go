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

// TokenRecordRepository is the Mongo-backed revocation ledger.
type TokenRecordRepository struct {
	coll *mongo.Collection
}

func NewTokenRecordRepository(ctx context.Context, db *mongo.Database) (domain.TokenRecordRepository, error) {
	coll := db.Collection(TokenRecordsCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subject_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create subject index: %w", err)
	}

	return &TokenRecordRepository{coll: coll}, nil
}

func (r *TokenRecordRepository) CreateRecord(ctx context.Context, rec *domain.TokenRecord) error {
	_, err := r.coll.InsertOne(ctx, rec)
	return err
}

func (r *TokenRecordRepository) GetRecord(ctx context.Context, jti string) (*domain.TokenRecord, error) {
	var rec domain.TokenRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": jti}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New("token record not found")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *TokenRecordRepository) TouchRecord(ctx context.Context, jti string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": jti},
		bson.M{"$set": bson.M{"last_used_at": time.Now().UTC()}},
	)
	return err
}

// RevokeRecord is idempotent: revoking an already-revoked or unknown jti
// succeeds without effect.
func (r *TokenRecordRepository) RevokeRecord(ctx context.Context, jti string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": jti},
		bson.M{"$set": bson.M{"revoked": true}},
	)
	return err
}

func (r *TokenRecordRepository) ListRecordsBySubject(ctx context.Context, subjectID string) ([]*domain.TokenRecord, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"subject_id": subjectID},
		options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*domain.TokenRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecord removes a ledger entry permanently. Administrative purge
// only; normal invalidation is RevokeRecord.
func (r *TokenRecordRepository) DeleteRecord(ctx context.Context, jti string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": jti})
	return err
}
