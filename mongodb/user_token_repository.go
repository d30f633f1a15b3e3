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
	gwerrors "github.com/helioslabs/mcpgate/errors"
)

// UserTokenRepository stores per-(user, provider) OAuth tokens. Token
// values are encrypted before they reach this layer.
type UserTokenRepository struct {
	coll *mongo.Collection
}

func NewUserTokenRepository(ctx context.Context, db *mongo.Database) (domain.UserTokenRepository, error) {
	coll := db.Collection(UserTokensCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "server_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create user token index: %w", err)
	}

	return &UserTokenRepository{coll: coll}, nil
}

// UpsertUserToken replaces the stored token set for a (user, server) pair
// in one atomic write, so a racing read observes the old or the new set,
// never a mix.
func (r *UserTokenRepository) UpsertUserToken(ctx context.Context, tok *domain.UserToken) error {
	if tok.UpdatedAt.IsZero() {
		tok.UpdatedAt = time.Now().UTC()
	}
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"user_id": tok.UserID, "server_id": tok.ServerID},
		tok,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *UserTokenRepository) GetUserToken(ctx context.Context, userID, serverID string) (*domain.UserToken, error) {
	var tok domain.UserToken
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "server_id": serverID}).Decode(&tok)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, gwerrors.ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (r *UserTokenRepository) ListUserTokens(ctx context.Context, userID string) ([]*domain.UserToken, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tokens []*domain.UserToken
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *UserTokenRepository) DeleteUserToken(ctx context.Context, userID, serverID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "server_id": serverID})
	return err
}
