package perfectcorp

import (
	"context"
	"log"
	"time"

	"github.com/stylemirror/tryon-backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// tokenSafetyMargin is subtracted from the partner-reported lifetime so a
// token is never used right at its expiry edge.
const tokenSafetyMargin = 60 * time.Second

// TokenStore persists the partner bearer token across invocations.
// No locking: concurrent callers may authenticate twice, which is harmless
// because authentication is idempotent and each caller uses its own token.
type TokenStore interface {
	// GetValid returns the newest token whose expiry is still in the future.
	GetValid(ctx context.Context) (string, bool, error)
	// Save persists a fresh token and opportunistically prunes expired rows.
	Save(ctx context.Context, token string, expiresAt time.Time) error
	// Invalidate drops all cached tokens, forcing the next call to re-authenticate.
	Invalidate(ctx context.Context) error
}

// MongoTokenStore keeps the token cache in a Mongo collection.
type MongoTokenStore struct {
	coll *mongo.Collection
}

func NewMongoTokenStore(coll *mongo.Collection) *MongoTokenStore {
	return &MongoTokenStore{coll: coll}
}

func (s *MongoTokenStore) GetValid(ctx context.Context) (string, bool, error) {
	filter := bson.M{"expires_at": bson.M{"$gt": time.Now()}}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var row models.APIToken
	err := s.coll.FindOne(ctx, filter, opts).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.AccessToken, true, nil
}

func (s *MongoTokenStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	row := models.APIToken{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}
	if _, err := s.coll.InsertOne(ctx, row); err != nil {
		return err
	}

	// Cleanup of stale rows is best-effort; a failure never blocks the caller.
	if _, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now()}}); err != nil {
		log.Printf("token cache cleanup failed: %v", err)
	}
	return nil
}

func (s *MongoTokenStore) Invalidate(ctx context.Context) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{})
	return err
}
