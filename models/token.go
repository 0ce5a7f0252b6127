package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// APIToken is a cached partner-API bearer token. At most one valid row is
// kept; expired rows are pruned opportunistically on save.
type APIToken struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AccessToken string             `bson:"access_token" json:"-"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
