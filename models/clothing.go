package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Garment categories accepted by the try-on engine.
const (
	CategoryUpperBody = "upper_body"
	CategoryLowerBody = "lower_body"
	CategoryFullBody  = "full_body"
)

// IsValidCategory reports whether c is one of the supported garment categories.
func IsValidCategory(c string) bool {
	return c == CategoryUpperBody || c == CategoryLowerBody || c == CategoryFullBody
}

// ClothingItem represents a catalog garment
type ClothingItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id,omitempty" json:"user_id,omitempty"` // Empty for shared catalog items
	Title       string             `bson:"title" json:"title"`
	Brand       string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Category    string             `bson:"category" json:"category"` // upper_body, lower_body, full_body
	MRP         string             `bson:"mrp,omitempty" json:"mrp,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	ImageKeys   []string           `bson:"image_keys" json:"image_keys"` // S3 object keys
	// PerfectCorpRefID is the reference id the partner API assigned to this
	// garment on a previous upload. When set, try-on requests reuse it
	// instead of re-uploading the garment image.
	PerfectCorpRefID string    `bson:"perfectcorp_ref_id,omitempty" json:"perfectcorp_ref_id,omitempty"`
	IsCustom         bool      `bson:"is_custom" json:"is_custom"` // Uploaded by a user rather than curated
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}
