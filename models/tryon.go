package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TryOn represents a virtual try-on session and result
type TryOn struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            string             `bson:"user_id" json:"user_id"`
	ClothingItemID    string             `bson:"clothing_item_id,omitempty" json:"clothing_item_id,omitempty"`
	ClothingCategory  string             `bson:"clothing_category" json:"clothing_category"`
	PersonImageKey    string             `bson:"person_image_key" json:"person_image_key"`         // S3 key of the source photo, if archived
	GeneratedImageKey string             `bson:"generated_image_key" json:"generated_image_key"`   // S3 key of the composite
	Engine            string             `bson:"engine" json:"engine"`                             // perfectcorp or gemini
	Status            string             `bson:"status" json:"status"`                             // completed, failed
	ProcessingTime    float64            `bson:"processing_time_sec" json:"processing_time_sec"`   // seconds
	Error             string             `bson:"error,omitempty" json:"error,omitempty"`           // User-facing message for failed runs
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	IsDeleted         bool               `bson:"is_deleted" json:"is_deleted"` // Soft delete flag
}
