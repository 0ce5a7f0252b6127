package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/stylemirror/tryon-backend/config"
	"github.com/stylemirror/tryon-backend/models"
	"github.com/stylemirror/tryon-backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GalleryResponse represents the response structure for the gallery API
type GalleryResponse struct {
	Images      []models.TryOn `json:"images"`
	Total       int64          `json:"total"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
}

// GalleryHandler handles fetching the user's generated images
func GalleryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}

	page := 1
	limit := 10

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	collection := utils.GetCollection(config.DBName, "tryons")
	filter := bson.M{"user_id": userID, "status": "completed", "is_deleted": false}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.RespondError(w, nil, "Failed to fetch data", http.StatusInternalServerError)
		return
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}}) // Show latest first
	findOptions.SetSkip(int64((page - 1) * limit))
	findOptions.SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.RespondError(w, nil, "Failed to fetch data", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var tryOns []models.TryOn
	if err = cursor.All(ctx, &tryOns); err != nil {
		utils.RespondError(w, nil, "Failed to decode data", http.StatusInternalServerError)
		return
	}

	// Stored keys become presigned URLs in the response
	for i := range tryOns {
		if tryOns[i].GeneratedImageKey != "" {
			if presignedURL, err := utils.GetPresignedURL(r.Context(), tryOns[i].GeneratedImageKey); err == nil {
				tryOns[i].GeneratedImageKey = presignedURL
			}
		}
		if tryOns[i].PersonImageKey != "" {
			if presignedURL, err := utils.GetPresignedURL(r.Context(), tryOns[i].PersonImageKey); err == nil {
				tryOns[i].PersonImageKey = presignedURL
			}
		}
	}

	// Ensure empty slice is returned as [] instead of null
	if tryOns == nil {
		tryOns = []models.TryOn{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	utils.RespondJSON(w, http.StatusOK, GalleryResponse{
		Images:      tryOns,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages,
	})
}
