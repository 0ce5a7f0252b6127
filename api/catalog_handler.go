package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stylemirror/tryon-backend/config"
	"github.com/stylemirror/tryon-backend/models"
	"github.com/stylemirror/tryon-backend/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogHandler routes catalog item requests by method
func CatalogHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ListCatalogItemsHandler(w, r)
	case http.MethodPost:
		AuthMiddleware(CreateCatalogItemHandler)(w, r)
	default:
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// CreateCatalogItemHandler adds a garment to the catalog. Images come either
// as multipart uploads or as external URLs fetched into S3. An optional
// perfectcorp_ref_id stores the partner's garment reference for reuse.
func CreateCatalogItemHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Create Catalog Item API]")

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Error parsing form data", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	category := r.FormValue("category")
	if title == "" {
		utils.RespondError(w, &logMessageBuilder, "Title is required", http.StatusBadRequest)
		return
	}
	if !models.IsValidCategory(category) {
		utils.RespondError(w, &logMessageBuilder, "Category must be upper_body, lower_body or full_body", http.StatusBadRequest)
		return
	}

	var imageKeys []string

	// Direct multipart uploads
	for _, fileHeader := range r.MultipartForm.File["images"] {
		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error opening file %s", fileHeader.Filename), http.StatusInternalServerError)
			return
		}
		defer file.Close()

		ext := filepath.Ext(fileHeader.Filename)
		objectKey := fmt.Sprintf("catalog_images/%s%s", uuid.New().String(), ext)

		key, err := utils.UploadFileToS3(r.Context(), file, objectKey, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error uploading file %s", fileHeader.Filename), http.StatusInternalServerError)
			return
		}
		imageKeys = append(imageKeys, key)
	}

	// Externally hosted images, fetched into our bucket
	if imageURLs := r.MultipartForm.Value["image_urls"]; len(imageURLs) > 0 {
		urlToKey, err := utils.UploadImagesToS3(r.Context(), imageURLs, "catalog_images")
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Error importing image URLs: %v", err))
		}
		for _, url := range imageURLs {
			if key, ok := urlToKey[url]; ok {
				imageKeys = append(imageKeys, key)
			}
		}
	}

	if len(imageKeys) == 0 {
		utils.RespondError(w, &logMessageBuilder, "At least one image is required", http.StatusBadRequest)
		return
	}

	isCustom := r.FormValue("is_custom") == "true"
	item := models.ClothingItem{
		ID:               primitive.NewObjectID(),
		Title:            title,
		Brand:            r.FormValue("brand"),
		Category:         category,
		MRP:              r.FormValue("mrp"),
		Description:      r.FormValue("description"),
		ImageKeys:        imageKeys,
		PerfectCorpRefID: r.FormValue("perfectcorp_ref_id"),
		IsCustom:         isCustom,
		CreatedAt:        time.Now(),
	}
	if isCustom {
		item.UserID = userID
	}

	collection := utils.GetCollection(config.DBName, "clothing_items")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.InsertOne(ctx, item); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error saving catalog item: %v", err), http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Catalog item created with %d images", len(imageKeys)))

	// Return presigned URLs, keep keys in the DB
	item.ImageKeys = utils.PresignImageURLs(r.Context(), item.ImageKeys)
	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Catalog item created successfully",
		"item":    item,
	})
}

// CatalogListResponse represents the response structure for the catalog list API
type CatalogListResponse struct {
	Items       []models.ClothingItem `json:"items"`
	Total       int64                 `json:"total"`
	CurrentPage int                   `json:"current_page"`
	TotalPages  int                   `json:"total_pages"`
}

// ListCatalogItemsHandler returns catalog garments with presigned image URLs
func ListCatalogItemsHandler(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := 20

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	filter := bson.M{}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}

	collection := utils.GetCollection(config.DBName, "clothing_items")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		utils.RespondError(w, nil, "Failed to fetch catalog", http.StatusInternalServerError)
		return
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	findOptions.SetSkip(int64((page - 1) * limit))
	findOptions.SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		utils.RespondError(w, nil, "Failed to fetch catalog", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(ctx)

	var items []models.ClothingItem
	if err = cursor.All(ctx, &items); err != nil {
		utils.RespondError(w, nil, "Failed to decode catalog", http.StatusInternalServerError)
		return
	}

	for i := range items {
		items[i].ImageKeys = utils.PresignImageURLs(r.Context(), items[i].ImageKeys)
	}
	if items == nil {
		items = []models.ClothingItem{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}

	utils.RespondJSON(w, http.StatusOK, CatalogListResponse{
		Items:       items,
		Total:       total,
		CurrentPage: page,
		TotalPages:  totalPages,
	})
}
