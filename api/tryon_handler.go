package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stylemirror/tryon-backend/config"
	"github.com/stylemirror/tryon-backend/models"
	"github.com/stylemirror/tryon-backend/perfectcorp"
	"github.com/stylemirror/tryon-backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TryOnRequest represents the request body for virtual try-on
type TryOnRequest struct {
	UserPhoto        string `json:"userPhoto"`     // URL, data URL or S3 key
	ClothingImage    string `json:"clothingImage"` // URL, data URL or S3 key
	ClothingCategory string `json:"clothingCategory"`
	IsCustomClothing bool   `json:"isCustomClothing,omitempty"`
	PerfectCorpRefID string `json:"perfectCorpRefId,omitempty"`
	ClothingItemID   string `json:"clothingItemId,omitempty"` // catalog item, used to reuse its stored ref id
}

// TryOnResponse is the response body for virtual try-on
type TryOnResponse struct {
	Success        bool    `json:"success"`
	ResultImg      string  `json:"result_img,omitempty"`
	Error          string  `json:"error,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// VirtualTryOnHandler handles the virtual try-on request
func VirtualTryOnHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Virtual Try-On API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TryOnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if req.UserPhoto == "" {
		utils.RespondError(w, &logMessageBuilder, "userPhoto is required", http.StatusBadRequest)
		return
	}
	if !models.IsValidCategory(req.ClothingCategory) {
		utils.RespondError(w, &logMessageBuilder, "clothingCategory must be upper_body, lower_body or full_body", http.StatusBadRequest)
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Warning: UserID not found in context")
	}

	// A catalog item with a stored partner reference id skips the garment upload.
	refID := req.PerfectCorpRefID
	var item *models.ClothingItem
	if req.ClothingItemID != "" {
		item = lookupClothingItem(r.Context(), req.ClothingItemID, &logMessageBuilder)
		if item != nil && refID == "" && !req.IsCustomClothing {
			refID = item.PerfectCorpRefID
		}
	}

	clothingImage := req.ClothingImage
	if clothingImage == "" && item != nil && len(item.ImageKeys) > 0 {
		clothingImage = item.ImageKeys[0]
	}
	if clothingImage == "" && refID == "" {
		utils.RespondError(w, &logMessageBuilder, "clothingImage or perfectCorpRefId is required", http.StatusBadRequest)
		return
	}

	// Inputs stored as S3 keys become presigned URLs before the engine sees them.
	userPhoto := resolveImageSource(r.Context(), req.UserPhoto)
	clothingImage = resolveImageSource(r.Context(), clothingImage)

	// The full flow (upload, compose, poll, download) can legitimately run for a while.
	tryOnCtx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	var resultBytes []byte
	var processingTime float64
	engine := "perfectcorp"

	if config.PerfectCorpAPIKey != "" {
		client := perfectcorp.NewClient(perfectcorp.Config{
			APIKey:    config.PerfectCorpAPIKey,
			APISecret: config.PerfectCorpAPISecret,
		}, perfectcorp.NewMongoTokenStore(utils.GetCollection(config.DBName, "api_tokens")))

		out, err := client.RunTryOn(tryOnCtx, perfectcorp.TryOnInput{
			UserPhoto:        userPhoto,
			ClothingImage:    clothingImage,
			ClothingCategory: req.ClothingCategory,
			ClothingRefID:    refID,
		})
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Try-on failed: %v", err))
			saveTryOnRecord(userID, req, engine, nil, 0, perfectcorp.UserMessage(err), &logMessageBuilder)
			utils.RespondJSON(w, http.StatusInternalServerError, TryOnResponse{
				Success: false,
				Error:   perfectcorp.UserMessage(err),
			})
			return
		}
		resultBytes = out.ResultBytes
		processingTime = out.ProcessingTime
	} else {
		// No partner credentials configured; fall back to the Gemini engine.
		engine = "gemini"
		start := time.Now()
		generated, err := utils.GenerateTryOnImage(tryOnCtx, userPhoto, []string{clothingImage}, req.ClothingCategory, "")
		if err != nil {
			utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Fallback try-on failed: %v", err))
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "quota") {
				status = http.StatusTooManyRequests
			}
			utils.RespondJSON(w, status, TryOnResponse{Success: false, Error: "Failed to generate try-on image: " + err.Error()})
			return
		}
		resultBytes = generated
		processingTime = time.Since(start).Seconds()
	}

	// Archive the composite and record the session. Neither failure blocks the response.
	saveTryOnRecord(userID, req, engine, resultBytes, processingTime, "", &logMessageBuilder)

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Try-on completed in %.1fs via %s", processingTime, engine))
	utils.RespondJSON(w, http.StatusOK, TryOnResponse{
		Success:        true,
		ResultImg:      perfectcorp.EncodeImageBase64(resultBytes),
		ProcessingTime: processingTime,
	})
}

func lookupClothingItem(ctx context.Context, id string, logMessageBuilder *strings.Builder) *models.ClothingItem {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Invalid clothing item id: %s", id))
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var item models.ClothingItem
	collection := utils.GetCollection(config.DBName, "clothing_items")
	if err := collection.FindOne(lookupCtx, map[string]interface{}{"_id": objID}).Decode(&item); err != nil {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Clothing item not found: %s", id))
		return nil
	}
	return &item
}

// resolveImageSource turns an S3 key into a presigned URL; URLs and data URLs
// pass through unchanged.
func resolveImageSource(ctx context.Context, src string) string {
	if src == "" || strings.HasPrefix(src, "http") || strings.HasPrefix(src, "data:") {
		return src
	}
	if url, err := utils.GetPresignedURL(ctx, src); err == nil {
		return url
	}
	return src
}

func saveTryOnRecord(userID string, req TryOnRequest, engine string, resultBytes []byte, processingTime float64, failure string, logMessageBuilder *strings.Builder) {
	record := models.TryOn{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		ClothingItemID:   req.ClothingItemID,
		ClothingCategory: req.ClothingCategory,
		Engine:           engine,
		Status:           "completed",
		ProcessingTime:   processingTime,
		CreatedAt:        time.Now(),
	}
	if failure != "" {
		record.Status = "failed"
		record.Error = failure
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(resultBytes) > 0 {
		objectKey := fmt.Sprintf("generated_images/generated_tryon_%d.jpg", time.Now().UnixNano())
		if _, err := utils.UploadFileToS3(ctx, bytes.NewReader(resultBytes), objectKey, "image/jpeg"); err != nil {
			utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Failed to archive generated image: %v", err))
		} else {
			record.GeneratedImageKey = objectKey
		}
	}

	collection := utils.GetCollection(config.DBName, "tryons")
	if _, err := collection.InsertOne(ctx, record); err != nil {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Failed to save try-on record: %v", err))
	}
}
