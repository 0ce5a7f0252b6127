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
)

// CreateProfileHandler stores a body profile with photos used as try-on sources
func CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()
	utils.AddToLogMessage(&logMessageBuilder, "[Create Profile API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse multipart form (max 10MB)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Error parsing form data", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		utils.RespondError(w, &logMessageBuilder, "Name is required", http.StatusBadRequest)
		return
	}

	age, _ := strconv.Atoi(r.FormValue("age"))
	height, _ := strconv.ParseFloat(r.FormValue("height"), 64)
	weight, _ := strconv.ParseFloat(r.FormValue("weight"), 64)
	chest, _ := strconv.ParseFloat(r.FormValue("chest"), 64)
	waist, _ := strconv.ParseFloat(r.FormValue("waist"), 64)
	hips, _ := strconv.ParseFloat(r.FormValue("hips"), 64)

	// Photos go straight to S3; only keys are persisted
	var imageKeys []string
	for _, fileHeader := range r.MultipartForm.File["images"] {
		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, "Error retrieving file", http.StatusInternalServerError)
			return
		}
		defer file.Close()

		ext := filepath.Ext(fileHeader.Filename)
		objectKey := fmt.Sprintf("user_images/%s/%s%s", userID, uuid.New().String(), ext)

		key, err := utils.UploadFileToS3(r.Context(), file, objectKey, fileHeader.Header.Get("Content-Type"))
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error uploading file: %v", err), http.StatusInternalServerError)
			return
		}
		imageKeys = append(imageKeys, key)
	}

	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Processed %d images", len(imageKeys)))

	now := time.Now()
	person := models.Person{
		UserID:    userID,
		Name:      name,
		Age:       age,
		Gender:    r.FormValue("gender"),
		Height:    height,
		Weight:    weight,
		Chest:     chest,
		Waist:     waist,
		Hips:      hips,
		ImageKeys: imageKeys,
		CreatedAt: now,
		UpdatedAt: now,
	}

	collection := utils.GetCollection(config.DBName, "person")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := collection.InsertOne(ctx, person)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error saving to database: %v", err), http.StatusInternalServerError)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "Profile created successfully")

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile created successfully",
		"id":      result.InsertedID,
		"person":  person,
	})
}
