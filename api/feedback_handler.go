package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stylemirror/tryon-backend/config"
	"github.com/stylemirror/tryon-backend/models"
	"github.com/stylemirror/tryon-backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedbackHandler handles feedback submission
func FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	logMessageBuilder := strings.Builder{}
	utils.AddToLogMessage(&logMessageBuilder, "[Feedback API]")
	defer func() {
		fmt.Println(logMessageBuilder.String())
	}()

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userIDStr, err := GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid user ID", http.StatusUnauthorized)
		return
	}

	// Parse multipart form
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10 MB limit
		utils.RespondError(w, &logMessageBuilder, "Error parsing form data", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	email := r.FormValue("email")
	message := r.FormValue("message")
	contactBack := r.FormValue("contact_back") == "true"

	if name == "" || email == "" || message == "" {
		utils.RespondError(w, &logMessageBuilder, "Name, email, and message are required", http.StatusBadRequest)
		return
	}

	// Handle file uploads
	var fileKeys []string
	for _, file := range r.MultipartForm.File["files"] {
		f, err := file.Open()
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error opening file %s", file.Filename), http.StatusInternalServerError)
			return
		}
		defer f.Close()

		ext := filepath.Ext(file.Filename)
		objectKey := fmt.Sprintf("feedback/%s/%s%s", userIDStr, uuid.New().String(), ext)

		key, err := utils.UploadFileToS3(r.Context(), f, objectKey, file.Header.Get("Content-Type"))
		if err != nil {
			utils.RespondError(w, &logMessageBuilder, fmt.Sprintf("Error uploading file %s", file.Filename), http.StatusInternalServerError)
			return
		}
		fileKeys = append(fileKeys, key)
	}

	feedback := models.Feedback{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		Name:         name,
		Email:        email,
		CountryCode:  r.FormValue("country_code"),
		MobileNumber: r.FormValue("mobile_number"),
		Message:      message,
		ContactBack:  contactBack,
		FileKeys:     fileKeys,
		CreatedAt:    time.Now(),
	}

	collection := utils.GetCollection(config.DBName, "feedbacks")
	if _, err := collection.InsertOne(context.TODO(), feedback); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Error saving feedback", http.StatusInternalServerError)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"message": "Feedback submitted successfully"})
}
