package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/stylemirror/tryon-backend/api"
	"github.com/stylemirror/tryon-backend/config"
	"github.com/stylemirror/tryon-backend/utils"
)

func main() {
	config.LoadConfig()

	// Initialize MongoDB
	if err := utils.ConnectMongo(config.MongoURI); err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	// Initialize S3 up front so handlers never race on a lazy first use
	if err := utils.InitS3(context.Background()); err != nil {
		log.Fatalf("Failed to initialize S3: %v", err)
	}

	// CORS Middleware
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Auth Routes
	http.HandleFunc("/auth/signup", corsMiddleware(api.SignupHandler))
	http.HandleFunc("/auth/verify-otp", corsMiddleware(api.VerifyOTPHandler))
	http.HandleFunc("/auth/login", corsMiddleware(api.LoginHandler))
	http.HandleFunc("/auth/forgot-password", corsMiddleware(api.ForgotPasswordHandler))
	http.HandleFunc("/auth/reset-password", corsMiddleware(api.ResetPasswordHandler))

	// Try-On and Gallery
	http.HandleFunc("/try-on", corsMiddleware(api.AuthMiddleware(api.VirtualTryOnHandler)))
	http.HandleFunc("/gallery", corsMiddleware(api.AuthMiddleware(api.GalleryHandler)))

	// Catalog and Profile
	http.HandleFunc("/catalog/items", corsMiddleware(api.CatalogHandler))
	http.HandleFunc("/create-profile", corsMiddleware(api.AuthMiddleware(api.CreateProfileHandler)))

	// Feedback
	http.HandleFunc("/feedback", corsMiddleware(api.AuthMiddleware(api.FeedbackHandler)))

	port := config.Port
	fmt.Printf("Server starting on port %s...\n", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
