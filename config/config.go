package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

var (
	MongoURI      string
	DBName        string
	Port          string
	JWTSecret     string
	AWSRegion     string
	AWSBucketName string

	// Perfect Corp partner API credentials. APISecret is the RSA public key
	// supplied with the API key, either full PEM or the bare base64 body.
	PerfectCorpAPIKey    string
	PerfectCorpAPISecret string

	// Fallback engine used when Perfect Corp credentials are not configured.
	GeminiAPIKey string

	SendGridAPIKey string
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = os.Getenv("MONGO_URI")
	if MongoURI == "" {
		MongoURI = "mongodb://localhost:27017/"
	}

	DBName = os.Getenv("DB_NAME")
	if DBName == "" {
		DBName = "stylemirror"
	}

	Port = os.Getenv("PORT")
	if Port == "" {
		Port = "8080"
	}

	JWTSecret = os.Getenv("JWT_SECRET")

	AWSRegion = os.Getenv("AWS_REGION")
	if AWSRegion == "" {
		AWSRegion = "ap-south-1"
	}
	AWSBucketName = os.Getenv("AWS_BUCKET_NAME")

	PerfectCorpAPIKey = os.Getenv("PERFECTCORP_API_KEY")
	PerfectCorpAPISecret = os.Getenv("PERFECTCORP_API_SECRET")

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
}
