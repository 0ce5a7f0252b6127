package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RespondJSON writes the payload as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers already went out, so logging is all that's left
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// RespondError writes a JSON error response, logging the message to the
// handler's builder when one is passed and to stdout otherwise.
func RespondError(w http.ResponseWriter, logger *strings.Builder, message string, status int) {
	if logger != nil {
		AddToLogMessage(logger, message)
	} else {
		fmt.Println("[Error]", message)
	}
	RespondJSON(w, status, map[string]string{"error": message})
}

// PresignImageURLs maps stored S3 keys to presigned URLs. Entries that are
// already http(s) URLs pass through, and a presign failure falls back to the
// raw key rather than dropping the image.
func PresignImageURLs(ctx context.Context, images []string) []string {
	var out []string
	for _, img := range images {
		if strings.HasPrefix(img, "http") {
			out = append(out, img)
			continue
		}
		if url, err := GetPresignedURL(ctx, img); err == nil {
			out = append(out, url)
		} else {
			out = append(out, img)
		}
	}
	return out
}

// LatencyMiddleware logs how long each request took
func LatencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		fmt.Printf("[Latency] %s %s took %v\n", r.Method, r.URL.Path, time.Since(start))
	})
}
