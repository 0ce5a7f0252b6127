package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/stylemirror/tryon-backend/config"
	"google.golang.org/api/option"
)

// GenerateTryOnImage generates a virtual try-on composite using Gemini.
// This is the fallback engine used when Perfect Corp credentials are not
// configured.
func GenerateTryOnImage(ctx context.Context, personImageURL string, garmentImageURLs []string, garmentCategory string, personDetails string) ([]byte, error) {
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel("gemini-3-pro-image-preview")

	prompt := fmt.Sprintf(`
Compose a photorealistic image of the person in the first image wearing the garment shown in the following images.
The garment covers the %s. Keep the person's face, pose and background unchanged.
Do not replace the person with a different person.

Person Details: %s
`, strings.ReplaceAll(garmentCategory, "_", " "), personDetails)

	personImgData, err := fetchImage(personImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch person image: %v", err)
	}

	parts := []genai.Part{
		genai.Text(prompt),
		genai.ImageData("jpeg", personImgData),
	}

	for _, url := range garmentImageURLs {
		if url == "" {
			continue
		}
		garmentImgData, err := fetchImage(url)
		if err == nil {
			parts = append(parts, genai.ImageData("jpeg", garmentImgData))
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %v", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content generated")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok {
			return blob.Data, nil
		}
	}

	return nil, fmt.Errorf("unexpected response format (no image part in response)")
}

func fetchImage(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image, status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
