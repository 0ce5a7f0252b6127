package perfectcorp

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// TryOnInput is one try-on request as it arrives from the UI layer.
type TryOnInput struct {
	UserPhoto        string // http(s) URL or data URL
	ClothingImage    string // http(s) URL or data URL; optional when ClothingRefID is set
	ClothingCategory string // upper_body, lower_body, full_body
	ClothingRefID    string // previously persisted partner reference id, reused when set
}

// TryOnOutput is the composite image produced for a successful request.
type TryOnOutput struct {
	ResultImage    string // base64
	ResultBytes    []byte
	ProcessingTime float64 // seconds
}

var validCategories = map[string]bool{
	"upper_body": true,
	"lower_body": true,
	"full_body":  true,
}

// RunTryOn sequences the full flow: authenticate, discover the endpoint,
// upload the user photo and resolve the garment reference (concurrently when
// both need fresh uploads), submit the compose task, poll it to a terminal
// state and download the composite. Any stage failure short-circuits the
// rest; translate the returned error with UserMessage before showing it to
// a user.
func (c *Client) RunTryOn(ctx context.Context, in TryOnInput) (*TryOnOutput, error) {
	start := time.Now()

	if !validCategories[in.ClothingCategory] {
		return nil, fmt.Errorf("invalid clothing category %q (expected upper_body, lower_body or full_body)", in.ClothingCategory)
	}
	if in.UserPhoto == "" {
		return nil, fmt.Errorf("user photo is required")
	}
	if in.ClothingImage == "" && in.ClothingRefID == "" {
		return nil, fmt.Errorf("either a clothing image or a clothing reference id is required")
	}

	// Fails fast on bad credentials and warms the token cache before the
	// upload fan-out re-validates per strategy.
	if _, err := c.Authenticate(ctx, false); err != nil {
		return nil, err
	}
	// A cached token skips the login that would otherwise resolve the
	// endpoint; resolve it here so the upload fan-out shares one result.
	if _, err := c.ensureEndpoint(ctx); err != nil {
		return nil, err
	}

	var photoFileID, garmentRefID string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := c.FetchInputImage(gctx, in.UserPhoto)
		if err != nil {
			return fmt.Errorf("user photo: %w", err)
		}
		id, err := c.UploadFile(gctx, data, "user_photo.jpg", "image/jpeg")
		if err != nil {
			return fmt.Errorf("user photo: %w", err)
		}
		photoFileID = id
		return nil
	})

	g.Go(func() error {
		if in.ClothingRefID != "" {
			garmentRefID = in.ClothingRefID
			return nil
		}
		data, err := c.FetchInputImage(gctx, in.ClothingImage)
		if err != nil {
			return fmt.Errorf("clothing image: %w", err)
		}
		id, err := c.UploadFile(gctx, data, "garment.jpg", "image/jpeg")
		if err != nil {
			return fmt.Errorf("clothing image: %w", err)
		}
		garmentRefID = id
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	taskID, err := c.SubmitTask(ctx, photoFileID, garmentRefID, in.ClothingCategory)
	if err != nil {
		return nil, err
	}

	status, err := c.PollTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.OutputURL == "" {
		return nil, fmt.Errorf("task polling: unexpected response format: no result url in success payload")
	}

	resultBytes, err := c.DownloadResult(ctx, status.OutputURL)
	if err != nil {
		return nil, err
	}

	return &TryOnOutput{
		ResultImage:    EncodeImageBase64(resultBytes),
		ResultBytes:    resultBytes,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}
