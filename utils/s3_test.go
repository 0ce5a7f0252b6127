package utils

import (
	"context"
	"strings"
	"testing"
)

func TestS3HelpersRequireExplicitInit(t *testing.T) {
	prevClient, prevPresign := S3Client, PresignClient
	S3Client, PresignClient = nil, nil
	defer func() { S3Client, PresignClient = prevClient, prevPresign }()

	if _, err := UploadFileToS3(context.Background(), strings.NewReader("x"), "key.jpg", "image/jpeg"); err == nil {
		t.Error("expected an error when uploading before InitS3")
	}
	if _, err := GetPresignedURL(context.Background(), "key.jpg"); err == nil {
		t.Error("expected an error when presigning before InitS3")
	}
}
