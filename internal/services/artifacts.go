package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectAPI is the slice of the S3 client the artifacts service needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ArtifactsService pulls user-uploaded artifacts (container image archives)
// out of the storage bucket into scratch space for processing.
type ArtifactsService struct {
	client GetObjectAPI
	bucket string
}

func NewArtifactsService(client GetObjectAPI, bucket string) *ArtifactsService {
	return &ArtifactsService{
		client: client,
		bucket: bucket,
	}
}

// DownloadImageArchive streams the object at key into destDir/image.tar
// and returns the local path.
func (s *ArtifactsService) DownloadImageArchive(ctx context.Context, key, destDir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}

	dest := filepath.Join(destDir, "image.tar")
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return "", fmt.Errorf("failed to write image archive: %w", err)
	}

	return dest, nil
}
