package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.GetObjectInput
	body  string
	err   error
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestHandleProcessing(t *testing.T) {
	client := &fakeS3{body: "tar-bytes"}
	handler := &Handler{artifacts: services.NewArtifactsService(client, "uploads-bucket")}
	t.Cleanup(func() { os.RemoveAll("/tmp/docker-processing") })

	var event Event
	event.Arguments.S3Key = "uploads/image.tar"

	out, err := handler.HandleProcessing(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, "SUCCESS", out.Status)
	assert.Equal(t, "uploads/image.tar", out.S3Key)
	assert.Equal(t, "/tmp/docker-processing/image.tar", out.LocalPath)
	assert.Empty(t, out.Error)

	assert.Equal(t, "uploads-bucket", aws.ToString(client.input.Bucket))
	assert.Equal(t, "uploads/image.tar", aws.ToString(client.input.Key))

	data, err := os.ReadFile(out.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "tar-bytes", string(data))
}

func TestHandleProcessing_MissingKey(t *testing.T) {
	handler := &Handler{artifacts: services.NewArtifactsService(&fakeS3{}, "uploads-bucket")}

	out, err := handler.HandleProcessing(context.Background(), Event{})
	require.NoError(t, err)

	assert.Equal(t, "ERROR", out.Status)
	assert.Contains(t, out.Error, "s3Key")
}

func TestHandleProcessing_DownloadFailure(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	handler := &Handler{artifacts: services.NewArtifactsService(client, "uploads-bucket")}

	var event Event
	event.Arguments.S3Key = "uploads/missing.tar"

	out, err := handler.HandleProcessing(context.Background(), event)

	// Failures come back in the body, not as a handler error
	require.NoError(t, err)
	assert.Equal(t, "ERROR", out.Status)
	assert.Contains(t, out.Error, "access denied")
}
