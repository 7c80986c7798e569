package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Event is the resolver invocation envelope.
type Event struct {
	Arguments struct {
		S3Key string `json:"s3Key"`
	} `json:"arguments"`
}

// Output reports the processing outcome. Status is SUCCESS or ERROR so the
// caller never has to interpret a transport failure.
type Output struct {
	Status    string `json:"status"`
	S3Key     string `json:"s3Key,omitempty"`
	LocalPath string `json:"localPath,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Handler struct {
	artifacts *services.ArtifactsService
}

func NewHandler(env string) (*Handler, error) {
	ctx := context.TODO()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var paramStore services.ParameterStore
	if os.Getenv("DISABLE_SSM") == "true" {
		paramStore = services.NewEnvParameterStore(env)
	} else {
		paramStore = services.NewSSMParameterStore(di.ProvideSSMClient(cfg), env)
	}

	appConfig, err := paramStore.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &Handler{
		artifacts: services.NewArtifactsService(
			s3.NewFromConfig(cfg),
			appConfig.ArtifactsBucket,
		),
	}, nil
}

// HandleProcessing pulls an uploaded image archive into scratch space.
// Failures come back in the result body with status ERROR.
func (h *Handler) HandleProcessing(ctx context.Context, event Event) (Output, error) {
	logger := zerolog.Ctx(ctx)

	if event.Arguments.S3Key == "" {
		return Output{
			Status: "ERROR",
			Error:  "s3Key is required",
		}, nil
	}

	logger.Info().
		Str("s3_key", event.Arguments.S3Key).
		Msg("Processing image archive")

	localPath, err := h.artifacts.DownloadImageArchive(ctx, event.Arguments.S3Key, "/tmp/docker-processing")
	if err != nil {
		logger.Error().
			Err(err).
			Str("s3_key", event.Arguments.S3Key).
			Msg("Failed to download image archive")
		return Output{
			Status: "ERROR",
			S3Key:  event.Arguments.S3Key,
			Error:  err.Error(),
		}, nil
	}

	logger.Info().
		Str("s3_key", event.Arguments.S3Key).
		Str("local_path", localPath).
		Msg("Image archive downloaded")

	return Output{
		Status:    "SUCCESS",
		S3Key:     event.Arguments.S3Key,
		LocalPath: localPath,
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "docker-processing").Logger()

	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		logger.Error().Msg("ENV or ENVIRONMENT variable is required")
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		handler, err := NewHandler(env)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}

		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, event Event) (Output, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleProcessing(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "docker-processing",
		Usage: "Download an uploaded image archive for processing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "s3-key",
				Usage:    "Object key of the uploaded image archive",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			var event Event
			event.Arguments.S3Key = c.String("s3-key")

			ctx := logger.WithContext(context.Background())
			out, err := handler.HandleProcessing(ctx, event)
			if err != nil {
				return err
			}
			if out.Status != "SUCCESS" {
				return fmt.Errorf("processing failed: %s", out.Error)
			}

			logger.Info().
				Str("local_path", out.LocalPath).
				Msg("Image archive downloaded")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
