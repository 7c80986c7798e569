package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/reconciler"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type Handler struct {
	reconciler *reconciler.Reconciler
}

func NewHandler(env string) (*Handler, error) {
	instanceService, err := services.NewInstanceService(env)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance service: %w", err)
	}

	return &Handler{
		reconciler: reconciler.New(instanceService),
	}, nil
}

// HandleStateChange applies one lifecycle notification from the event bus.
// All errors are logged and swallowed: a handler-side failure must not
// trigger bus-side redelivery storms, and there is no caller to report to.
func (h *Handler) HandleStateChange(ctx context.Context, event events.CloudWatchEvent) error {
	logger := zerolog.Ctx(ctx)

	logger.Info().
		Str("source", event.Source).
		Str("detail_type", event.DetailType).
		RawJSON("detail", event.Detail).
		Msg("Received instance state change event")

	var change reconciler.StateChange
	if err := json.Unmarshal(event.Detail, &change); err != nil {
		logger.Error().Err(err).Msg("Failed to parse state change detail")
		return nil
	}

	if err := h.reconciler.Apply(ctx, change); err != nil {
		logger.Error().
			Err(err).
			Str("instance_id", change.InstanceID).
			Str("state", string(change.State)).
			Msg("Failed to apply state change")
	}

	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "update-instance-state").Logger()

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
		wrappedHandler := func(ctx context.Context, event events.CloudWatchEvent) error {
			ctx = logger.WithContext(ctx)
			return handler.HandleStateChange(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "update-instance-state",
		Usage: "Apply an instance lifecycle notification to the record store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "instance-id",
				Usage:    "EC2 instance ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "state",
				Usage:    "New lifecycle state (pending, running, shutting-down, stopping, stopped, terminated)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "previous-state",
				Usage: "Previous lifecycle state (informational)",
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			detail, err := json.Marshal(map[string]string{
				"instance-id":    c.String("instance-id"),
				"state":          c.String("state"),
				"previous-state": c.String("previous-state"),
			})
			if err != nil {
				return err
			}

			ctx := logger.WithContext(context.Background())
			return handler.HandleStateChange(ctx, events.CloudWatchEvent{
				Source:     "aws.ec2",
				DetailType: "EC2 Instance State-change Notification",
				Detail:     detail,
			})
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
