package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Event is the resolver invocation envelope. lastMinutes arrives as a
// string from the schema layer.
type Event struct {
	Arguments struct {
		InstanceID  string `json:"instanceId"`
		LastMinutes string `json:"lastMinutes"`
	} `json:"arguments"`
}

type Handler struct {
	logs *services.LogsService
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

	client := cloudwatchlogs.NewFromConfig(cfg)

	return &Handler{
		logs: services.NewLogsService(client, appConfig.LogGroup),
	}, nil
}

// HandleGetLogs fetches recent log lines for one instance. The result is
// always well-formed; backend failures surface as a typed error field.
func (h *Handler) HandleGetLogs(ctx context.Context, event Event) (services.LogsResult, error) {
	logger := zerolog.Ctx(ctx)

	lastMinutes := services.DefaultLogWindowMinutes
	if event.Arguments.LastMinutes != "" {
		parsed, err := strconv.Atoi(event.Arguments.LastMinutes)
		if err != nil {
			logger.Warn().
				Str("last_minutes", event.Arguments.LastMinutes).
				Msg("Invalid lastMinutes, using default")
		} else {
			lastMinutes = parsed
		}
	}

	logger.Info().
		Str("instance_id", event.Arguments.InstanceID).
		Int("last_minutes", lastMinutes).
		Msg("Fetching instance logs")

	return h.logs.FetchInstanceLogs(ctx, event.Arguments.InstanceID, lastMinutes), nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "get-instance-logs").Logger()

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
		wrappedHandler := func(ctx context.Context, event Event) (services.LogsResult, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleGetLogs(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "get-instance-logs",
		Usage: "Fetch recent log lines for a training instance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "instance-id",
				Usage:    "EC2 instance ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "last-minutes",
				Usage: "Lookback window in minutes",
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			var event Event
			event.Arguments.InstanceID = c.String("instance-id")
			event.Arguments.LastMinutes = c.String("last-minutes")

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleGetLogs(ctx, event)
			if err != nil {
				return err
			}
			if result.Error != "" {
				return fmt.Errorf("%s", result.Error)
			}

			for _, e := range result.Events {
				logger.Info().
					Int64("timestamp", e.Timestamp).
					Str("id", e.ID).
					Msg(e.Message)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
