package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/d2ai/model-trainer/internal/di"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/d2ai/model-trainer/internal/launcher"
	"github.com/d2ai/model-trainer/internal/models"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// anonymousUser is the owner key recorded when no caller identity is
// available.
const anonymousUser = "anonymous"

// Identity is the caller identity attached to an invocation, when present.
type Identity struct {
	Sub string `json:"sub"`
}

// Event is the resolver invocation envelope.
type Event struct {
	Arguments struct {
		ModelConfig *models.ModelConfig `json:"modelConfig"`
	} `json:"arguments"`
	Identity *Identity `json:"identity"`
}

type Handler struct {
	launcher *launcher.Launcher
}

func NewHandler(env string) (*Handler, error) {
	ctx := context.TODO()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create Parameter Store service based on DISABLE_SSM flag
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
	if appConfig.Region == "" {
		appConfig.Region = cfg.Region
	}

	dynamoClient := dynamodb.NewFromConfig(cfg)
	dao := instancedao.New(dynamoClient, instancedao.TableName(env))
	ec2Client := ec2.NewFromConfig(cfg)

	return &Handler{
		launcher: launcher.New(ec2Client, dao, appConfig),
	}, nil
}

// HandleRunTraining launches one training instance for the caller's job
// configuration. Validation and provisioning failures propagate to the
// caller; a record-write failure after a successful launch does too, with
// the orphaned instance id in the message.
func (h *Handler) HandleRunTraining(ctx context.Context, event Event) (launcher.Result, error) {
	logger := zerolog.Ctx(ctx)

	if event.Arguments.ModelConfig == nil {
		return launcher.Result{}, apperrors.ErrMissingModelConfig
	}

	userID := anonymousUser
	if event.Identity != nil && event.Identity.Sub != "" {
		userID = event.Identity.Sub
	}

	logger.Info().
		Str("user_id", userID).
		Str("model_name", event.Arguments.ModelConfig.ModelName).
		Msg("runTraining invoked")

	return h.launcher.Launch(ctx, userID, *event.Arguments.ModelConfig)
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "run-training").Logger()

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
		wrappedHandler := func(ctx context.Context, event Event) (launcher.Result, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleRunTraining(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "run-training",
		Usage: "Launch a training instance for a model configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "model-config",
				Usage:    "Model configuration as JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "Owner identity (defaults to anonymous)",
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			var event Event
			var modelConfig models.ModelConfig
			if err := json.Unmarshal([]byte(c.String("model-config")), &modelConfig); err != nil {
				return fmt.Errorf("invalid model config: %w", err)
			}
			event.Arguments.ModelConfig = &modelConfig
			if userID := c.String("user-id"); userID != "" {
				event.Identity = &Identity{Sub: userID}
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleRunTraining(ctx, event)
			if err != nil {
				return err
			}

			logger.Info().
				Str("instance_id", result.InstanceID).
				Str("launch_time", result.LaunchTime).
				Msg("Training instance launched")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
