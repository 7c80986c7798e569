package commands

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/launcher"
	"github.com/d2ai/model-trainer/internal/models"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// LaunchCommand returns the launch command for starting a training instance
func LaunchCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "launch",
		Aliases: []string{"l"},
		Usage:   "Launch an auto-terminating training instance",
		Description: `Launch one training instance for a model configuration.

The configuration file is YAML. Unknown keys become training arguments
passed to the container:

  modelName: demand-forecast
  modelTrainingCodeName: DEMO
  instanceType: t3.micro
  maxRuntimeMinutes: 10
  epochs: 20
  learning_rate: 0.01

Examples:
  # Launch with an explicit owner
  model-trainer launch --env dev --config job.yaml --user-id alice

  # Launch as the current AWS identity
  model-trainer launch --env dev --config job.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd) - determines which DynamoDB table to use",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the model configuration YAML file",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "user-id",
				Aliases: []string{"u"},
				Usage:   "Owner identity (defaults to the caller's AWS identity)",
			},
		},
		Action: launchAction,
	}
}

func launchAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	data, err := os.ReadFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg, err := models.ConfigFromMap(raw)
	if err != nil {
		return fmt.Errorf("invalid model configuration: %w", err)
	}

	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	userID := c.String("user-id")
	if userID == "" {
		userID, err = callerIdentity(c, container)
		if err != nil {
			return err
		}
		logger.Info().Str("user_id", userID).Msg("Using caller AWS identity as owner")
	}

	return container.Invoke(func(l *launcher.Launcher) error {
		result, err := l.Launch(ctx, userID, cfg)
		if err != nil {
			return err
		}

		logger.Info().
			Str("instance_id", result.InstanceID).
			Str("launch_time", result.LaunchTime).
			Msg("Training instance launched")
		return nil
	})
}

// callerIdentity resolves the operator's AWS identity for use as the owner
// key when no explicit user id is given.
func callerIdentity(c *cli.Context, container di.Container) (string, error) {
	var userID string
	err := container.Invoke(func(client *sts.Client) error {
		out, err := client.GetCallerIdentity(c.Context, &sts.GetCallerIdentityInput{})
		if err != nil {
			return fmt.Errorf("failed to resolve caller identity: %w", err)
		}
		userID = aws.ToString(out.UserId)
		return nil
	})
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("caller identity is empty, pass --user-id explicitly")
	}
	return userID, nil
}
