package commands

import (
	"fmt"
	"time"

	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// LogsCommand returns the logs command for fetching instance application logs
func LogsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Fetch recent application logs for a training instance",
		Description: `Fetch up to 100 of the most recent log lines from an instance's
application log stream.

Examples:
  # Last 15 minutes of logs
  model-trainer logs --env dev --instance-id i-0123456789abcdef0

  # Last hour
  model-trainer logs --env dev --instance-id i-0123456789abcdef0 --last-minutes 60`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "instance-id",
				Aliases:  []string{"i"},
				Usage:    "EC2 instance ID",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "last-minutes",
				Aliases: []string{"m"},
				Usage:   "Lookback window in minutes",
				Value:   services.DefaultLogWindowMinutes,
			},
		},
		Action: logsAction,
	}
}

func logsAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	return container.Invoke(func(logs *services.LogsService) error {
		result := logs.FetchInstanceLogs(ctx, c.String("instance-id"), c.Int("last-minutes"))
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}
		if len(result.Events) == 0 {
			logger.Info().Msg("No log events in window")
			return nil
		}

		for _, e := range result.Events {
			logger.Info().
				Str("at", time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)).
				Msg(e.Message)
		}
		return nil
	})
}
