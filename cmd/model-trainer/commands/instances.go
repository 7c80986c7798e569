package commands

import (
	"fmt"

	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/query"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// InstancesCommand returns the instances command for listing instance records
func InstancesCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "instances",
		Aliases: []string{"i", "list"},
		Usage:   "List an owner's training instance records",
		Description: `List instance records for an owner within a lookback window, newest first.

Examples:
  # All of alice's instances launched in the last 24 hours
  model-trainer instances --env dev --user-id alice

  # Only running and pending instances from the last 2 hours
  model-trainer instances --env dev --user-id alice \
    --state running --state pending --hours 2`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd) - determines which DynamoDB table to use",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "user-id",
				Aliases:  []string{"u"},
				Usage:    "Owner identity",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "state",
				Aliases: []string{"s"},
				Usage:   "Lifecycle states to include (repeatable, absent means all)",
			},
			&cli.IntFlag{
				Name:  "hours",
				Usage: "Lookback window in hours",
				Value: query.DefaultTimeRangeHours,
			},
		},
		Action: instancesAction,
	}
}

func instancesAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	return container.Invoke(func(gateway *query.Gateway) error {
		resp, err := gateway.Query(ctx, query.Request{
			UserID:         c.String("user-id"),
			States:         c.StringSlice("state"),
			TimeRangeHours: c.Int("hours"),
		})
		if err != nil {
			return fmt.Errorf("failed to query instances: %w", err)
		}

		for _, record := range resp.Instances {
			logger.Info().
				Str("instance_id", record.InstanceID).
				Str("state", string(record.State)).
				Str("model_name", record.ModelName).
				Str("instance_type", record.InstanceType).
				Str("launch_time", record.LaunchTime).
				Msg("Instance")
		}
		logger.Info().
			Int("count", resp.Count).
			Int32("scanned_count", resp.ScannedCount).
			Msg("Query complete")
		return nil
	})
}
