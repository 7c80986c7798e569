package commands

import (
	"fmt"

	"github.com/d2ai/model-trainer/internal/di"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// StatusCommand returns the status command for live instance status checks
func StatusCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"st"},
		Usage:   "Check live status and utilization of training instances",
		Description: `Check instance state, reachability checks and 5-minute utilization
averages straight from the provider.

Examples:
  model-trainer status --env dev --instance-id i-0123456789abcdef0
  model-trainer status --env dev -i i-0123456789abcdef0 -i i-0fedcba9876543210`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringSliceFlag{
				Name:     "instance-id",
				Aliases:  []string{"i"},
				Usage:    "EC2 instance ID (repeatable)",
				Required: true,
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	instanceIDs := c.StringSlice("instance-id")
	for _, id := range instanceIDs {
		if !services.ValidInstanceID(id) {
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidInstanceID, id)
		}
	}

	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	return container.Invoke(func(status *services.StatusService) error {
		statuses, err := status.GetInstanceStatuses(ctx, instanceIDs)
		if err != nil {
			return fmt.Errorf("failed to fetch instance statuses: %w", err)
		}
		if len(statuses) == 0 {
			logger.Info().Msg("No matching instances")
			return nil
		}

		for _, s := range statuses {
			event := logger.Info().
				Str("instance_id", s.ID).
				Str("state", s.State).
				Str("status", s.Status).
				Str("system_status", s.SystemStatus)
			if s.CPUUtilization != nil {
				event = event.Float64("cpu_utilization", *s.CPUUtilization)
			}
			if s.NetworkIn != nil {
				event = event.Float64("network_in", *s.NetworkIn)
			}
			if s.NetworkOut != nil {
				event = event.Float64("network_out", *s.NetworkOut)
			}
			event.Msg("Instance status")
		}
		return nil
	})
}
