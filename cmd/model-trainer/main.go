package main

import (
	"context"
	"os"

	"github.com/d2ai/model-trainer/cmd/model-trainer/commands"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "model-trainer",
		Usage: "Training instance lifecycle toolkit",
		Description: `A unified CLI tool for operating the training instance fleet.

This tool provides commands for:
  - Launching auto-terminating training instances
  - Listing an owner's instance records
  - Tailing instance application logs
  - Checking live instance status and utilization
  - Inspecting the training image catalog`,
		Commands: []*cli.Command{
			commands.LaunchCommand(&logger),
			commands.InstancesCommand(&logger),
			commands.LogsCommand(&logger),
			commands.StatusCommand(&logger),
			commands.ImagesCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
