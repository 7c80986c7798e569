package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/d2ai/model-trainer/internal/bootstrap"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// ImagesCommand returns the images command for inspecting the training
// image catalog
func ImagesCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "images",
		Aliases: []string{"img"},
		Usage:   "Inspect the training image catalog",
		Description: `List the training-code selectors and their container images, optionally
verifying that the backing ECR repositories exist.

Examples:
  # List the catalog
  model-trainer images --env dev

  # List and verify repositories against ECR
  model-trainer images --env dev --verify`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.BoolFlag{
				Name:    "verify",
				Aliases: []string{"v"},
				Usage:   "Verify the backing ECR repositories exist",
			},
		},
		Action: imagesAction,
	}
}

func imagesAction(c *cli.Context) error {
	ctx := c.Context
	logger := zerolog.Ctx(ctx)

	images := bootstrap.Images()
	selectors := make([]string, 0, len(images))
	for selector := range images {
		selectors = append(selectors, selector)
	}
	sort.Strings(selectors)

	for _, selector := range selectors {
		event := logger.Info().
			Str("selector", selector).
			Str("image", images[selector])
		if selector == bootstrap.DefaultCodeName {
			event = event.Bool("default", true)
		}
		event.Msg("Training image")
	}

	if !c.Bool("verify") {
		return nil
	}

	container, err := di.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	// Distinct repositories; selectors may share one image.
	repos := map[string]bool{}
	for _, uri := range images {
		repos[bootstrap.RepositoryName(uri)] = true
	}

	return container.Invoke(func(client *ecr.Client) error {
		for repo := range repos {
			out, err := client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
				RepositoryNames: []string{repo},
			})
			if err != nil {
				var notFound *ecrtypes.RepositoryNotFoundException
				if errors.As(err, &notFound) {
					logger.Warn().
						Str("repository", repo).
						Msg("Repository not found in ECR")
					continue
				}
				return fmt.Errorf("failed to describe repository %s: %w", repo, err)
			}
			for _, r := range out.Repositories {
				logger.Info().
					Str("repository", repo).
					Str("uri", aws.ToString(r.RepositoryUri)).
					Msg("Repository verified")
			}
		}
		return nil
	})
}
