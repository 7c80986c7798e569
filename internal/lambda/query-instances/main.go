package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/query"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const anonymousUser = "anonymous"

// Identity is the caller identity attached to an invocation, when present.
type Identity struct {
	Sub string `json:"sub"`
}

// Event is the resolver invocation envelope.
type Event struct {
	Arguments struct {
		QueryInstanceStates []string `json:"queryInstanceStates"`
		TimeRangeHours      int      `json:"timeRangeHours"`
	} `json:"arguments"`
	Identity *Identity `json:"identity"`
}

// Output is always well-formed: either the instance list or the error
// fields are populated, never an unhandled failure.
type Output struct {
	Instances    []instancedao.Record `json:"instances,omitempty"`
	Count        int                  `json:"count"`
	ScannedCount int32                `json:"scannedCount"`
	Error        string               `json:"error,omitempty"`
	Details      string               `json:"details,omitempty"`
}

type Handler struct {
	gateway *query.Gateway
}

func NewHandler(env string) (*Handler, error) {
	instanceService, err := services.NewInstanceService(env)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance service: %w", err)
	}

	return &Handler{
		gateway: query.New(instanceService),
	}, nil
}

// HandleQuery returns the caller's instances within the lookback window,
// newest first. Failures come back inside the response body so the
// transport always sees a well-formed result.
func (h *Handler) HandleQuery(ctx context.Context, event Event) (Output, error) {
	logger := zerolog.Ctx(ctx)

	userID := anonymousUser
	if event.Identity != nil && event.Identity.Sub != "" {
		userID = event.Identity.Sub
	}

	logger.Info().
		Str("user_id", userID).
		Strs("states", event.Arguments.QueryInstanceStates).
		Int("time_range_hours", event.Arguments.TimeRangeHours).
		Msg("Querying instances")

	resp, err := h.gateway.Query(ctx, query.Request{
		UserID:         userID,
		States:         event.Arguments.QueryInstanceStates,
		TimeRangeHours: event.Arguments.TimeRangeHours,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to query instances")
		return Output{
			Error:   "Failed to query instances",
			Details: err.Error(),
		}, nil
	}

	return Output{
		Instances:    resp.Instances,
		Count:        resp.Count,
		ScannedCount: resp.ScannedCount,
	}, nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "query-instances").Logger()

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
			return handler.HandleQuery(ctx, event)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "query-instances",
		Usage: "Query instance records for an owner",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user-id",
				Usage: "Owner identity (defaults to anonymous)",
			},
			&cli.StringSliceFlag{
				Name:  "state",
				Usage: "Lifecycle states to include (repeatable)",
			},
			&cli.IntFlag{
				Name:  "hours",
				Usage: "Lookback window in hours",
				Value: query.DefaultTimeRangeHours,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			var event Event
			event.Arguments.QueryInstanceStates = c.StringSlice("state")
			event.Arguments.TimeRangeHours = c.Int("hours")
			if userID := c.String("user-id"); userID != "" {
				event.Identity = &Identity{Sub: userID}
			}

			ctx := logger.WithContext(context.Background())
			out, err := handler.HandleQuery(ctx, event)
			if err != nil {
				return err
			}
			if out.Error != "" {
				return fmt.Errorf("%s: %s", out.Error, out.Details)
			}

			for _, record := range out.Instances {
				logger.Info().
					Str("instance_id", record.InstanceID).
					Str("state", string(record.State)).
					Str("model_name", record.ModelName).
					Str("created_at", record.CreatedAt).
					Msg("Instance")
			}
			logger.Info().
				Int("count", out.Count).
				Int32("scanned_count", out.ScannedCount).
				Msg("Query complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
