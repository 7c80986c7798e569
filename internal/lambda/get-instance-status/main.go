package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/d2ai/model-trainer/internal/di"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var corsHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,Authorization",
	"Access-Control-Allow-Methods": "GET,OPTIONS",
}

type Handler struct {
	status *services.StatusService
}

func NewHandler(env string) (*Handler, error) {
	ctx := context.TODO()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Handler{
		status: services.NewStatusService(
			ec2.NewFromConfig(cfg),
			cloudwatch.NewFromConfig(cfg),
		),
	}, nil
}

func respond(status int, body any) (events.APIGatewayV2HTTPResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    corsHeaders,
			Body:       `{"error":"failed to encode response"}`,
		}, nil
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    corsHeaders,
		Body:       string(data),
	}, nil
}

// HandleRequest serves GET /status?ids=i-...,i-... with live instance
// state and utilization. Invalid instance ids are rejected up front so
// bad input never reaches the provider.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger := zerolog.Ctx(ctx)

	if req.RequestContext.HTTP.Method == http.MethodOptions {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusOK,
			Headers:    corsHeaders,
		}, nil
	}

	rawIDs := req.QueryStringParameters["ids"]
	if rawIDs == "" {
		return respond(http.StatusBadRequest, map[string]string{
			"error": "ids query parameter is required",
		})
	}

	var instanceIDs []string
	for _, id := range strings.Split(rawIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !services.ValidInstanceID(id) {
			return respond(http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("%s: %s", apperrors.ErrInvalidInstanceID, id),
			})
		}
		instanceIDs = append(instanceIDs, id)
	}
	if len(instanceIDs) == 0 {
		return respond(http.StatusBadRequest, map[string]string{
			"error": "ids query parameter is required",
		})
	}

	logger.Info().
		Strs("instance_ids", instanceIDs).
		Msg("Fetching instance statuses")

	statuses, err := h.status.GetInstanceStatuses(ctx, instanceIDs)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch instance statuses")
		return respond(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch instance statuses",
		})
	}

	return respond(http.StatusOK, map[string]any{
		"instances": statuses,
		"count":     len(statuses),
	})
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "get-instance-status").Logger()

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
		wrappedHandler := func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleRequest(ctx, req)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "get-instance-status",
		Usage: "Fetch live status and utilization for training instances",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "instance-id",
				Usage:    "EC2 instance ID (repeatable)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			ctx := logger.WithContext(context.Background())
			statuses, err := handler.status.GetInstanceStatuses(ctx, c.StringSlice("instance-id"))
			if err != nil {
				return err
			}

			for _, s := range statuses {
				logger.Info().
					Str("instance_id", s.ID).
					Str("state", s.State).
					Str("status", s.Status).
					Str("system_status", s.SystemStatus).
					Msg("Instance status")
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
