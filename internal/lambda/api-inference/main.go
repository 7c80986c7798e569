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
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/d2ai/model-trainer/internal/di"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var corsHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,Authorization",
	"Access-Control-Allow-Methods": "POST,OPTIONS",
}

type Handler struct {
	inference *services.InferenceService
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

	return &Handler{
		inference: services.NewInferenceService(
			eventbridge.NewFromConfig(cfg),
			appConfig.EventBusName,
			appConfig.EventSourceName,
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

// HandleRequest accepts POST requests carrying an inference payload and
// forwards them onto the event bus. Only POST is served; validation
// problems come back as 400 with the full problem list.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	logger := zerolog.Ctx(ctx)

	switch req.RequestContext.HTTP.Method {
	case http.MethodOptions:
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusOK,
			Headers:    corsHeaders,
		}, nil
	case http.MethodPost:
		// handled below
	default:
		return respond(http.StatusMethodNotAllowed, map[string]string{
			"error": "method not allowed, use POST",
		})
	}

	var request services.InferenceRequest
	if err := json.Unmarshal([]byte(req.Body), &request); err != nil {
		logger.Warn().Err(err).Msg("Malformed request body")
		return respond(http.StatusBadRequest, map[string]string{
			"error": "invalid JSON body",
		})
	}

	if problems := request.Validate(); len(problems) > 0 {
		return respond(http.StatusBadRequest, map[string]any{
			"error":    "validation failed",
			"problems": problems,
		})
	}

	requestID := req.RequestContext.RequestID

	logger.Info().
		Str("request_id", requestID).
		Int("points", len(request.X)).
		Msg("Submitting inference request")

	result, err := h.inference.Submit(ctx, request, requestID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to submit inference request")
		return respond(http.StatusInternalServerError, map[string]string{
			"error": "failed to submit inference request",
		})
	}

	return respond(http.StatusOK, map[string]any{
		"message":   "inference request accepted",
		"event_id":  result.EventID,
		"batch_id":  result.BatchID,
		"timestamp": result.Timestamp,
	})
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "api-inference").Logger()

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
		Name:  "api-inference",
		Usage: "Submit an inference request to the event bus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "payload",
				Usage:    "Inference request as JSON",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(env)
			if err != nil {
				return fmt.Errorf("failed to create handler: %w", err)
			}

			var request services.InferenceRequest
			if err := json.Unmarshal([]byte(c.String("payload")), &request); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
			if problems := request.Validate(); len(problems) > 0 {
				return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.inference.Submit(ctx, request, "cli")
			if err != nil {
				return err
			}

			logger.Info().
				Str("event_id", result.EventID).
				Str("batch_id", result.BatchID).
				Msg("Inference request submitted")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
