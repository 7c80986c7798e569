package services

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/d2ai/model-trainer/internal/bootstrap"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	Region              string
	AmiID               string
	InstanceProfileArn  string
	LogGroup            string
	DefaultInstanceType string
	EventBusName        string
	EventSourceName     string
	ArtifactsBucket     string
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client *ssm.Client
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/model-trainer", s.env)

	// Use GetParametersByPath for efficient batch retrieval
	result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
	}

	params := make(map[string]string)
	for _, param := range result.Parameters {
		if param.Name != nil && param.Value != nil {
			params[*param.Name] = *param.Value
		}
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	config := &Config{
		Region:              params[fmt.Sprintf("/%s/model-trainer/region", s.env)],
		AmiID:               params[fmt.Sprintf("/%s/model-trainer/ami-id", s.env)],
		InstanceProfileArn:  params[fmt.Sprintf("/%s/model-trainer/instance-profile-arn", s.env)],
		LogGroup:            params[fmt.Sprintf("/%s/model-trainer/log-group", s.env)],
		DefaultInstanceType: params[fmt.Sprintf("/%s/model-trainer/default-instance-type", s.env)],
		EventBusName:        params[fmt.Sprintf("/%s/model-trainer/event-bus-name", s.env)],
		EventSourceName:     params[fmt.Sprintf("/%s/model-trainer/event-source-name", s.env)],
		ArtifactsBucket:     params[fmt.Sprintf("/%s/model-trainer/artifacts-bucket", s.env)],
	}

	applyDefaults(config)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		Region:              os.Getenv("AWS_REGION"),
		AmiID:               os.Getenv("TRAINING_AMI_ID"),
		InstanceProfileArn:  os.Getenv("INSTANCE_PROFILE_ARN"),
		LogGroup:            os.Getenv("LOG_GROUP"),
		DefaultInstanceType: os.Getenv("DEFAULT_INSTANCE_TYPE"),
		EventBusName:        os.Getenv("EVENT_BUS_NAME"),
		EventSourceName:     os.Getenv("EVENT_SOURCE_NAME"),
		ArtifactsBucket:     os.Getenv("ARTIFACTS_BUCKET_NAME"),
	}

	applyDefaults(config)

	return config, nil
}

// applyDefaults fills the values the original deployment hard-codes.
func applyDefaults(config *Config) {
	if config.Region == "" {
		config.Region = os.Getenv("AWS_REGION")
	}
	if config.AmiID == "" {
		// ECS-optimized Amazon Linux 2 AMI with Docker preinstalled
		config.AmiID = "ami-06a0b33485e9d1cf1"
	}
	if config.InstanceProfileArn == "" {
		config.InstanceProfileArn = "arn:aws:iam::414327512415:role/d2ai-EC2-Access-Role"
	}
	if config.LogGroup == "" {
		config.LogGroup = "ec2-sample-logs"
	}
	if config.DefaultInstanceType == "" {
		config.DefaultInstanceType = bootstrap.DefaultInstanceType
	}
	if config.EventBusName == "" {
		config.EventBusName = "default"
	}
	if config.EventSourceName == "" {
		config.EventSourceName = "d2ai.totem.inference"
	}
}

func boolPtr(b bool) *bool {
	return &b
}
