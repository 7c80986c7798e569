package launcher

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/d2ai/model-trainer/internal/bootstrap"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/d2ai/model-trainer/internal/models"
	"github.com/d2ai/model-trainer/internal/services"
	"github.com/d2ai/model-trainer/internal/utils"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// instanceNameTag marks instances launched by this service.
const instanceNameTag = "AutoTerminatingEC2"

// RunInstancesAPI is the slice of the EC2 client the launcher needs; tests
// substitute an in-memory fake.
type RunInstancesAPI interface {
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
}

// Store persists the initial lifecycle record for a launched instance.
type Store interface {
	Create(ctx context.Context, input instancedao.CreateInput) (instancedao.Record, error)
}

// Result is returned to the caller on a successful launch.
type Result struct {
	InstanceID string `json:"instanceId"`
	LaunchTime string `json:"launchTime"`
}

// Launcher validates a job request, provisions exactly one training
// instance with the bootstrap script, and records its initial state.
type Launcher struct {
	ec2Client RunInstancesAPI
	store     Store
	config    *services.Config
}

// New creates a new Launcher instance
func New(ec2Client RunInstancesAPI, store Store, config *services.Config) *Launcher {
	return &Launcher{
		ec2Client: ec2Client,
		store:     store,
		config:    config,
	}
}

// Launch provisions one instance for the job and persists its record.
// If provisioning fails, nothing is written. If the record write fails
// after a successful launch, the error is returned with the orphaned
// instance id logged; the launch is not retried because a duplicate
// instance is worse than a visible write failure.
func (l *Launcher) Launch(ctx context.Context, userID string, cfg models.ModelConfig) (Result, error) {
	logger := zerolog.Ctx(ctx)

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	imageURI, codeName := bootstrap.ResolveImage(cfg.ModelTrainingCodeName)

	instanceType := cfg.InstanceType
	if instanceType == "" {
		instanceType = l.config.DefaultInstanceType
	}

	maxRuntime := cfg.MaxRuntimeMinutes
	if maxRuntime <= 0 {
		maxRuntime = bootstrap.DefaultMaxRuntimeMinutes
	}

	userData, err := bootstrap.UserData(bootstrap.ScriptParams{
		ImageURI:          imageURI,
		Region:            l.config.Region,
		LogGroup:          l.config.LogGroup,
		MaxRuntimeMinutes: maxRuntime,
		Args:              utils.MergeTrainingArgs(cfg.Hyperparameters),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to build bootstrap script: %w", err)
	}

	logger.Info().
		Str("user_id", userID).
		Str("model_name", cfg.ModelName).
		Str("code_name", codeName).
		Str("instance_type", instanceType).
		Int("max_runtime_minutes", maxRuntime).
		Msg("Launching training instance")

	// Shutdown behavior is terminate, not stop, so the script's timed
	// shutdown releases the instance instead of leaving it billable.
	out, err := l.ec2Client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(l.config.AmiID),
		InstanceType: ec2types.InstanceType(instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		IamInstanceProfile: &ec2types.IamInstanceProfileSpecification{
			Arn: aws.String(l.config.InstanceProfileArn),
		},
		InstanceInitiatedShutdownBehavior: ec2types.ShutdownBehaviorTerminate,
		UserData:                          aws.String(userData),
		ClientToken:                       aws.String(ksuid.New().String()),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags: []ec2types.Tag{
					{Key: aws.String("Name"), Value: aws.String(instanceNameTag)},
				},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to launch instance: %w", err)
	}
	if len(out.Instances) == 0 {
		return Result{}, apperrors.ErrNoInstanceLaunched
	}

	instance := out.Instances[0]
	instanceID := aws.ToString(instance.InstanceId)

	launchTime := time.Now()
	if instance.LaunchTime != nil {
		launchTime = *instance.LaunchTime
	}

	state := instancedao.StatePending
	if instance.State != nil {
		if reported := instancedao.State(instance.State.Name); reported.Valid() {
			state = reported
		}
	}

	_, err = l.store.Create(ctx, instancedao.CreateInput{
		UserID:       userID,
		InstanceID:   instanceID,
		State:        state,
		InstanceType: instanceType,
		ImageID:      l.config.AmiID,
		ModelName:    cfg.ModelName,
		CodeName:     codeName,
		ModelConfig:  cfg.AsMap(),
		LogGroup:     l.config.LogGroup,
		LaunchTime:   launchTime,
	})
	if err != nil {
		// The instance is now running untracked. Surface the id so an
		// operator can reconcile manually.
		logger.Error().
			Err(err).
			Str("instance_id", instanceID).
			Msg("Instance launched but record write failed; instance is untracked")
		return Result{}, fmt.Errorf("instance %s launched but not recorded: %w", instanceID, err)
	}

	logger.Info().
		Str("instance_id", instanceID).
		Str("state", string(state)).
		Msg("Training instance launched")

	return Result{
		InstanceID: instanceID,
		LaunchTime: instancedao.FormatTime(launchTime),
	}, nil
}
