package di

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
	"github.com/d2ai/model-trainer/internal/launcher"
	"github.com/d2ai/model-trainer/internal/query"
	"github.com/d2ai/model-trainer/internal/reconciler"
	"github.com/d2ai/model-trainer/internal/services"
)

func ProvideLauncher(ec2Client *ec2.Client, dao *instancedao.DAO, config *services.Config) *launcher.Launcher {
	return launcher.New(ec2Client, dao, config)
}

func ProvideReconciler(dao *instancedao.DAO) *reconciler.Reconciler {
	return reconciler.New(dao)
}

func ProvideQueryGateway(dao *instancedao.DAO) *query.Gateway {
	return query.New(dao)
}

func ProvideLogsService(client *cloudwatchlogs.Client, config *services.Config) *services.LogsService {
	return services.NewLogsService(client, config.LogGroup)
}

func ProvideStatusService(ec2Client *ec2.Client, cwClient *cloudwatch.Client) *services.StatusService {
	return services.NewStatusService(ec2Client, cwClient)
}

func ProvideInferenceService(client *eventbridge.Client, config *services.Config) *services.InferenceService {
	return services.NewInferenceService(client, config.EventBusName, config.EventSourceName)
}

func ProvideArtifactsService(client *s3.Client, config *services.Config) *services.ArtifactsService {
	return services.NewArtifactsService(client, config.ArtifactsBucket)
}
