package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

func ProvideContext() context.Context {
	return context.Background()
}

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func ProvideEC2(config aws.Config) *ec2.Client {
	return ec2.NewFromConfig(config)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideCloudWatchLogs(config aws.Config) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(config)
}

func ProvideCloudWatch(config aws.Config) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(config)
}

func ProvideEventBridge(config aws.Config) *eventbridge.Client {
	return eventbridge.NewFromConfig(config)
}

func ProvideS3(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSTS(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

func ProvideECR(config aws.Config) *ecr.Client {
	return ecr.NewFromConfig(config)
}
