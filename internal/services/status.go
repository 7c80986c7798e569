package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/rs/zerolog"
)

var instanceIDPattern = regexp.MustCompile(`^i-[a-z0-9]{17}$`)

// ValidInstanceID reports whether id looks like a provider-assigned
// instance identifier.
func ValidInstanceID(id string) bool {
	return instanceIDPattern.MatchString(id)
}

// DescribeInstanceStatusAPI is the slice of the EC2 client the status
// service needs.
type DescribeInstanceStatusAPI interface {
	DescribeInstanceStatus(ctx context.Context, params *ec2.DescribeInstanceStatusInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceStatusOutput, error)
}

// GetMetricStatisticsAPI is the slice of the CloudWatch client the status
// service needs.
type GetMetricStatisticsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// InstanceStatus is the live view of one instance: lifecycle state, the
// provider's reachability checks, and recent utilization averages.
type InstanceStatus struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	Status         string   `json:"status"`
	SystemStatus   string   `json:"systemStatus"`
	CPUUtilization *float64 `json:"cpuUtilization,omitempty"`
	NetworkIn      *float64 `json:"networkIn,omitempty"`
	NetworkOut     *float64 `json:"networkOut,omitempty"`
	DiskReadOps    *float64 `json:"diskReadOps,omitempty"`
	DiskWriteOps   *float64 `json:"diskWriteOps,omitempty"`
}

// StatusService reads instance status and utilization metrics straight
// from the provider, independent of the record store.
type StatusService struct {
	ec2Client DescribeInstanceStatusAPI
	cwClient  GetMetricStatisticsAPI
	now       func() time.Time
}

func NewStatusService(ec2Client DescribeInstanceStatusAPI, cwClient GetMetricStatisticsAPI) *StatusService {
	return &StatusService{
		ec2Client: ec2Client,
		cwClient:  cwClient,
		now:       time.Now,
	}
}

// instanceMetrics lists the CloudWatch metrics surfaced per instance.
var instanceMetrics = []string{
	"CPUUtilization",
	"NetworkIn",
	"NetworkOut",
	"DiskReadOps",
	"DiskWriteOps",
}

// GetInstanceStatuses fetches lifecycle state and status checks for the
// given instances, plus their 5-minute utilization averages. Metric
// failures degrade to missing values, not errors.
func (s *StatusService) GetInstanceStatuses(ctx context.Context, instanceIDs []string) ([]InstanceStatus, error) {
	logger := zerolog.Ctx(ctx)

	out, err := s.ec2Client.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
		InstanceIds:         instanceIDs,
		IncludeAllInstances: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance status: %w", err)
	}

	statuses := make([]InstanceStatus, 0, len(out.InstanceStatuses))
	for _, is := range out.InstanceStatuses {
		status := InstanceStatus{
			ID:           aws.ToString(is.InstanceId),
			Status:       "not-applicable",
			SystemStatus: "not-applicable",
		}
		if is.InstanceState != nil {
			status.State = string(is.InstanceState.Name)
		}
		if is.InstanceStatus != nil {
			status.Status = string(is.InstanceStatus.Status)
		}
		if is.SystemStatus != nil {
			status.SystemStatus = string(is.SystemStatus.Status)
		}

		for _, metric := range instanceMetrics {
			value, err := s.latestAverage(ctx, status.ID, metric)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("instance_id", status.ID).
					Str("metric", metric).
					Msg("Failed to fetch metric, skipping")
				continue
			}
			switch metric {
			case "CPUUtilization":
				status.CPUUtilization = value
			case "NetworkIn":
				status.NetworkIn = value
			case "NetworkOut":
				status.NetworkOut = value
			case "DiskReadOps":
				status.DiskReadOps = value
			case "DiskWriteOps":
				status.DiskWriteOps = value
			}
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// latestAverage returns the most recent 5-minute average datapoint for one
// metric, or nil when CloudWatch has none yet.
func (s *StatusService) latestAverage(ctx context.Context, instanceID, metricName string) (*float64, error) {
	end := s.now()
	out, err := s.cwClient.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/EC2"),
		MetricName: aws.String(metricName),
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String("InstanceId"),
				Value: aws.String(instanceID),
			},
		},
		StartTime:  aws.Time(end.Add(-5 * time.Minute)),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(300),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return nil, err
	}

	var latest *cwtypes.Datapoint
	for i := range out.Datapoints {
		dp := &out.Datapoints[i]
		if latest == nil || (dp.Timestamp != nil && latest.Timestamp != nil && dp.Timestamp.After(*latest.Timestamp)) {
			latest = dp
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.Average, nil
}
