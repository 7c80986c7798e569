package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
)

// InstanceService wraps the instance record DAO with a DynamoDB client
// bound to the environment's table.
type InstanceService struct {
	client    *dynamodb.Client
	tableName string
	dao       *instancedao.DAO
}

func NewInstanceService(env string) (*InstanceService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	tableName := instancedao.TableName(env)

	client := dynamodb.NewFromConfig(cfg)
	dao := instancedao.New(client, tableName)

	return &InstanceService{
		client:    client,
		tableName: tableName,
		dao:       dao,
	}, nil
}

// NewInstanceServiceWithClient creates an InstanceService with a custom client and table name.
// This is useful for testing with local DynamoDB.
func NewInstanceServiceWithClient(client *dynamodb.Client, tableName string) *InstanceService {
	dao := instancedao.New(client, tableName)
	return &InstanceService{
		client:    client,
		tableName: tableName,
		dao:       dao,
	}
}

// GetClient returns the underlying DynamoDB client. This is useful for testing.
func (s *InstanceService) GetClient() *dynamodb.Client {
	return s.client
}

// GetTableName returns the table name. This is useful for testing.
func (s *InstanceService) GetTableName() string {
	return s.tableName
}

// CreateInstance persists a new instance record (wraps DAO.Create)
func (s *InstanceService) CreateInstance(ctx context.Context, input instancedao.CreateInput) (instancedao.Record, error) {
	return s.dao.Create(ctx, input)
}

// GetInstance retrieves a record by owner and instance id
func (s *InstanceService) GetInstance(ctx context.Context, userID, instanceID string) (instancedao.Record, error) {
	return s.dao.Find(ctx, userID, instanceID)
}

// FindByInstanceID retrieves a record through the instanceId index
func (s *InstanceService) FindByInstanceID(ctx context.Context, instanceID string) (instancedao.Record, error) {
	return s.dao.FindByInstanceID(ctx, instanceID)
}

// UpdateState overwrites the lifecycle state (wraps DAO.UpdateState)
func (s *InstanceService) UpdateState(ctx context.Context, userID, instanceID string, state instancedao.State) (instancedao.Record, error) {
	return s.dao.UpdateState(ctx, userID, instanceID, state)
}

// QueryByOwner returns an owner's records within the launch window
func (s *InstanceService) QueryByOwner(ctx context.Context, input instancedao.QueryInput) (instancedao.QueryOutput, error) {
	return s.dao.QueryByOwner(ctx, input)
}
