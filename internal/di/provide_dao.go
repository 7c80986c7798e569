package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/d2ai/model-trainer/internal/dao/instancedao"
)

func ProvideInstanceDAO(env string, client *dynamodb.Client) *instancedao.DAO {
	return instancedao.New(client, instancedao.TableName(env))
}
