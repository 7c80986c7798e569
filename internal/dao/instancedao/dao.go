package instancedao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/savaki/ddb/v2"
)

// State mirrors the provisioning API's instance lifecycle states.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting-down"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateTerminated   State = "terminated"
)

// Valid reports whether s is one of the six lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateRunning, StateShuttingDown, StateStopping, StateStopped, StateTerminated:
		return true
	}
	return false
}

// Terminal reports whether the provisioned resource no longer exists.
// Note the reconciler does not enforce this as absorbing; a late
// out-of-order notification can still overwrite it.
func (s State) Terminal() bool {
	return s == StateTerminated
}

// InstanceIndex is the GSI keyed on instanceId alone, used by the
// reconciler to locate a record without knowing the owner.
const InstanceIndex = "instanceId-index"

// TimeLayout is fixed-width UTC with millisecond precision so that the
// launchTime >= :cutoff string comparison in DynamoDB orders correctly.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// TableName derives the instance table name from environment
func TableName(env string) string {
	return fmt.Sprintf("%s-user-instances", env)
}

// LogStreamName derives the CloudWatch log stream for an instance. The
// bootstrap script writes to the same name, so no side index is needed.
func LogStreamName(instanceID string) string {
	return "app-" + instanceID
}

// Record represents one provisioned instance and its observed lifecycle
// state. Primary key is (userId, instanceId); instanceId alone is globally
// unique once assigned by EC2.
type Record struct {
	UserID       string         `ddb:"hash" dynamodbav:"userId"`
	InstanceID   string         `ddb:"range" dynamodbav:"instanceId"`
	State        State          `dynamodbav:"state,omitempty"`
	InstanceType string         `dynamodbav:"instanceType,omitempty"`
	ImageID      string         `dynamodbav:"imageId,omitempty"`
	ModelName    string         `dynamodbav:"modelName,omitempty"`
	CodeName     string         `dynamodbav:"codeName,omitempty"`
	ModelConfig  map[string]any `dynamodbav:"modelConfig,omitempty"`
	LogGroup     string         `dynamodbav:"logGroup,omitempty"`
	LogStream    string         `dynamodbav:"logStream,omitempty"`
	LaunchTime   string         `dynamodbav:"launchTime,omitempty"`
	CreatedAt    string         `dynamodbav:"createdAt,omitempty"`
	UpdatedAt    string         `dynamodbav:"updatedAt,omitempty"`
}

// CreateInput contains the fields set once at launch. Everything here is
// immutable after creation; only state/updatedAt change later.
type CreateInput struct {
	UserID       string
	InstanceID   string
	State        State
	InstanceType string
	ImageID      string
	ModelName    string
	CodeName     string
	ModelConfig  map[string]any
	LogGroup     string
	LaunchTime   time.Time
}

// QueryInput selects records for one owner, optionally narrowed to a state
// set, launched at or after Cutoff (TimeLayout string, inclusive).
type QueryInput struct {
	UserID string
	States []State
	Cutoff string
}

// QueryOutput carries the matches plus the number of underlying records
// the store examined, for cost visibility.
type QueryOutput struct {
	Records      []Record
	ScannedCount int32
}

// DAO provides data access operations for instance records
type DAO struct {
	client    *dynamodb.Client
	db        *ddb.DDB
	table     *ddb.Table
	tableName string
	indexName string
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		client:    client,
		db:        db,
		table:     table,
		tableName: tableName,
		indexName: InstanceIndex,
	}
}

// Create persists a new record with createdAt = updatedAt = now.
// State defaults to pending when the provider reported none.
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	now := FormatTime(time.Now())

	state := input.State
	if state == "" {
		state = StatePending
	}

	record := Record{
		UserID:       input.UserID,
		InstanceID:   input.InstanceID,
		State:        state,
		InstanceType: input.InstanceType,
		ImageID:      input.ImageID,
		ModelName:    input.ModelName,
		CodeName:     input.CodeName,
		ModelConfig:  input.ModelConfig,
		LogGroup:     input.LogGroup,
		LogStream:    LogStreamName(input.InstanceID),
		LaunchTime:   FormatTime(input.LaunchTime),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create instance record: %w", err)
	}

	return record, nil
}

// Find retrieves a record by its full primary key
func (d *DAO) Find(ctx context.Context, userID, instanceID string) (Record, error) {
	var record Record

	err := d.table.Get(userID).
		Range(instanceID).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
		}
		return Record{}, fmt.Errorf("failed to find instance record: %w", err)
	}

	// If all key fields are empty, item doesn't exist
	if record.UserID == "" && record.InstanceID == "" {
		return Record{}, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
	}

	return record, nil
}

// FindByInstanceID looks a record up through the instanceId GSI. The
// reconciler receives notifications that carry no owner, so this is its
// only entry point.
func (d *DAO) FindByInstanceID(ctx context.Context, instanceID string) (Record, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(d.indexName),
		KeyConditionExpression: aws.String("#instanceId = :instanceId"),
		ExpressionAttributeNames: map[string]string{
			"#instanceId": "instanceId",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":instanceId": &types.AttributeValueMemberS{Value: instanceID},
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("failed to query instance index: %w", err)
	}
	if len(out.Items) == 0 {
		return Record{}, fmt.Errorf("%w: %s", apperrors.ErrInstanceNotFound, instanceID)
	}

	// instanceId is unique once assigned, so at most one item comes back
	var record Record
	if err := attributevalue.UnmarshalMap(out.Items[0], &record); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal instance record: %w", err)
	}
	return record, nil
}

// UpdateState overwrites state and updatedAt unconditionally. No
// compare-and-set is performed; duplicate and out-of-order writes are
// last-write-wins at the store.
func (d *DAO) UpdateState(ctx context.Context, userID, instanceID string, state State) (Record, error) {
	now := FormatTime(time.Now())

	err := d.table.Update(userID).
		Range(instanceID).
		Set("#State = ?", string(state)).
		Set("#UpdatedAt = ?", now).
		RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to update instance state: %w", err)
	}

	return d.Find(ctx, userID, instanceID)
}

// QueryByOwner scans for records owned by input.UserID launched at or
// after input.Cutoff, optionally narrowed to a state set. Results come
// back unsorted; ordering is the query gateway's concern.
func (d *DAO) QueryByOwner(ctx context.Context, input QueryInput) (QueryOutput, error) {
	filter, names, values := buildOwnerFilter(input)

	scan := &dynamodb.ScanInput{
		TableName:                 aws.String(d.tableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		scan.ExpressionAttributeNames = names
	}

	out, err := d.client.Scan(ctx, scan)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to scan instance records: %w", err)
	}

	records := make([]Record, 0, len(out.Items))
	for _, item := range out.Items {
		var record Record
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return QueryOutput{}, fmt.Errorf("failed to unmarshal instance record: %w", err)
		}
		records = append(records, record)
	}

	return QueryOutput{
		Records:      records,
		ScannedCount: out.ScannedCount,
	}, nil
}

// buildOwnerFilter assembles the scan filter expression. Owner match is
// mandatory, launchTime is bounded below inclusively, and states form an
// IN set when present. "state" is a reserved word, hence the name alias.
func buildOwnerFilter(input QueryInput) (string, map[string]string, map[string]types.AttributeValue) {
	filter := "userId = :userId AND launchTime >= :cutoffTime"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":userId":     &types.AttributeValueMemberS{Value: input.UserID},
		":cutoffTime": &types.AttributeValueMemberS{Value: input.Cutoff},
	}

	if len(input.States) > 0 {
		placeholders := make([]string, 0, len(input.States))
		for i, state := range input.States {
			placeholder := fmt.Sprintf(":state%d", i)
			placeholders = append(placeholders, placeholder)
			values[placeholder] = &types.AttributeValueMemberS{Value: string(state)}
		}
		filter += fmt.Sprintf(" AND #state IN (%s)", strings.Join(placeholders, ", "))
		names["#state"] = "state"
	}

	return filter, names, values
}
