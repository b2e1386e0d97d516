package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"graphsync/application/ports"
	"graphsync/domain/core/valueobjects"
	"graphsync/domain/events"
)

// DynamoDB limit for BatchWriteItem
const maxBatchWrite = 25

// maxWriteAttempts bounds retries of unprocessed batch items
const maxWriteAttempts = 3

// defaultRetryBackoff is the wait before the first retry; it doubles per attempt
const defaultRetryBackoff = 50 * time.Millisecond

// API is the part of the DynamoDB client the event store uses
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// PublishStatus represents the outbox status of an event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"   // Event is saved but not yet fanned out
	PublishStatusPublished PublishStatus = "published" // Event delivered to subscribers
)

// EventRecord represents how knowledge events are stored in DynamoDB
type EventRecord struct {
	PK        string `dynamodbav:"PK"` // AUTHOR#<author>
	SK        string `dynamodbav:"SK"` // EVENT#<unix ms, zero padded>#<event id>
	EventID   string `dynamodbav:"EventID"`
	Author    string `dynamodbav:"Author"`
	Kind      string `dynamodbav:"Kind"`
	Timestamp int64  `dynamodbav:"Timestamp"`
	Payload   string `dynamodbav:"Payload"`

	// Outbox pattern fields
	PublishStatus string `dynamodbav:"PublishStatus"`
	PublishedAt   string `dynamodbav:"PublishedAt,omitempty"`
}

// EventStore implements ports.EventStore on a single DynamoDB table
type EventStore struct {
	client    API
	tableName string
	logger    *zap.Logger

	retryBackoff time.Duration
}

var _ ports.EventStore = (*EventStore)(nil)

// NewEventStore creates a new DynamoDB event store
func NewEventStore(client API, tableName string, logger *zap.Logger) *EventStore {
	return &EventStore{
		client:       client,
		tableName:    tableName,
		logger:       logger,
		retryBackoff: defaultRetryBackoff,
	}
}

func authorKey(author valueobjects.AuthorID) string {
	return fmt.Sprintf("AUTHOR#%s", author)
}

func eventToRecord(e events.KnowledgeEvent) EventRecord {
	ms := e.Timestamp.UnixMilli()
	return EventRecord{
		PK:            authorKey(e.Author),
		SK:            fmt.Sprintf("EVENT#%013d#%s", ms, e.ID),
		EventID:       e.ID,
		Author:        e.Author.String(),
		Kind:          e.Kind,
		Timestamp:     ms,
		Payload:       e.Payload,
		PublishStatus: string(PublishStatusPending),
	}
}

func recordToEvent(r EventRecord) events.KnowledgeEvent {
	return events.KnowledgeEvent{
		ID:        r.EventID,
		Author:    valueobjects.AuthorID(r.Author),
		Kind:      r.Kind,
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Payload:   r.Payload,
	}
}

// Append writes events in batches of 25. The key is derived from author,
// timestamp and id, so writing an event again lands on the same item.
func (es *EventStore) Append(ctx context.Context, evts []events.KnowledgeEvent) error {
	if len(evts) == 0 {
		return nil
	}

	writeRequests := make([]types.WriteRequest, 0, len(evts))
	for _, e := range evts {
		item, err := attributevalue.MarshalMap(eventToRecord(e))
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for i := 0; i < len(writeRequests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		if err := es.writeBatch(ctx, writeRequests[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (es *EventStore) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	requests := map[string][]types.WriteRequest{es.tableName: batch}
	for attempt := 1; ; attempt++ {
		result, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: requests})
		if err != nil {
			return fmt.Errorf("failed to write events batch: %w", err)
		}
		unprocessed := result.UnprocessedItems[es.tableName]
		if len(unprocessed) == 0 {
			return nil
		}
		if attempt == maxWriteAttempts {
			return fmt.Errorf("failed to write %d events", len(unprocessed))
		}
		backoff := es.retryBackoff * time.Duration(1<<(attempt-1))
		es.logger.Warn("Retrying unprocessed events",
			zap.Int("attempt", attempt),
			zap.Int("unprocessed", len(unprocessed)),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retrying %d unprocessed events: %w", len(unprocessed), ctx.Err())
		case <-time.After(backoff):
		}
		requests = map[string][]types.WriteRequest{es.tableName: unprocessed}
	}
}

// ListByAuthors queries each author's partition in sort key order
func (es *EventStore) ListByAuthors(ctx context.Context, authors []valueobjects.AuthorID) ([]events.KnowledgeEvent, error) {
	var all []events.KnowledgeEvent
	for _, author := range authors {
		evts, err := es.listAuthor(ctx, author)
		if err != nil {
			return nil, err
		}
		all = append(all, evts...)
	}
	return all, nil
}

func (es *EventStore) listAuthor(ctx context.Context, author valueobjects.AuthorID) ([]events.KnowledgeEvent, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(authorKey(author)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(es.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	var out []events.KnowledgeEvent
	for {
		result, err := es.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}
		for _, item := range result.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
			}
			out = append(out, recordToEvent(record))
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

// ListPending scans for events still in the outbox
func (es *EventStore) ListPending(ctx context.Context, limit int) ([]events.KnowledgeEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	filter := expression.Name("PublishStatus").Equal(expression.Value(string(PublishStatusPending)))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(es.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var out []events.KnowledgeEvent
	for len(out) < limit {
		result, err := es.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending events: %w", err)
		}
		for _, item := range result.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				es.logger.Warn("Skipping malformed event record", zap.Error(err))
				continue
			}
			out = append(out, recordToEvent(record))
			if len(out) == limit {
				break
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

// MarkPublished moves events out of the outbox
func (es *EventStore) MarkPublished(ctx context.Context, evts []events.KnowledgeEvent) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range evts {
		record := eventToRecord(e)
		update := expression.
			Set(expression.Name("PublishStatus"), expression.Value(string(PublishStatusPublished))).
			Set(expression.Name("PublishedAt"), expression.Value(now))
		condition := expression.Name("PK").AttributeExists()
		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}

		_, err = es.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(es.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: record.PK},
				"SK": &types.AttributeValueMemberS{Value: record.SK},
			},
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			return fmt.Errorf("failed to mark event %s as published: %w", e.ID, err)
		}
	}
	return nil
}
