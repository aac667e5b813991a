package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/calling-tree-api/internal/domain"
)

// batchWriteLimit is DynamoDB's hard ceiling on items per BatchWriteItem request.
const batchWriteLimit = 25

// LogRepo provides typed DynamoDB operations for the notification_logs table.
// Rows are append-only per (notification, level, recipient); every status
// transition goes through the conditional CompareAndSetStatus so transitions
// stay monotonic under concurrent writers.
type LogRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLogRepo(client *dynamodb.Client, tableName string) *LogRepo {
	return &LogRepo{client: client, tableName: tableName}
}

// PutBatch writes the logs created when a level is dispatched.
func (r *LogRepo) PutBatch(ctx context.Context, logs []*domain.NotificationLog) error {
	for start := 0; start < len(logs); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(logs) {
			end = len(logs)
		}
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, l := range logs[start:end] {
			item, err := attributevalue.MarshalMap(l)
			if err != nil {
				return fmt.Errorf("marshal log %s: %w", l.LogID, err)
			}
			reqs = append(reqs, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		pending := map[string][]types.WriteRequest{r.tableName: reqs}
		for len(pending) > 0 {
			out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// ListByNotification returns all logs for a notification ordered by level
// ascending, then creation time, via the notification_id-level GSI.
func (r *LogRepo) ListByNotification(ctx context.Context, notificationID string) ([]domain.NotificationLog, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("notification_id-level-index"),
		KeyConditionExpression: aws.String("notification_id = :nid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":nid": &types.AttributeValueMemberS{Value: notificationID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var logs []domain.NotificationLog
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &logs); err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Level != logs[j].Level {
			return logs[i].Level < logs[j].Level
		}
		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})
	return logs, nil
}

// statusTimestampAttr maps a target status to the timestamp column it stamps.
func statusTimestampAttr(s domain.LogStatus) string {
	switch s {
	case domain.LogSent:
		return "sent_at"
	case domain.LogDelivered:
		return "delivered_at"
	case domain.LogAcknowledged:
		return "acknowledged_at"
	default:
		return ""
	}
}

// CompareAndSetStatus applies change to the log row only while its current
// status is one of change.Expected. Returns false without error when the
// condition fails, meaning another writer already moved the row on — the
// caller observes the applied result instead of double-counting.
func (r *LogRepo) CompareAndSetStatus(ctx context.Context, logID string, change domain.LogChange) (bool, error) {
	if len(change.Expected) == 0 {
		return false, fmt.Errorf("log %s: no expected statuses: %w", logID, domain.ErrBadRequest)
	}

	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":next": &types.AttributeValueMemberS{Value: string(change.Status)},
	}
	cond := "#status IN ("
	for i, st := range change.Expected {
		key := fmt.Sprintf(":e%d", i)
		values[key] = &types.AttributeValueMemberS{Value: string(st)}
		if i > 0 {
			cond += ", "
		}
		cond += key
	}
	cond += ")"

	update := "SET #status = :next"
	if attr := statusTimestampAttr(change.Status); attr != "" {
		names["#ts"] = attr
		values[":ts"] = &types.AttributeValueMemberS{Value: change.At.UTC().Format(time.RFC3339Nano)}
		update += ", #ts = :ts"
	}
	if change.Response != nil {
		names["#resp"] = "response"
		values[":resp"] = &types.AttributeValueMemberS{Value: *change.Response}
		update += ", #resp = :resp"
	}
	if change.EscalatedFrom != nil {
		names["#esc"] = "escalated_from"
		values[":esc"] = &types.AttributeValueMemberS{Value: *change.EscalatedFrom}
		update += ", #esc = :esc"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("log_id", logID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
