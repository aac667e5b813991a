package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/calling-tree-api/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
// Status transitions go through CompareAndSetStatus so concurrent writers
// (acknowledgment completing a level vs. a timer firing) cannot both win.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewNotificationRepo(client *dynamodb.Client, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// CompareAndSetStatus transitions the notification's status only while its
// current status is one of expected. Returns false without error when another
// writer got there first. Terminal transitions also clear the persisted timer
// deadline so rehydration never re-arms a finished notification.
func (r *NotificationRepo) CompareAndSetStatus(ctx context.Context, notificationID string, expected []domain.NotificationStatus, next domain.NotificationStatus, completedAt *time.Time) (bool, error) {
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":next": &types.AttributeValueMemberS{Value: string(next)},
	}
	cond := "#status IN ("
	for i, st := range expected {
		key := fmt.Sprintf(":e%d", i)
		values[key] = &types.AttributeValueMemberS{Value: string(st)}
		if i > 0 {
			cond += ", "
		}
		cond += key
	}
	cond += ")"

	update := "SET #status = :next"
	if completedAt != nil {
		update += ", completed_at = :done"
		values[":done"] = &types.AttributeValueMemberS{Value: completedAt.UTC().Format(time.RFC3339Nano)}
	}
	if next.Terminal() {
		update += ", timeout_level = :zero"
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
		update += " REMOVE timeout_at"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
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

// SetTimeout persists the armed escalation deadline for the given level.
// The in-process timer registry is reconstructible from this.
func (r *NotificationRepo) SetTimeout(ctx context.Context, notificationID string, level int, deadline time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"timeout_level": level,
		"timeout_at":    deadline.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// ListInFlight returns all in-progress notifications via the status GSI,
// used at startup to rehydrate escalation timers.
func (r *NotificationRepo) ListInFlight(ctx context.Context) ([]domain.Notification, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("status-index"),
		KeyConditionExpression: aws.String("#status = :st"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st": &types.AttributeValueMemberS{Value: string(domain.StatusInProgress)},
		},
	})
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// ListByTree queries the tree_id-initiated_at GSI, newest first, optionally capped.
func (r *NotificationRepo) ListByTree(ctx context.Context, treeID string, limit int) ([]domain.Notification, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("tree_id-initiated_at-index"),
		KeyConditionExpression: aws.String("tree_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: treeID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}
